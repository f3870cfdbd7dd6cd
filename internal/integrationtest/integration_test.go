package integrationtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/dirk.krummacker/signature-builder/internal/config"
	"gitlab.com/dirk.krummacker/signature-builder/internal/extract"
	"gitlab.com/dirk.krummacker/signature-builder/internal/model"
	"gitlab.com/dirk.krummacker/signature-builder/internal/service"
)

// upstream is a fake OpenRouter. It answers every chat-completion call with a fixed status and
// body and remembers the last request it received.
type upstream struct {
	server      *httptest.Server
	status      int
	body        string
	calls       atomic.Int32
	mu          sync.Mutex
	lastAuth    string
	lastRequest map[string]interface{}
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	u := &upstream{status: status, body: body}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.mu.Lock()
		defer u.mu.Unlock()
		u.lastAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&u.lastRequest)
		w.WriteHeader(u.status)
		io.WriteString(w, u.body)
	}))
	t.Cleanup(u.server.Close)
	return u
}

// completion wraps the model's answer into a chat-completion response body.
func completion(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"id": "gen-1",
		"choices": []interface{}{
			map[string]interface{}{
				"index":   0,
				"message": map[string]interface{}{"role": "assistant", "content": content},
			},
		},
	})
	return string(body)
}

// setupRouter wires the real extractor and chat client against the fake upstream.
func setupRouter(t *testing.T, u *upstream, apiKey string) *gin.Engine {
	cfg, err := config.Load("", func(key string) string {
		switch key {
		case "OPENROUTER_API_KEY":
			return apiKey
		case "OPENROUTER_BASE_URL":
			return u.server.URL + "/api/v1"
		case "GIN_LOGGING":
			return "off"
		}
		return ""
	})
	require.NoError(t, err)
	gin.SetMode(gin.ReleaseMode)
	router, err := service.SetupHttpRouter(cfg, extract.NewFromConfig(cfg.Upstream), zaptest.NewLogger(t))
	require.NoError(t, err)
	return router
}

// post sends text to the extraction endpoint.
func post(router *gin.Engine, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest("POST", "/api/extract", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)
	return recorder
}

// TestExtractHappyPath runs the example input through the whole stack.
func TestExtractHappyPath(t *testing.T) {
	u := newUpstream(t, http.StatusOK, completion(`{"name":"John Smith","job_title":"Senior Engineer","email":"john@acme.com","phone_display":"+61 400 111 222","phone_e164":"+61400111222","linkedin":"","website":""}`))
	router := setupRouter(t, u, "sk-or-integration")

	recorder := post(router, `{"text": "John Smith, Senior Engineer, john@acme.com, +61 400 111 222"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var body struct {
		Data model.ContactRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, model.ContactRecord{
		Name:         "John Smith",
		JobTitle:     "Senior Engineer",
		Email:        "john@acme.com",
		PhoneDisplay: "+61 400 111 222",
		PhoneE164:    "+61400111222",
	}, body.Data)

	// the outbound call
	u.mu.Lock()
	defer u.mu.Unlock()
	assert.Equal(t, int32(1), u.calls.Load())
	assert.Equal(t, "Bearer sk-or-integration", u.lastAuth)
	assert.Equal(t, "openai/gpt-4o-mini", u.lastRequest["model"])
	assert.Equal(t, 0.0, u.lastRequest["temperature"])
	messages := u.lastRequest["messages"].([]interface{})
	assert.Len(t, messages, 2)
	assert.Equal(t, "John Smith, Senior Engineer, john@acme.com, +61 400 111 222", messages[1].(map[string]interface{})["content"])
}

// TestExtractMissingContent expects an all-empty record when the model answers with nothing.
func TestExtractMissingContent(t *testing.T) {
	u := newUpstream(t, http.StatusOK, `{"choices":[{"message":{"content":null}}]}`)
	router := setupRouter(t, u, "sk-or-integration")

	recorder := post(router, `{"text": "nothing useful"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Len(t, body["data"], 7)
	for key, value := range body["data"] {
		assert.Equal(t, "", value, key)
	}
}

// TestExtractUpstreamHTML expects an HTML error page to be reported as 502 with a short snippet.
func TestExtractUpstreamHTML(t *testing.T) {
	page := "<html><head><title>502 Bad Gateway</title></head><body>" + strings.Repeat("x", 1000) + "</body></html>"
	u := newUpstream(t, http.StatusBadGateway, page)
	router := setupRouter(t, u, "sk-or-integration")

	recorder := post(router, `{"text": "Jane"}`)
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "OpenRouter returned non-JSON", body["error"])
	assert.Equal(t, page[:300], body["raw"])
}

// TestExtractUpstreamUnauthorized expects the upstream status and message to be passed through.
func TestExtractUpstreamUnauthorized(t *testing.T) {
	u := newUpstream(t, http.StatusUnauthorized, `{"error":{"message":"No auth credentials found","code":401}}`)
	router := setupRouter(t, u, "sk-or-wrong")

	recorder := post(router, `{"text": "Jane"}`)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "No auth credentials found", body["error"])
	details := body["details"].(map[string]interface{})
	assert.Equal(t, 401.0, details["error"].(map[string]interface{})["code"])
}

// TestExtractModelProse expects prose from the model to be reported as 502.
func TestExtractModelProse(t *testing.T) {
	u := newUpstream(t, http.StatusOK, completion("I'm sorry, I can't find a name in this text."))
	router := setupRouter(t, u, "sk-or-integration")

	recorder := post(router, `{"text": "hello"}`)
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "Model did not return valid JSON", body["error"])
	assert.Equal(t, "I'm sorry, I can't find a name in this text.", body["raw"])
}

// TestExtractWithoutCredential expects no outbound call when the API key is missing.
func TestExtractWithoutCredential(t *testing.T) {
	u := newUpstream(t, http.StatusOK, completion("{}"))
	router := setupRouter(t, u, "")

	recorder := post(router, `{"text": "Jane"}`)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, int32(0), u.calls.Load())
}

// TestExtractInvalidBody expects no outbound call for unusable request bodies.
func TestExtractInvalidBody(t *testing.T) {
	u := newUpstream(t, http.StatusOK, completion("{}"))
	router := setupRouter(t, u, "sk-or-integration")

	for _, body := range []string{"", "not JSON", `{"text": 7}`, `{"Text": "Jane"}`} {
		recorder := post(router, body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "request body: "+body)
	}
	assert.Equal(t, int32(0), u.calls.Load())
}

// TestUpstreamUnreachable expects a transport failure to be answered with 500.
func TestUpstreamUnreachable(t *testing.T) {
	u := newUpstream(t, http.StatusOK, completion("{}"))
	router := setupRouter(t, u, "sk-or-integration")
	u.server.Close()

	recorder := post(router, `{"text": "Jane"}`)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "request failed")
}

// TestPageAndEndpointTogether checks that the page and the endpoint are served by one engine.
func TestPageAndEndpointTogether(t *testing.T) {
	u := newUpstream(t, http.StatusOK, completion(`{"name":"Jane"}`))
	router := setupRouter(t, u, "sk-or-integration")

	getRecorder := httptest.NewRecorder()
	getRequest, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(getRecorder, getRequest)
	assert.Equal(t, http.StatusOK, getRecorder.Code)
	assert.Contains(t, getRecorder.Body.String(), "app.js")

	optionsRecorder := httptest.NewRecorder()
	optionsRequest, _ := http.NewRequest("OPTIONS", "/api/extract", nil)
	router.ServeHTTP(optionsRecorder, optionsRequest)
	assert.Equal(t, http.StatusOK, optionsRecorder.Code)
	assert.Equal(t, "*", optionsRecorder.Header().Get("Access-Control-Allow-Origin"))

	propfindRecorder := httptest.NewRecorder()
	propfindRequest, _ := http.NewRequest("PROPFIND", "/api/extract", nil)
	router.ServeHTTP(propfindRecorder, propfindRequest)
	assert.Equal(t, http.StatusMethodNotAllowed, propfindRecorder.Code)
	assert.Equal(t, "*", propfindRecorder.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, http.StatusOK, post(router, `{"text": "Jane"}`).Code)
}
