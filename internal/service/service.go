package service

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/dirk.krummacker/signature-builder/internal/config"
	"gitlab.com/dirk.krummacker/signature-builder/internal/extract"
	"gitlab.com/dirk.krummacker/signature-builder/web"
)

// extractPath is the endpoint used by the signature builder page.
const extractPath = "/api/extract"

// server bundles what the handlers need. It is read-only after construction.
type server struct {
	extractor *extract.Extractor
	logger    *zap.Logger
	public    fs.FS
	files     http.Handler
}

// SetupHttpRouter initializes the REST API router and registers all endpoints. The static files
// come from cfg.StaticDir, or from the files compiled into the binary when it is empty.
func SetupHttpRouter(cfg config.Config, extractor *extract.Extractor, logger *zap.Logger) (*gin.Engine, error) {
	public, err := web.Public(cfg.StaticDir)
	if err != nil {
		return nil, err
	}
	s := &server{
		extractor: extractor,
		logger:    logger,
		public:    public,
		files:     http.FileServer(http.FS(public)),
	}

	router := gin.New()
	router.Use(requestID())
	if cfg.RequestLogging {
		router.Use(requestLogger(logger))
	} else {
		logger.Info("Turning off HTTP request logging.")
	}
	router.Use(recovery(logger))

	api := router.Group("", cors())
	api.POST(extractPath, s.extractContact)
	api.OPTIONS(extractPath, preflight)

	router.GET("/", s.index)
	router.NoRoute(s.noRoute)
	return router, nil
}

// extractContact reads the free text from the request's JSON, lets the model extract the contact
// details and responds with the normalized record.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/extract --request "POST" --header "Content-Type: application/json" --data '{"text": "John Smith, Senior Engineer, john@acme.com, +61 400 111 222"}'
func (s *server) extractContact(c *gin.Context) {
	text, err := readText(c)
	if err != nil {
		s.abortWithError(c, &extract.Error{
			Kind:    extract.KindInvalidInput,
			Message: "Missing 'text' in request body",
			Err:     err,
		})
		return
	}
	record, err := s.extractor.Extract(c.Request.Context(), text)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"data": record})
}

// readText returns the string under the key "text" of the JSON object in the request body. The
// key must match exactly, other spellings such as "Text" count as missing.
func readText(c *gin.Context) (string, error) {
	body, err := c.GetRawData()
	if err != nil {
		return "", err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", err
	}
	raw, ok := fields["text"]
	if !ok {
		return "", errors.New("no text key in request body")
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", err
	}
	return text, nil
}

// preflight answers CORS preflight requests with an empty body.
func preflight(c *gin.Context) {
	c.AbortWithStatus(http.StatusOK)
}

// methodNotAllowed rejects every method the extraction endpoint does not support. It is reached
// through noRoute, so the CORS headers of the endpoint are set here as well.
func methodNotAllowed(c *gin.Context) {
	setCORSHeaders(c.Writer.Header())
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

// abortWithError maps an extraction failure onto its HTTP status and error body.
func (s *server) abortWithError(c *gin.Context, err error) {
	var extractErr *extract.Error
	if !errors.As(err, &extractErr) {
		extractErr = &extract.Error{Kind: extract.KindInternal, Message: err.Error(), Err: err}
	}
	status := statusFor(extractErr)
	body := gin.H{"error": extractErr.Message}
	switch extractErr.Kind {
	case extract.KindUpstreamFormat, extract.KindModelOutput:
		body["raw"] = extractErr.Raw
	case extract.KindUpstreamStatus:
		body["details"] = extractErr.Details
	}

	fields := []zap.Field{
		zap.String("kind", extractErr.Kind.String()),
		zap.Int("status", status),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err),
	}
	if extractErr.Kind == extract.KindInternal || extractErr.Kind == extract.KindMisconfigured {
		s.logger.Error("extraction failed", fields...)
	} else {
		s.logger.Warn("extraction failed", fields...)
	}
	c.AbortWithStatusJSON(status, body)
}

// statusFor returns the HTTP status code for an extraction failure.
func statusFor(err *extract.Error) int {
	switch err.Kind {
	case extract.KindInvalidInput:
		return http.StatusBadRequest
	case extract.KindUpstreamFormat, extract.KindModelOutput:
		return http.StatusBadGateway
	case extract.KindUpstreamStatus:
		if err.StatusCode == 0 {
			return http.StatusBadGateway
		}
		return err.StatusCode
	default:
		return http.StatusInternalServerError
	}
}

// index responds with the signature builder page.
func (s *server) index(c *gin.Context) {
	data, err := fs.ReadFile(s.public, "index.html")
	if err != nil {
		s.logger.Error("index document missing", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// noRoute handles everything without a registered route: any other method on the extraction
// endpoint, or a static file.
func (s *server) noRoute(c *gin.Context) {
	if c.Request.URL.Path == extractPath {
		methodNotAllowed(c)
		return
	}
	s.static(c)
}

// static serves the remaining files of the public directory. Everything that is not a GET or
// HEAD request for an existing file is answered with 404.
func (s *server) static(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	s.files.ServeHTTP(c.Writer, c.Request)
}
