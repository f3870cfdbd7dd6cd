// Package chat is a small client for OpenAI-compatible chat-completion APIs such as OpenRouter.
//
// The client never assumes the upstream answers with JSON: the body is read as text first and
// only then decoded, so that HTML error pages and other surprises can be reported verbatim.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultMaxResponseBytes caps how much of an upstream response is read into memory.
const defaultMaxResponseBytes = 10 * 1024 * 1024

// ErrResponseTooLarge is returned when the upstream body exceeds the size limit.
var ErrResponseTooLarge = errors.New("upstream response too large")

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the wire format of a chat-completion call. Temperature is always sent, a zero value
// included.
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Options configures a Client.
type Options struct {
	APIKey   string
	BaseURL  string
	Model    string
	SiteURL  string // sent as HTTP-Referer
	SiteName string // sent as X-Title
	Timeout  time.Duration
}

// Client performs chat-completion calls. It holds no per-request state and is safe for
// concurrent use.
type Client struct {
	httpClient       *http.Client
	maxResponseBytes int64
	baseURL          string
	apiKey           string
	model            string
	siteURL          string
	siteName         string
}

// NewClient creates a client. A zero timeout means the call is bounded only by the context.
func NewClient(opts Options) *Client {
	return NewClientWithHTTPClient(opts, &http.Client{Timeout: opts.Timeout})
}

// NewClientWithHTTPClient creates a client that sends its requests through httpClient.
func NewClientWithHTTPClient(opts Options, httpClient *http.Client) *Client {
	return &Client{
		httpClient:       httpClient,
		maxResponseBytes: defaultMaxResponseBytes,
		baseURL:          strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:           opts.APIKey,
		model:            opts.Model,
		siteURL:          opts.SiteURL,
		siteName:         opts.SiteName,
	}
}

// Complete sends the messages with temperature 0 and returns the textual answer of the first
// choice. When the upstream answers without any content, "{}" is returned.
//
// A body that is not JSON yields a *FormatError, a non-2xx status with a JSON body yields a
// *StatusError. A body over the size limit yields ErrResponseTooLarge. Everything else (transport
// failures, cancellation) is returned wrapped.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(request{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// OpenRouter attribution headers
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(raw)) > c.maxResponseBytes {
		return "", fmt.Errorf("%w: more than %d bytes (HTTP %d)", ErrResponseTooLarge, c.maxResponseBytes, resp.StatusCode)
	}

	var payload any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	err = decoder.Decode(&payload)
	if err == nil && decoder.Decode(new(any)) != io.EOF {
		err = errors.New("unexpected data after JSON value")
	}
	if err != nil {
		return "", &FormatError{StatusCode: resp.StatusCode, Raw: string(raw), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(payload),
			Payload:    payload,
		}
	}

	content := firstContent(payload)
	if content == "" {
		return "{}", nil
	}
	return content, nil
}

// firstContent walks choices[0].message.content. Anything of an unexpected shape counts as
// missing.
func firstContent(payload any) string {
	root, _ := payload.(map[string]any)
	choices, _ := root["choices"].([]any)
	if len(choices) == 0 {
		return ""
	}
	choice, _ := choices[0].(map[string]any)
	message, _ := choice["message"].(map[string]any)
	content, _ := message["content"].(string)
	return content
}

// errorMessage extracts error.message from an upstream error payload.
func errorMessage(payload any) string {
	root, _ := payload.(map[string]any)
	detail, _ := root["error"].(map[string]any)
	message, _ := detail["message"].(string)
	return message
}
