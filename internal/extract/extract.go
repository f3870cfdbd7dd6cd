// Package extract turns free text into a contact record by asking a chat-completion model and
// normalizing its answer.
package extract

import (
	"context"
	"errors"

	"gitlab.com/dirk.krummacker/signature-builder/internal/chat"
	"gitlab.com/dirk.krummacker/signature-builder/internal/config"
	"gitlab.com/dirk.krummacker/signature-builder/internal/model"
)

const (
	// rawUpstreamLimit is how much of a non-JSON upstream body is echoed back for diagnostics.
	rawUpstreamLimit = 300
	// rawModelLimit is how much of an unparseable model answer is echoed back.
	rawModelLimit = 400
)

// SystemPrompt instructs the model to answer with the contact record as bare JSON.
const SystemPrompt = "Extract contact info from the user's text and return STRICT JSON only (no markdown, no commentary). " +
	"Keys: name, job_title, email, phone_display, phone_e164, linkedin, website. " +
	"Use empty string for unknown values. " +
	"phone_e164 must be E.164 like +61400111222 if possible; otherwise empty string."

// Completer sends a conversation to a model and returns its textual answer.
type Completer interface {
	Complete(ctx context.Context, messages []chat.Message) (string, error)
}

// Extractor runs the extraction pipeline. It keeps no state between calls.
type Extractor struct {
	client Completer
	apiKey string
}

// New creates an extractor that talks to the model through client. The upstream configuration
// is only consulted for the presence of the API key.
func New(upstream config.Upstream, client Completer) *Extractor {
	return &Extractor{client: client, apiKey: upstream.APIKey}
}

// NewFromConfig creates an extractor backed by a chat client built from the configuration.
func NewFromConfig(upstream config.Upstream) *Extractor {
	return New(upstream, chat.NewClient(chat.Options{
		APIKey:   upstream.APIKey,
		BaseURL:  upstream.BaseURL,
		Model:    upstream.Model,
		SiteURL:  upstream.SiteURL,
		SiteName: upstream.SiteName,
		Timeout:  upstream.Timeout,
	}))
}

// Extract validates the input, makes exactly one upstream call and returns the normalized
// record. Every failure is an *Error.
func (e *Extractor) Extract(ctx context.Context, text string) (model.ContactRecord, error) {
	if text == "" {
		return model.ContactRecord{}, &Error{Kind: KindInvalidInput, Message: "Missing 'text' in request body"}
	}
	if e.apiKey == "" {
		return model.ContactRecord{}, &Error{Kind: KindMisconfigured, Message: "Server missing OPENROUTER_API_KEY env var"}
	}

	content, err := e.client.Complete(ctx, []chat.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		return model.ContactRecord{}, classify(err)
	}

	extracted, err := parseDocument(content)
	if err != nil {
		return model.ContactRecord{}, &Error{
			Kind:    KindModelOutput,
			Message: "Model did not return valid JSON",
			Raw:     truncate(content, rawModelLimit),
			Err:     err,
		}
	}
	return Normalize(extracted), nil
}

// classify converts an error of the chat client into an *Error.
func classify(err error) *Error {
	var formatErr *chat.FormatError
	if errors.As(err, &formatErr) {
		return &Error{
			Kind:    KindUpstreamFormat,
			Message: "OpenRouter returned non-JSON",
			Raw:     truncate(formatErr.Raw, rawUpstreamLimit),
			Err:     err,
		}
	}
	var statusErr *chat.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.Message
		if message == "" {
			message = "OpenRouter error"
		}
		return &Error{
			Kind:       KindUpstreamStatus,
			Message:    message,
			StatusCode: statusErr.StatusCode,
			Details:    statusErr.Payload,
			Err:        err,
		}
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}
