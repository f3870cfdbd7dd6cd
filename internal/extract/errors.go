package extract

import "fmt"

// Kind classifies why an extraction failed.
type Kind int

const (
	// KindInternal is any failure that fits no other kind, e.g. a transport error.
	KindInternal Kind = iota
	// KindInvalidInput means the caller did not supply usable text.
	KindInvalidInput
	// KindMisconfigured means the server lacks its upstream credential.
	KindMisconfigured
	// KindUpstreamFormat means the upstream body was not JSON.
	KindUpstreamFormat
	// KindUpstreamStatus means the upstream answered with a non-2xx status.
	KindUpstreamStatus
	// KindModelOutput means the model's answer was not a JSON document.
	KindModelOutput
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindMisconfigured:
		return "misconfigured"
	case KindUpstreamFormat:
		return "upstream_format"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindModelOutput:
		return "model_output"
	default:
		return "internal"
	}
}

// Error is the single error type returned by Extractor.Extract.
type Error struct {
	Kind       Kind
	Message    string // user facing message
	StatusCode int    // upstream status, only for KindUpstreamStatus
	Raw        string // truncated raw payload, only for the format kinds
	Details    any    // decoded upstream payload, only for KindUpstreamStatus
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
