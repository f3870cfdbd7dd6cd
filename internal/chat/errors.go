package chat

import "fmt"

// FormatError is returned when the upstream body could not be decoded as JSON.
type FormatError struct {
	StatusCode int    // HTTP status of the upstream response
	Raw        string // the body exactly as received
	Err        error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("upstream returned non-JSON body (HTTP %d): %v", e.StatusCode, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the upstream answered with a non-2xx status and a JSON body.
type StatusError struct {
	StatusCode int
	Message    string // error.message of the payload, empty if absent
	Payload    any    // the decoded upstream body
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("upstream error (HTTP %d): %s", e.StatusCode, e.Message)
}
