package transcript

import (
	"errors"
	"fmt"
)

// Kind classifies a transcript failure. Callers switch on the kind, never on
// the concrete provider error.
type Kind int

const (
	Unknown Kind = iota
	InvalidInput
	NotFound
	Unavailable
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Unavailable:
		return "unavailable"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is the only error type Resolve and Cache.Get return.
type Error struct {
	Kind    Kind
	VideoID string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err, or Unknown when err carries none.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return Unknown
}

func newError(kind Kind, videoID string, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		VideoID: videoID,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Describe renders err the way clients see it, prefixed by its kind.
func Describe(err error) string {
	var prefix string
	switch KindOf(err) {
	case InvalidInput:
		prefix = "Invalid video ID: "
	case NotFound:
		prefix = "Video not found: "
	case Unavailable:
		prefix = "Network error: "
	case Forbidden:
		prefix = "Access denied: "
	default:
		prefix = "Error fetching transcript: "
	}
	return prefix + err.Error()
}
