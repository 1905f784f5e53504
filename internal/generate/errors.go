package generate

import (
	"errors"
	"fmt"
)

// Kind classifies why a draw did not produce an image.
type Kind int

const (
	// NotConfigured means no credential was available, so no call was made.
	NotConfigured Kind = iota + 1
	CallFailed
	MalformedResponse
	StorageFailed
)

func (k Kind) String() string {
	switch k {
	case NotConfigured:
		return "not_configured"
	case CallFailed:
		return "call_failed"
	case MalformedResponse:
		return "malformed_response"
	case StorageFailed:
		return "storage_failed"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of a generation error, or 0 for anything else.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}
