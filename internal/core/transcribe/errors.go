package transcribe

import (
	"errors"
	"fmt"
)

// Kind classifies a transcription failure so the batch processor can react
// (clear credentials, surface a back-off hint) without parsing provider output.
type Kind string

const (
	KindInvalidCredential Kind = "invalid_credential"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindRateLimited       Kind = "rate_limited"
	KindUnavailable       Kind = "service_unavailable"
	KindUnknown           Kind = "unknown"
)

// Error is a classified transcription failure.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

// NewError builds a classified error with a formatted message.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// KindOf extracts the failure kind from any error returned by this package.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
