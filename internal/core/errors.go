package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeMalformedMessage = "malformed_message"
	ErrCodeUnknownSender    = "unknown_sender"
	ErrCodeNotInSession     = "not_in_session"
	ErrCodeForbidden        = "forbidden"
	ErrCodeUnsupportedKind  = "unsupported_kind"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal"
)

var (
	ErrUnknownSender   = errors.New("sender is not joined to any session")
	ErrNotInSession    = errors.New("sender is not joined to this session")
	ErrUnsupportedKind = errors.New("message kind is not sender-selectable")
	ErrForbidden       = errors.New("role is not allowed to do this")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
