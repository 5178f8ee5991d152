package core

import "errors"

// Error codes surfaced to clients.
const (
	ErrCodeValidation      = "validation"
	ErrCodeAuthentication  = "authentication"
	ErrCodeNicknameTaken   = "nickname_taken"
	ErrCodeUnknownNickname = "unknown_nickname"
	ErrCodeStore           = "store_error"
	ErrCodeBadRequest      = "bad_request"
)

var (
	// ErrChannelPasswordRequired is returned by admission when a private
	// channel is entered without a password.
	ErrChannelPasswordRequired = errors.New("channel password required")
	// ErrWrongChannelPassword is returned by admission when the supplied
	// channel password does not match.
	ErrWrongChannelPassword = errors.New("incorrect channel password")
)

// CoreError wraps a wire code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}
