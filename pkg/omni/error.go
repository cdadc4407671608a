package omni

import (
	"errors"
	"fmt"
)

// Common error codes reported in server error events.
const (
	ErrCodeInvalidAPIKey     = "InvalidApiKey"
	ErrCodeAccessDenied      = "AccessDenied"
	ErrCodeRateLimitExceeded = "RateLimitExceeded"
	ErrCodeQuotaExceeded     = "QuotaExceeded"
	ErrCodeInvalidParameter  = "InvalidParameter"
	ErrCodeInternalError     = "InternalError"
	ErrCodeServiceBusy       = "ServiceBusy"
)

// ErrMalformed wraps every decoding failure returned by Parse.
var ErrMalformed = errors.New("omni: malformed envelope")

// Error is an error reported by the server in an "error" envelope.
type Error struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("omni: %s - %s", e.Code, e.Message)
	case e.Message != "":
		return "omni: " + e.Message
	case e.Code != "":
		return "omni: " + e.Code
	}
	return "omni: unknown error"
}

// IsRateLimit reports whether the error is due to rate limiting.
func (e *Error) IsRateLimit() bool {
	return e.Code == ErrCodeRateLimitExceeded || e.Code == ErrCodeQuotaExceeded
}

// IsAuth reports whether the error is an authentication error.
func (e *Error) IsAuth() bool {
	return e.Code == ErrCodeInvalidAPIKey || e.Code == ErrCodeAccessDenied
}

// Retryable reports whether the failed request may succeed if repeated.
func (e *Error) Retryable() bool {
	return e.IsRateLimit() || e.Code == ErrCodeInternalError || e.Code == ErrCodeServiceBusy
}

// AsError attempts to cast an error to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
