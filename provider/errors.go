package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies provider failures.
type ErrorType string

const (
	ErrorAPI            ErrorType = "api_error"
	ErrorRateLimit      ErrorType = "rate_limit"
	ErrorContentBlocked ErrorType = "content_blocked"
	ErrorTimeout        ErrorType = "timeout"
	ErrorUnknown        ErrorType = "unknown"
)

// Error is a provider failure normalized into the shared taxonomy.
// It is surfaced to callers verbatim; Retryable is advisory.
type Error struct {
	Type      ErrorType
	Provider  string
	Message   string
	Code      string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.Provider != "" {
		prefix = e.Provider + " " + prefix
	}
	if e.Code != "" {
		prefix += " (" + e.Code + ")"
	}
	if e.Cause != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", prefix, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// FromStatus classifies an HTTP failure.
func FromStatus(providerName string, status int, message, code string, cause error) *Error {
	e := &Error{
		Type:     ErrorAPI,
		Provider: providerName,
		Message:  message,
		Code:     code,
		Cause:    cause,
	}
	if e.Code == "" && status != 0 {
		e.Code = fmt.Sprintf("%d", status)
	}
	switch {
	case status == http.StatusTooManyRequests:
		e.Type = ErrorRateLimit
		e.Retryable = true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Type = ErrorTimeout
		e.Retryable = true
	case status >= 500:
		e.Retryable = true
	}
	return e
}

// Classify maps errors that carry no provider-specific information, such as
// transport failures and context expiry.
func Classify(providerName string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	e := &Error{
		Type:     ErrorUnknown,
		Provider: providerName,
		Message:  err.Error(),
		Cause:    err,
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Type = ErrorTimeout
		e.Retryable = true
	case errors.Is(err, context.Canceled):
		e.Type = ErrorUnknown
	}
	return e
}

// Blocked returns a content_blocked error.
func Blocked(providerName, reason string) *Error {
	if reason == "" {
		reason = "response blocked by content filter"
	}
	return &Error{
		Type:     ErrorContentBlocked,
		Provider: providerName,
		Message:  reason,
	}
}
