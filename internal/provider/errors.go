package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dvloznov/bank-sync/internal/domain"
)

// APIError is an error returned by the provider API.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // provider error code, may be empty
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
}

// RetryExhaustedError is returned when every retry attempt was rate limited.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// ErrorClass is the coarse classification of a provider failure.
type ErrorClass string

const (
	ClassRateLimit     ErrorClass = "rate_limit"
	ClassAuthorization ErrorClass = "authorization"
	ClassOther         ErrorClass = "other"
)

// Precedence orders classes when several accounts of one connection fail
// in the same run. Higher wins.
func (c ErrorClass) Precedence() int {
	switch c {
	case ClassAuthorization:
		return 3
	case ClassRateLimit:
		return 2
	case ClassOther:
		return 1
	}
	return 0
}

// authorizationCodes are provider codes that mean the credential is no
// longer usable and the user has to reconnect.
var authorizationCodes = map[string]bool{
	"disconnected":         true,
	"item_login_required":  true,
	"invalid_access_token": true,
	"item_not_found":       true,
	"access_not_granted":   true,
	"unauthorized":         true,
	"consent_expired":      true,
}

// IsRateLimited reports whether err is a rate-limit rejection: status 429 or
// an error message that says so.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusTooManyRequests {
			return true
		}
		return mentionsRateLimit(apiErr.Message) || mentionsRateLimit(apiErr.Code)
	}
	return mentionsRateLimit(err.Error())
}

func mentionsRateLimit(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "rate_limit") ||
		strings.Contains(s, "ratelimit") ||
		strings.Contains(s, "too many requests")
}

// Classify maps a provider error to its class.
func Classify(err error) ErrorClass {
	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) || IsRateLimited(err) {
		return ClassRateLimit
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
			return ClassAuthorization
		}
		if authorizationCodes[strings.ToLower(apiErr.Code)] {
			return ClassAuthorization
		}
	}
	return ClassOther
}

// ConnectionStatusFor returns the connection status to record for err.
// Authorization failures disconnect the connection; a provider code that is
// itself a failure status is used as is; everything else is unknown.
func ConnectionStatusFor(err error) domain.ConnectionStatus {
	if Classify(err) == ClassAuthorization {
		return domain.ConnectionDisconnected
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if s, perr := domain.ParseConnectionStatus(apiErr.Code); perr == nil && s != domain.ConnectionConnected {
			return s
		}
	}
	return domain.ConnectionUnknown
}

// ErrorDetails returns the user-facing error detail for err.
func ErrorDetails(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
