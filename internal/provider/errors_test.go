package provider

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "429", err: &APIError{Status: http.StatusTooManyRequests}, want: ClassRateLimit},
		{name: "rate limit message", err: &APIError{Status: http.StatusBadRequest, Message: "Rate limit exceeded"}, want: ClassRateLimit},
		{name: "rate limit code", err: &APIError{Status: http.StatusBadRequest, Code: "RATE_LIMIT_EXCEEDED"}, want: ClassRateLimit},
		{name: "plain rate limit error", err: errors.New("too many requests"), want: ClassRateLimit},
		{name: "exhausted", err: &RetryExhaustedError{Attempts: 5, Err: errors.New("x")}, want: ClassRateLimit},
		{name: "401", err: &APIError{Status: http.StatusUnauthorized}, want: ClassAuthorization},
		{name: "403", err: &APIError{Status: http.StatusForbidden}, want: ClassAuthorization},
		{name: "auth code", err: &APIError{Status: http.StatusBadRequest, Code: "ITEM_LOGIN_REQUIRED"}, want: ClassAuthorization},
		{name: "wrapped auth", err: fmt.Errorf("ListTransactions: %w", &APIError{Status: http.StatusUnauthorized}), want: ClassAuthorization},
		{name: "500", err: &APIError{Status: http.StatusInternalServerError, Message: "boom"}, want: ClassOther},
		{name: "network", err: errors.New("connection reset by peer"), want: ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorClass_Precedence(t *testing.T) {
	assert.Greater(t, ClassAuthorization.Precedence(), ClassRateLimit.Precedence())
	assert.Greater(t, ClassRateLimit.Precedence(), ClassOther.Precedence())
	assert.Greater(t, ClassOther.Precedence(), ErrorClass("").Precedence())
}

func TestConnectionStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ConnectionStatus
	}{
		{name: "authorization disconnects", err: &APIError{Status: http.StatusUnauthorized}, want: domain.ConnectionDisconnected},
		{name: "disconnected code", err: &APIError{Status: http.StatusBadRequest, Code: "disconnected"}, want: domain.ConnectionDisconnected},
		{name: "unknown code", err: &APIError{Status: http.StatusBadRequest, Code: "unknown"}, want: domain.ConnectionUnknown},
		{name: "connected code is not a failure status", err: &APIError{Status: http.StatusBadRequest, Code: "connected"}, want: domain.ConnectionUnknown},
		{name: "rate limit", err: &RetryExhaustedError{Attempts: 5, Err: &APIError{Status: http.StatusTooManyRequests}}, want: domain.ConnectionUnknown},
		{name: "plain", err: errors.New("boom"), want: domain.ConnectionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConnectionStatusFor(tt.err))
		})
	}
}

func TestErrorDetails(t *testing.T) {
	assert.Equal(t, "credential revoked", ErrorDetails(fmt.Errorf("wrap: %w", &APIError{Status: 401, Message: "credential revoked"})))
	assert.Equal(t, "boom", ErrorDetails(errors.New("boom")))
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "provider error 400 (bad_cursor): cursor expired", (&APIError{Status: 400, Code: "bad_cursor", Message: "cursor expired"}).Error())
	assert.Equal(t, "provider error 500: boom", (&APIError{Status: 500, Message: "boom"}).Error())
}
