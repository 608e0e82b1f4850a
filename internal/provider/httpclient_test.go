package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_ListTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "tok-1", r.Header.Get("X-Access-Token"))

		q := r.URL.Query()
		assert.Equal(t, "teller", q.Get("provider"))
		assert.Equal(t, "acc-1", q.Get("accountId"))
		assert.Equal(t, "credit", q.Get("accountType"))
		assert.Equal(t, "c1", q.Get("cursor"))
		assert.Equal(t, "true", q.Get("latest"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"t1","date":"2024-03-01","amount":"-12.50","currency":"USD","name":"coffee shop","method":"card_purchase","balance":"100.00"}],"cursor":"c2","hasMore":true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "api-key", srv.Client())
	page, err := c.ListTransactions(context.Background(), ListTransactionsParams{
		Provider:    "teller",
		AccountID:   "acc-1",
		AccountType: domain.ClassCredit,
		AccessToken: "tok-1",
		Cursor:      "c1",
		Latest:      true,
	})

	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "t1", page.Data[0].ID)
	assert.Equal(t, "-12.5", page.Data[0].Amount.String())
	require.NotNil(t, page.Data[0].Balance)
	assert.Equal(t, "100", page.Data[0].Balance.String())
	assert.Equal(t, "c2", page.Cursor)
	assert.True(t, page.HasMore)
}

func TestHTTPClient_ListTransactions_OmitsUndefinedParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("accountType"))
		assert.False(t, q.Has("cursor"))
		assert.False(t, q.Has("latest"))
		_, _ = w.Write([]byte(`{"data":[],"cursor":"","hasMore":false}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", srv.Client())
	_, err := c.ListTransactions(context.Background(), ListTransactionsParams{AccountID: "acc-1", AccountType: domain.ClassUndefined})
	require.NoError(t, err)
}

func TestHTTPClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  string
		wantMsg   string
		wantClass ErrorClass
	}{
		{name: "rate limited", status: 429, body: `{"code":"rate_limit_exceeded","message":"slow down"}`, wantCode: "rate_limit_exceeded", wantMsg: "slow down", wantClass: ClassRateLimit},
		{name: "unauthorized", status: 401, body: `{"error":"token revoked"}`, wantMsg: "token revoked", wantClass: ClassAuthorization},
		{name: "plain body", status: 502, body: "bad gateway upstream", wantMsg: "bad gateway upstream", wantClass: ClassOther},
		{name: "empty body", status: 500, body: "", wantMsg: "Internal Server Error", wantClass: ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, "k", srv.Client())
			_, err := c.ListTransactions(context.Background(), ListTransactionsParams{AccountID: "acc-1"})

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.wantClass, Classify(err))
		})
	}
}

func TestHTTPClient_GetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/balance", r.URL.Path)
		assert.Equal(t, "acc-1", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"data":{"amount":"0","currency":"GBP"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "k", srv.Client())
	bal, err := c.GetBalance(context.Background(), BalanceParams{Provider: "gocardless", AccountID: "acc-1"})

	require.NoError(t, err)
	assert.True(t, bal.Amount.IsZero())
	assert.Equal(t, "GBP", bal.Currency)
}

func TestHTTPClient_GetBalance_MissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "k", srv.Client())
	_, err := c.GetBalance(context.Background(), BalanceParams{AccountID: "acc-1"})
	assert.Error(t, err)
}
