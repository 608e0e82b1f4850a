package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dvloznov/bank-sync/internal/domain"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// HTTPClient is the concrete implementation of Client over the provider's
// REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the API at baseURL. A nil httpClient
// uses http.DefaultClient; per-request timeouts come from the Gateway.
func NewHTTPClient(baseURL, apiKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// ListTransactions calls GET /v1/transactions.
func (c *HTTPClient) ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionsPage, error) {
	q := url.Values{}
	q.Set("provider", params.Provider)
	q.Set("accountId", params.AccountID)
	if params.AccountType != "" && params.AccountType != domain.ClassUndefined {
		q.Set("accountType", string(params.AccountType))
	}
	if params.Cursor != "" {
		q.Set("cursor", params.Cursor)
	}
	if params.Latest {
		q.Set("latest", "true")
	}

	var page TransactionsPage
	if err := c.get(ctx, "/v1/transactions", q, params.AccessToken, &page); err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return &page, nil
}

// GetBalance calls GET /v1/accounts/balance.
func (c *HTTPClient) GetBalance(ctx context.Context, params BalanceParams) (*Balance, error) {
	q := url.Values{}
	q.Set("provider", params.Provider)
	q.Set("id", params.AccountID)

	var resp struct {
		Data *Balance `json:"data"`
	}
	if err := c.get(ctx, "/v1/accounts/balance", q, params.AccessToken, &resp); err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("GetBalance: response has no balance data")
	}
	return resp.Data, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("X-Access-Token", accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeAPIError builds an APIError from a non-2xx response. The provider
// replies with {"code": ..., "message": ...}; other bodies fall back to the
// status text.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
