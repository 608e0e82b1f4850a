package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/bank-sync/internal/logger"
)

// DefaultRevalidateTimeout bounds one webhook call.
const DefaultRevalidateTimeout = 10 * time.Second

// HTTPInvalidator posts cache tags to the dashboard's revalidation webhook.
type HTTPInvalidator struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewHTTPInvalidator creates an invalidator for the webhook at url. The
// secret is sent in the X-Revalidate-Secret header. A nil httpClient gets
// one with DefaultRevalidateTimeout.
func NewHTTPInvalidator(url, secret string, httpClient *http.Client) *HTTPInvalidator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRevalidateTimeout}
	}
	return &HTTPInvalidator{url: url, secret: secret, httpClient: httpClient}
}

type revalidateRequest struct {
	Tags []string `json:"tags"`
}

// InvalidateTags sends all tags in one request.
func (h *HTTPInvalidator) InvalidateTags(ctx context.Context, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	body, err := json.Marshal(revalidateRequest{Tags: tags})
	if err != nil {
		return fmt.Errorf("InvalidateTags: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("InvalidateTags: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.secret != "" {
		req.Header.Set("X-Revalidate-Secret", h.secret)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("InvalidateTags: calling webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("InvalidateTags: webhook returned %d", resp.StatusCode)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Strs("tags", tags).
		Msg("Cache tags revalidated")
	return nil
}

// LogInvalidator only logs the tags. Used when no webhook is configured.
type LogInvalidator struct{}

// InvalidateTags logs the tags.
func (LogInvalidator) InvalidateTags(ctx context.Context, tags []string) error {
	log := logger.FromContext(ctx)
	log.Info().
		Strs("tags", tags).
		Msg("Cache invalidation requested")
	return nil
}
