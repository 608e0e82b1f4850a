package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/bank-sync/internal/logger"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxAttempts is the number of calls made for a rate-limited listing.
	DefaultMaxAttempts = 5

	// DefaultBaseDelay is the delay before the first retry; it doubles per attempt.
	DefaultBaseDelay = time.Second

	// DefaultRequestTimeout bounds every single provider call.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultMaxPages bounds how many pages one account sync follows.
	DefaultMaxPages = 50
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryPolicy controls retries of rate-limited transaction listings.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns 5 attempts with delays of 1s, 2s, 4s and 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait after the failed attempt with the given index
// (0 for the first call): BaseDelay * 2^attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay << uint(attempt)
}

// GatewayOptions configures a Gateway. Zero values take the defaults.
type GatewayOptions struct {
	Retry          RetryPolicy
	RequestTimeout time.Duration
	MaxPages       int

	// Limiter paces calls across all accounts sharing the gateway. Nil
	// means unlimited.
	Limiter *rate.Limiter

	// Sleep is replaced in tests to observe backoff delays.
	Sleep Sleeper
}

// Gateway wraps a provider Client with request timeouts, pacing and the
// rate-limit retry policy. It is safe for concurrent use if the client is.
type Gateway struct {
	client  Client
	retry   RetryPolicy
	timeout time.Duration
	pages   int
	limiter *rate.Limiter
	sleep   Sleeper
}

// NewGateway creates a Gateway around client.
func NewGateway(client Client, opts GatewayOptions) *Gateway {
	g := &Gateway{
		client:  client,
		retry:   opts.Retry,
		timeout: opts.RequestTimeout,
		pages:   opts.MaxPages,
		limiter: opts.Limiter,
		sleep:   opts.Sleep,
	}
	if g.retry.MaxAttempts < 1 {
		g.retry.MaxAttempts = DefaultMaxAttempts
	}
	if g.retry.BaseDelay <= 0 {
		g.retry.BaseDelay = DefaultBaseDelay
	}
	if g.timeout <= 0 {
		g.timeout = DefaultRequestTimeout
	}
	if g.pages < 1 {
		g.pages = DefaultMaxPages
	}
	if g.sleep == nil {
		g.sleep = SleepContext
	}
	return g
}

// ListTransactions fetches one page, retrying rate-limited calls with
// exponential backoff. Other errors are returned after the first call.
func (g *Gateway) ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionsPage, error) {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		page, err := g.listOnce(ctx, params)
		if err == nil {
			return page, nil
		}
		if !IsRateLimited(err) {
			return nil, err
		}
		lastErr = err

		if attempt == g.retry.MaxAttempts-1 {
			break
		}

		delay := g.retry.Delay(attempt)
		log.Warn().
			Err(err).
			Str("account_id", params.AccountID).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Rate limited by provider, backing off")

		if err := g.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("ListTransactions: waiting to retry: %w", err)
		}
	}

	return nil, &RetryExhaustedError{Attempts: g.retry.MaxAttempts, Err: lastErr}
}

func (g *Gateway) listOnce(ctx context.Context, params ListTransactionsParams) (*TransactionsPage, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.client.ListTransactions(ctx, params)
}

// FetchResult is every page read for one account.
type FetchResult struct {
	Transactions []Transaction
	Pages        []*TransactionsPage
	Cursor       string // resume point for the next run
	HasMore      bool   // true when MaxPages stopped the fetch early
}

// ListAll follows HasMore pages starting at params.Cursor. Each page gets
// its own retry budget. The returned cursor is the last non-empty cursor
// seen, or the starting cursor if the provider returned none.
func (g *Gateway) ListAll(ctx context.Context, params ListTransactionsParams) (*FetchResult, error) {
	log := logger.FromContext(ctx)

	result := &FetchResult{Cursor: params.Cursor}
	for i := 0; i < g.pages; i++ {
		page, err := g.ListTransactions(ctx, params)
		if err != nil {
			return nil, err
		}

		result.Pages = append(result.Pages, page)
		result.Transactions = append(result.Transactions, page.Data...)
		result.HasMore = page.HasMore

		if page.Cursor != "" {
			result.Cursor = page.Cursor
		}
		if !page.HasMore {
			return result, nil
		}
		if page.Cursor == "" || page.Cursor == params.Cursor {
			log.Warn().
				Str("account_id", params.AccountID).
				Int("page", i+1).
				Msg("Provider reported more pages without advancing the cursor")
			return result, nil
		}
		params.Cursor = page.Cursor
	}

	log.Info().
		Str("account_id", params.AccountID).
		Int("max_pages", g.pages).
		Msg("Reached page limit, remaining pages resume next run")
	return result, nil
}

// GetBalance fetches the account balance. It is not retried.
func (g *Gateway) GetBalance(ctx context.Context, params BalanceParams) (*Balance, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.client.GetBalance(ctx, params)
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for provider rate limiter: %w", err)
	}
	return nil
}
