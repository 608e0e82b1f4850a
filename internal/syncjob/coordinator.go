// Package syncjob synchronizes the transactions and balances of every
// enabled account under one bank connection.
package syncjob

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/dvloznov/bank-sync/internal/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds how many accounts of one connection sync at once.
const DefaultMaxConcurrency = 8

var tracer = otel.Tracer("github.com/dvloznov/bank-sync/internal/syncjob")

// Options configures a Coordinator. Nil sinks are skipped.
type Options struct {
	BatchSize      int
	MaxConcurrency int
	Latest         bool // request only the provider's most recent window

	Notifier    Notifier
	Invalidator Invalidator
	Archiver    Archiver

	Now func() time.Time
}

// SyncResult summarizes one connection sync.
type SyncResult struct {
	ConnectionID string
	TeamID       string

	// Success is true when no provider failure was recorded on the
	// connection during the run.
	Success bool

	TotalUpserts       int // rows in successfully written batches
	TotalFailedUpserts int // failed batches plus accounts whose fetch failed
	FailedAccounts     int
	NewTransactions    int // rows inserted for the first time

	// ErrorClass is the class recorded on the connection, empty on success.
	ErrorClass provider.ErrorClass

	Accounts []*AccountResult
}

// Coordinator fans an AccountSyncer out over the enabled accounts of a
// connection and applies connection-level side effects once all are done.
type Coordinator struct {
	store          Store
	syncer         *AccountSyncer
	notifier       Notifier
	invalidator    Invalidator
	maxConcurrency int
}

// NewCoordinator creates a Coordinator reading and writing store and
// calling the provider through gateway.
func NewCoordinator(store Store, gateway Gateway, opts Options) *Coordinator {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Coordinator{
		store:          store,
		syncer:         NewAccountSyncer(gateway, store, opts.Archiver, opts.BatchSize, opts.Latest, opts.Now),
		notifier:       opts.Notifier,
		invalidator:    opts.Invalidator,
		maxConcurrency: opts.MaxConcurrency,
	}
}

// Sync synchronizes every enabled account of the connection. It returns an
// error only when the accounts cannot be loaded; account failures are
// reported in the result.
func (c *Coordinator) Sync(ctx context.Context, connectionID, teamID string) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "syncjob.SyncConnection", trace.WithAttributes(
		attribute.String("connection.id", connectionID),
		attribute.String("team.id", teamID),
	))
	defer span.End()

	ctx = logger.WithConnection(ctx, teamID, connectionID)
	log := logger.FromContext(ctx)

	accounts, err := c.store.ListEnabledAccounts(ctx, teamID, connectionID)
	if err != nil {
		span.SetStatus(codes.Error, "loading accounts")
		return nil, fmt.Errorf("Sync: loading enabled accounts: %w", err)
	}
	log.Info().Int("accounts", len(accounts)).Msg("Starting connection sync")

	failures := newStatusRecorder(c.store, connectionID)
	results := c.syncAll(ctx, accounts, failures)

	res := &SyncResult{ConnectionID: connectionID, TeamID: teamID, Accounts: results}
	var inserted []domain.Transaction
	for _, r := range results {
		res.TotalUpserts += r.Upserted
		res.TotalFailedUpserts += r.FailedUpserts()
		if r.Failed() {
			res.FailedAccounts++
		}
		inserted = append(inserted, r.Inserted...)
	}
	res.NewTransactions = len(inserted)

	if class, failed := failures.Failed(); failed {
		res.ErrorClass = class
		log.Warn().
			Str("error_class", string(class)).
			Msg("Connection sync recorded a provider failure, leaving status as recorded")
	} else {
		res.Success = true
		if err := c.store.SetConnectionStatus(ctx, connectionID, domain.ConnectionConnected, nil); err != nil {
			log.Error().Err(err).Msg("Failed to mark connection connected")
		}
	}

	if len(inserted) > 0 && c.notifier != nil {
		if err := c.notifier.NotifyTransactions(ctx, teamID, inserted); err != nil {
			log.Error().Err(err).Int("transactions", len(inserted)).Msg("Failed to send new transaction notification")
		}
	}

	if c.invalidator != nil {
		if err := c.invalidator.InvalidateTags(ctx, CacheTags(teamID)); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate cached views")
		}
	}

	if !res.Success {
		span.SetStatus(codes.Error, string(res.ErrorClass))
	}
	log.Info().
		Bool("success", res.Success).
		Int("total_upserts", res.TotalUpserts).
		Int("total_failed_upserts", res.TotalFailedUpserts).
		Int("failed_accounts", res.FailedAccounts).
		Int("new_transactions", res.NewTransactions).
		Msg("Connection sync finished")
	return res, nil
}

// syncAll runs every account and waits for all of them. One account's
// failure or panic never stops the others.
func (c *Coordinator) syncAll(ctx context.Context, accounts []domain.AccountWithConnection, failures FailureRecorder) []*AccountResult {
	results := make([]*AccountResult, len(accounts))

	var g errgroup.Group
	g.SetLimit(c.maxConcurrency)
	for i, item := range accounts {
		g.Go(func() error {
			results[i] = c.syncOne(ctx, item, failures)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Coordinator) syncOne(ctx context.Context, item domain.AccountWithConnection, failures FailureRecorder) (res *AccountResult) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("account sync panicked: %v", p)
			log := logger.FromContext(ctx)
			log.Error().
				Err(err).
				Str("account_id", item.Account.ID).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from account sync panic")
			res = &AccountResult{
				AccountID: item.Account.ID,
				Phase:     PhaseFailed,
				History:   []Phase{PhaseFailed},
				Err:       err,
			}
		}
	}()
	return c.syncer.Sync(ctx, item, failures)
}
