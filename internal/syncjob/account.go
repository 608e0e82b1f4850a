package syncjob

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/bank-sync/internal/batch"
	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/dvloznov/bank-sync/internal/provider"
	"github.com/dvloznov/bank-sync/internal/transform"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Phase is a step of one account sync.
type Phase string

const (
	PhaseFetching      Phase = "fetching"
	PhaseTransforming  Phase = "transforming"
	PhaseUpserting     Phase = "upserting"
	PhaseBalanceUpdate Phase = "balance_update"
	PhasePersisted     Phase = "persisted"
	PhaseFailed        Phase = "failed"
)

// transitions lists the allowed next phases. A fetch failure skips straight
// to the balance update.
var transitions = map[Phase][]Phase{
	PhaseFetching:      {PhaseTransforming, PhaseBalanceUpdate, PhaseFailed},
	PhaseTransforming:  {PhaseUpserting},
	PhaseUpserting:     {PhaseBalanceUpdate},
	PhaseBalanceUpdate: {PhasePersisted, PhaseFailed},
}

func canTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no phase follows p.
func (p Phase) Terminal() bool {
	return p == PhasePersisted || p == PhaseFailed
}

// FailureRecorder records a provider failure on the connection being synced.
type FailureRecorder interface {
	Record(ctx context.Context, err error) provider.ErrorClass
}

// AccountResult is the outcome of syncing one account.
type AccountResult struct {
	AccountID string
	Phase     Phase
	History   []Phase

	Fetched       int // provider records received
	Skipped       int // records the transformer rejected
	Upserted      int // rows in batches that were written
	FailedBatches int
	Inserted      []domain.Transaction // rows that did not exist before
	Cursor        string               // cursor returned by the provider

	FetchErr   error
	ErrorClass provider.ErrorClass
	BalanceErr error
	Err        error // unexpected failure, such as a panic
}

// Failed reports whether the account ended in the Failed phase.
func (r *AccountResult) Failed() bool {
	return r.Phase == PhaseFailed
}

// FailedUpserts counts failed batches plus one when no rows could be
// fetched or the sync aborted.
func (r *AccountResult) FailedUpserts() int {
	n := r.FailedBatches
	if r.FetchErr != nil || r.Err != nil {
		n++
	}
	return n
}

func (r *AccountResult) advance(ctx context.Context, to Phase) {
	log := logger.FromContext(ctx)
	from := r.Phase
	if !canTransition(from, to) {
		log.Error().
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Invalid account sync transition")
		to = PhaseFailed
	}
	r.Phase = to
	r.History = append(r.History, to)

	trace.SpanFromContext(ctx).AddEvent("phase", trace.WithAttributes(attribute.String("phase", string(to))))
	log.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Account sync phase")
}

// AccountSyncer runs the fetch, transform, upsert and balance steps for one
// account. It is safe for concurrent use across accounts.
type AccountSyncer struct {
	gateway      Gateway
	accounts     AccountStore
	connections  ConnectionStore
	transactions TransactionStore
	archiver     Archiver
	batchSize    int
	latest       bool
	now          func() time.Time
}

// NewAccountSyncer creates an AccountSyncer. A nil archiver disables raw
// page archiving.
func NewAccountSyncer(gateway Gateway, store Store, archiver Archiver, batchSize int, latest bool, now func() time.Time) *AccountSyncer {
	if batchSize < 1 {
		batchSize = batch.DefaultSize
	}
	if now == nil {
		now = time.Now
	}
	return &AccountSyncer{
		gateway:      gateway,
		accounts:     store,
		connections:  store,
		transactions: store,
		archiver:     archiver,
		batchSize:    batchSize,
		latest:       latest,
		now:          now,
	}
}

// Sync runs one account to a terminal phase. Failures are reported in the
// result, never returned.
func (s *AccountSyncer) Sync(ctx context.Context, item domain.AccountWithConnection, failures FailureRecorder) *AccountResult {
	acct, conn := item.Account, item.Connection

	ctx, span := tracer.Start(ctx, "syncjob.SyncAccount", trace.WithAttributes(
		attribute.String("account.id", acct.ID),
		attribute.String("connection.id", conn.ID),
	))
	defer span.End()

	log := logger.FromContext(ctx).With().Str("account_id", acct.ID).Logger()
	ctx = logger.WithContext(ctx, log)

	res := &AccountResult{AccountID: acct.ID, Phase: PhaseFetching, History: []Phase{PhaseFetching}}
	cursor := StartCursor(item)
	log.Info().
		Str("cursor", cursor).
		Bool("initial_sync", cursor == "").
		Msg("Fetching transactions")

	fetched, err := s.gateway.ListAll(ctx, provider.ListTransactionsParams{
		Provider:    conn.Provider,
		AccountID:   acct.ProviderID,
		AccountType: transform.Classify(acct.Type),
		AccessToken: conn.AccessToken,
		Cursor:      cursor,
		Latest:      s.latest,
	})
	if err != nil {
		res.FetchErr = err
		res.ErrorClass = failures.Record(ctx, err)
		log.Error().
			Err(err).
			Str("error_class", string(res.ErrorClass)).
			Msg("Failed to fetch transactions")
		res.advance(ctx, PhaseBalanceUpdate)
	} else {
		res.Cursor = fetched.Cursor
		res.Fetched = len(fetched.Transactions)
		s.archive(ctx, item, fetched.Pages)

		res.advance(ctx, PhaseTransforming)
		txs := s.transform(ctx, item, fetched.Transactions, res)

		res.advance(ctx, PhaseUpserting)
		s.upsert(ctx, txs, res)

		res.advance(ctx, PhaseBalanceUpdate)
	}

	if err := s.updateBalance(ctx, item, res); err != nil {
		res.BalanceErr = err
		log.Warn().Err(err).Msg("Balance update failed, keeping previous balance")
		res.advance(ctx, PhaseFailed)
	} else if res.FetchErr != nil {
		res.advance(ctx, PhaseFailed)
	} else {
		res.advance(ctx, PhasePersisted)
	}

	if res.Failed() {
		span.SetStatus(codes.Error, "account sync failed")
	}
	span.SetAttributes(
		attribute.Int("transactions.fetched", res.Fetched),
		attribute.Int("transactions.inserted", len(res.Inserted)),
	)

	log.Info().
		Str("phase", string(res.Phase)).
		Int("fetched", res.Fetched).
		Int("upserted", res.Upserted).
		Int("inserted", len(res.Inserted)).
		Int("skipped", res.Skipped).
		Int("failed_batches", res.FailedBatches).
		Msg("Account sync finished")
	return res
}

// StartCursor is where an account's fetch resumes: its own cursor, else
// the connection's, else empty for a full sync. A sync never advances the
// connection cursor.
func StartCursor(item domain.AccountWithConnection) string {
	if item.Account.LastCursorSync != "" {
		return item.Account.LastCursorSync
	}
	return item.Connection.LastCursorSync
}

func (s *AccountSyncer) archive(ctx context.Context, item domain.AccountWithConnection, pages []*provider.TransactionsPage) {
	if s.archiver == nil {
		return
	}
	at := s.now()
	for i, page := range pages {
		ref := PageRef{
			TeamID:       item.Connection.TeamID,
			ConnectionID: item.Connection.ID,
			AccountID:    item.Account.ID,
			Page:         i,
			FetchedAt:    at,
		}
		if err := s.archiver.ArchivePage(ctx, ref, page); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Int("page", i).Msg("Failed to archive raw page")
		}
	}
}

func (s *AccountSyncer) transform(ctx context.Context, item domain.AccountWithConnection, records []provider.Transaction, res *AccountResult) []domain.Transaction {
	link := transform.Linkage{TeamID: item.Account.TeamID, BankAccountID: item.Account.ID}
	out := make([]domain.Transaction, 0, len(records))
	for _, rec := range records {
		tx, err := transform.Transform(rec, link)
		if err != nil {
			res.Skipped++
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("transaction_id", rec.ID).Msg("Skipping malformed transaction")
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (s *AccountSyncer) upsert(ctx context.Context, txs []domain.Transaction, res *AccountResult) {
	log := logger.FromContext(ctx)

	outcome := batch.Process(ctx, txs, s.batchSize, func(ctx context.Context, chunk []domain.Transaction) ([]domain.Transaction, error) {
		return s.transactions.UpsertTransactions(ctx, chunk)
	})

	for _, r := range outcome.Results {
		if r.Err != nil {
			log.Error().
				Err(r.Err).
				Int("batch", r.Index).
				Int("batch_size", len(r.Items)).
				Msg("Failed to upsert transaction batch")
			continue
		}
		res.Upserted += len(r.Items)
		res.Inserted = append(res.Inserted, r.Value...)
		log.Debug().
			Int("batch", r.Index).
			Int("batch_size", len(r.Items)).
			Int("inserted", len(r.Value)).
			Msg("Upserted transaction batch")
	}
	res.FailedBatches = outcome.Failed
}

// updateBalance refreshes the balance and, on success, touches the
// connection. The account cursor is only written when its own fetch
// succeeded.
func (s *AccountSyncer) updateBalance(ctx context.Context, item domain.AccountWithConnection, res *AccountResult) error {
	bal, err := s.gateway.GetBalance(ctx, provider.BalanceParams{
		Provider:    item.Connection.Provider,
		AccountID:   item.Account.ProviderID,
		AccessToken: item.Connection.AccessToken,
	})
	if err != nil {
		return fmt.Errorf("updateBalance: fetching balance: %w", err)
	}

	if err := s.accounts.UpdateAccountBalance(ctx, item.Account.ID, bal.Amount); err != nil {
		return fmt.Errorf("updateBalance: storing balance: %w", err)
	}

	log := logger.FromContext(ctx)
	if res.FetchErr == nil {
		if err := s.accounts.UpdateAccountCursor(ctx, item.Account.ID, res.Cursor); err != nil {
			log.Error().Err(err).Msg("Failed to persist sync cursor")
		}
	}
	if err := s.connections.TouchConnection(ctx, item.Connection.ID, s.now()); err != nil {
		log.Error().Err(err).Msg("Failed to persist sync progress")
	}
	return nil
}
