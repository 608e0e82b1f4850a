package syncjob

import (
	"context"
	"time"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/dvloznov/bank-sync/internal/provider"
	"github.com/shopspring/decimal"
)

// AccountStore reads accounts and writes balances.
type AccountStore interface {
	// ListEnabledAccounts returns the enabled accounts of a connection,
	// each joined with the connection. Disabled accounts are never returned.
	ListEnabledAccounts(ctx context.Context, teamID, connectionID string) ([]domain.AccountWithConnection, error)

	// UpdateAccountBalance overwrites the last-known balance of an account.
	UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error

	// UpdateAccountCursor stores the account's resume point for the next
	// incremental fetch.
	UpdateAccountCursor(ctx context.Context, accountID, cursor string) error
}

// ConnectionStore writes connection health and sync progress.
type ConnectionStore interface {
	// SetConnectionStatus sets status and error details; nil details clears them.
	SetConnectionStatus(ctx context.Context, connectionID string, status domain.ConnectionStatus, errorDetails *string) error

	// TouchConnection sets last_accessed.
	TouchConnection(ctx context.Context, connectionID string, at time.Time) error
}

// TransactionStore writes transactions keyed by internal_id.
type TransactionStore interface {
	// UpsertTransactions inserts rows whose internal_id is not yet stored
	// and ignores the rest. It returns the rows actually inserted.
	UpsertTransactions(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error)
}

// Store is everything a sync run reads and writes.
type Store interface {
	AccountStore
	ConnectionStore
	TransactionStore
}

// Gateway is the provider surface used by an account sync.
// *provider.Gateway implements it.
type Gateway interface {
	ListAll(ctx context.Context, params provider.ListTransactionsParams) (*provider.FetchResult, error)
	GetBalance(ctx context.Context, params provider.BalanceParams) (*provider.Balance, error)
}

// Notifier receives the transactions first inserted by a run.
type Notifier interface {
	NotifyTransactions(ctx context.Context, teamID string, txs []domain.Transaction) error
}

// Invalidator drops cached read views by tag.
type Invalidator interface {
	InvalidateTags(ctx context.Context, tags []string) error
}

// PageRef identifies one raw provider page.
type PageRef struct {
	TeamID       string
	ConnectionID string
	AccountID    string
	Page         int
	FetchedAt    time.Time
}

// Archiver stores raw provider pages for audit and replay.
type Archiver interface {
	ArchivePage(ctx context.Context, ref PageRef, page *provider.TransactionsPage) error
}
