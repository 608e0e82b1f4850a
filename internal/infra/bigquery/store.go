// Package bigquery is the warehouse store backed by Google BigQuery.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	connectionsTable  = "bank_connections"
	accountsTable     = "bank_accounts"
	transactionsTable = "transactions"
)

// Dataset locates the tables used by the store.
type Dataset struct {
	Project string
	Name    string
}

// table returns the backtick-quoted fully qualified table name.
func (d Dataset) table(name string) string {
	return "`" + d.Project + "." + d.Name + "." + name + "`"
}

// Store implements the sync stores over BigQuery. It holds a shared client
// to avoid creating a new connection for each operation.
type Store struct {
	client  *bigquery.Client
	dataset Dataset
	now     func() time.Time
}

// NewStore creates a Store with its own client for the project.
func NewStore(ctx context.Context, ds Dataset) (*Store, error) {
	client, err := bigquery.NewClient(ctx, ds.Project)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, ds), nil
}

// NewStoreWithClient creates a Store over an existing client.
func NewStoreWithClient(client *bigquery.Client, ds Dataset) *Store {
	return &Store{client: client, dataset: ds, now: time.Now}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ListEnabledAccounts delegates to ListEnabledAccountsWithClient with the shared client.
func (s *Store) ListEnabledAccounts(ctx context.Context, teamID, connectionID string) ([]domain.AccountWithConnection, error) {
	return ListEnabledAccountsWithClient(ctx, s.client, s.dataset, teamID, connectionID)
}

// UpdateAccountBalance delegates to UpdateAccountBalanceWithClient with the shared client.
func (s *Store) UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	return UpdateAccountBalanceWithClient(ctx, s.client, s.dataset, accountID, balance)
}

// UpdateAccountCursor delegates to UpdateAccountCursorWithClient with the shared client.
func (s *Store) UpdateAccountCursor(ctx context.Context, accountID, cursor string) error {
	return UpdateAccountCursorWithClient(ctx, s.client, s.dataset, accountID, cursor)
}

// SetConnectionStatus delegates to SetConnectionStatusWithClient with the shared client.
func (s *Store) SetConnectionStatus(ctx context.Context, connectionID string, status domain.ConnectionStatus, errorDetails *string) error {
	return SetConnectionStatusWithClient(ctx, s.client, s.dataset, connectionID, status, errorDetails)
}

// TouchConnection delegates to TouchConnectionWithClient with the shared client.
func (s *Store) TouchConnection(ctx context.Context, connectionID string, at time.Time) error {
	return TouchConnectionWithClient(ctx, s.client, s.dataset, connectionID, at)
}

// ListSyncableConnections delegates to ListSyncableConnectionsWithClient with the shared client.
func (s *Store) ListSyncableConnections(ctx context.Context) ([]domain.ConnectionRef, error) {
	return ListSyncableConnectionsWithClient(ctx, s.client, s.dataset)
}

// UpsertTransactions delegates to UpsertTransactionsWithClient with the shared client.
func (s *Store) UpsertTransactions(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error) {
	return UpsertTransactionsWithClient(ctx, s.client, s.dataset, txs, s.now())
}

// EnsureSchema delegates to EnsureSchemaWithClient with the shared client.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return EnsureSchemaWithClient(ctx, s.client, s.dataset)
}

// runDML runs a DML statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return stats.NumDMLAffectedRows, nil
	}
	return 0, nil
}
