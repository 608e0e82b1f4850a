// Package postgres is the primary store, backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store implements the sync stores over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn. maxConns of 0 keeps the pgx
// default.
func NewStore(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewStore: parsing dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewStore: pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an existing pool.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ListEnabledAccounts implements syncjob.AccountStore.
func (s *Store) ListEnabledAccounts(ctx context.Context, teamID, connectionID string) ([]domain.AccountWithConnection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.team_id, a.account_id, COALESCE(a.type, ''), a.balance::text, a.enabled, COALESCE(a.last_cursor_sync, ''),
		       c.id, c.team_id, c.provider, COALESCE(c.access_token, ''), c.status,
		       c.last_accessed, COALESCE(c.last_cursor_sync, ''), c.error_details
		FROM bank_accounts a
		JOIN bank_connections c ON c.id = a.bank_connection_id
		WHERE a.team_id = $1 AND a.bank_connection_id = $2 AND a.enabled
		ORDER BY a.id`,
		teamID, connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListEnabledAccounts: query: %w", err)
	}
	defer rows.Close()

	var out []domain.AccountWithConnection
	for rows.Next() {
		var (
			item    domain.AccountWithConnection
			balance string
			status  string
		)
		if err := rows.Scan(
			&item.Account.ID, &item.Account.TeamID, &item.Account.ProviderID, &item.Account.Type, &balance, &item.Account.Enabled, &item.Account.LastCursorSync,
			&item.Connection.ID, &item.Connection.TeamID, &item.Connection.Provider, &item.Connection.AccessToken, &status,
			&item.Connection.LastAccessed, &item.Connection.LastCursorSync, &item.Connection.ErrorDetails,
		); err != nil {
			return nil, fmt.Errorf("ListEnabledAccounts: scan: %w", err)
		}

		if item.Account.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("ListEnabledAccounts: account %s balance %q: %w", item.Account.ID, balance, err)
		}
		if item.Connection.Status, err = domain.ParseConnectionStatus(status); err != nil {
			item.Connection.Status = domain.ConnectionUnknown
		}
		item.Account.BankConnectionID = item.Connection.ID
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEnabledAccounts: rows: %w", err)
	}
	return out, nil
}

// UpdateAccountBalance implements syncjob.AccountStore.
func (s *Store) UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bank_accounts SET balance = $2::numeric WHERE id = $1`,
		accountID, balance.String(),
	)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateAccountBalance: account %q not found", accountID)
	}
	return nil
}

// UpdateAccountCursor implements syncjob.AccountStore.
func (s *Store) UpdateAccountCursor(ctx context.Context, accountID, cursor string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bank_accounts SET last_cursor_sync = $2 WHERE id = $1`,
		accountID, cursor,
	)
	if err != nil {
		return fmt.Errorf("UpdateAccountCursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateAccountCursor: account %q not found", accountID)
	}
	return nil
}

// SetConnectionStatus implements syncjob.ConnectionStore.
func (s *Store) SetConnectionStatus(ctx context.Context, connectionID string, status domain.ConnectionStatus, errorDetails *string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bank_connections SET status = $2, error_details = $3 WHERE id = $1`,
		connectionID, string(status), errorDetails,
	)
	if err != nil {
		return fmt.Errorf("SetConnectionStatus: %w", err)
	}
	return nil
}

// TouchConnection implements syncjob.ConnectionStore.
func (s *Store) TouchConnection(ctx context.Context, connectionID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bank_connections SET last_accessed = $2 WHERE id = $1`,
		connectionID, at,
	)
	if err != nil {
		return fmt.Errorf("TouchConnection: %w", err)
	}
	return nil
}

// ListSyncableConnections implements jobs.ConnectionLister.
func (s *Store) ListSyncableConnections(ctx context.Context) ([]domain.ConnectionRef, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, team_id FROM bank_connections WHERE status <> 'disconnected' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListSyncableConnections: query: %w", err)
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ConnectionRef, error) {
		var ref domain.ConnectionRef
		err := row.Scan(&ref.ConnectionID, &ref.TeamID)
		return ref, err
	})
	if err != nil {
		return nil, fmt.Errorf("ListSyncableConnections: %w", err)
	}
	return refs, nil
}

// transactionColumns is the insert column order used by buildUpsert.
var transactionColumns = []string{
	"internal_id", "id", "team_id", "bank_account_id", "date", "amount", "currency",
	"name", "description", "method", "category", "status", "balance",
	"currency_rate", "currency_source", "recurring",
}

// numericColumns are cast from their text encoding.
var numericColumns = map[string]bool{"amount": true, "balance": true, "currency_rate": true}

// maxBindParameters is the PostgreSQL limit on parameters per statement.
const maxBindParameters = 65535

// maxRowsPerStatement is how many rows fit in one INSERT.
var maxRowsPerStatement = maxBindParameters / len(transactionColumns)

// UpsertTransactions implements syncjob.TransactionStore with
// INSERT ... ON CONFLICT (internal_id) DO NOTHING. Batches larger than one
// statement allows are split and written in a single database transaction,
// so a batch is stored entirely or not at all.
func (s *Store) UpsertTransactions(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("UpsertTransactions: begin: %w", err)
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	insertedIDs := make(map[string]bool, len(txs))
	for _, chunk := range splitRows(txs, maxRowsPerStatement) {
		sql, args := buildUpsert(chunk)
		rows, err := dbTx.Query(ctx, sql, args...)
		if err != nil {
			return nil, fmt.Errorf("UpsertTransactions: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, fmt.Errorf("UpsertTransactions: %w", err)
		}
		for _, id := range ids {
			insertedIDs[id] = true
		}
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("UpsertTransactions: commit: %w", err)
	}

	inserted := make([]domain.Transaction, 0, len(insertedIDs))
	for _, tx := range txs {
		if insertedIDs[tx.InternalID] {
			inserted = append(inserted, tx)
			delete(insertedIDs, tx.InternalID)
		}
	}
	return inserted, nil
}

// splitRows cuts txs into consecutive slices of at most n rows.
func splitRows(txs []domain.Transaction, n int) [][]domain.Transaction {
	var out [][]domain.Transaction
	for len(txs) > n {
		out = append(out, txs[:n])
		txs = txs[n:]
	}
	if len(txs) > 0 {
		out = append(out, txs)
	}
	return out
}

func buildUpsert(txs []domain.Transaction) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO transactions (")
	b.WriteString(strings.Join(transactionColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(txs)*len(transactionColumns))
	for i, tx := range txs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, col := range transactionColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", len(args)+j+1)
			if numericColumns[col] {
				b.WriteString("::numeric")
			}
		}
		b.WriteByte(')')
		args = append(args, transactionArgs(tx)...)
	}
	b.WriteString(" ON CONFLICT (internal_id) DO NOTHING RETURNING internal_id")
	return b.String(), args
}

func transactionArgs(tx domain.Transaction) []any {
	var category *string
	if tx.Category != nil {
		c := string(*tx.Category)
		category = &c
	}
	return []any{
		tx.InternalID,
		tx.ID,
		tx.TeamID,
		tx.BankAccountID,
		tx.Date,
		tx.Amount.String(),
		tx.Currency,
		tx.Name,
		tx.Description,
		string(tx.Method),
		category,
		string(tx.Status),
		decimalText(tx.BalanceAfter),
		decimalText(tx.CurrencyRate),
		tx.CurrencySource,
		tx.Recurring,
	}
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
