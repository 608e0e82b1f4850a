package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// enabledAccountRow is one row of the account/connection join.
type enabledAccountRow struct {
	AccountID         string                 `bigquery:"account_id"`
	TeamID            string                 `bigquery:"team_id"`
	ProviderAccountID string                 `bigquery:"provider_account_id"`
	AccountType       bigquery.NullString    `bigquery:"account_type"`
	Balance           bigquery.NullString    `bigquery:"balance"`
	Enabled           bool                   `bigquery:"enabled"`
	AccountCursor     bigquery.NullString    `bigquery:"account_cursor"`
	ConnectionID      string                 `bigquery:"connection_id"`
	Provider          string                 `bigquery:"provider"`
	AccessToken       bigquery.NullString    `bigquery:"access_token"`
	Status            string                 `bigquery:"status"`
	LastAccessed      bigquery.NullTimestamp `bigquery:"last_accessed"`
	LastCursorSync    bigquery.NullString    `bigquery:"last_cursor_sync"`
	ErrorDetails      bigquery.NullString    `bigquery:"error_details"`
}

// ListEnabledAccountsWithClient lists the enabled accounts of a connection
// using the provided BigQuery client.
func ListEnabledAccountsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, teamID, connectionID string) ([]domain.AccountWithConnection, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			a.account_id,
			a.team_id,
			a.provider_account_id,
			a.account_type,
			CAST(a.balance AS STRING) AS balance,
			a.enabled,
			a.last_cursor_sync AS account_cursor,
			c.connection_id,
			c.provider,
			c.access_token,
			c.status,
			c.last_accessed,
			c.last_cursor_sync,
			c.error_details
		FROM %s a
		JOIN %s c ON c.connection_id = a.connection_id
		WHERE a.team_id = @team_id
		  AND a.connection_id = @connection_id
		  AND a.enabled
		ORDER BY a.account_id
	`, ds.table(accountsTable), ds.table(connectionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "team_id", Value: teamID},
		{Name: "connection_id", Value: connectionID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListEnabledAccountsWithClient: reading query: %w", err)
	}

	var out []domain.AccountWithConnection
	for {
		var row enabledAccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListEnabledAccountsWithClient: iterating: %w", err)
		}

		item, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListEnabledAccountsWithClient: %w", err)
		}
		out = append(out, item)
	}

	return out, nil
}

func (r enabledAccountRow) toDomain() (domain.AccountWithConnection, error) {
	account := AccountRow{
		AccountID:         r.AccountID,
		TeamID:            r.TeamID,
		ProviderAccountID: r.ProviderAccountID,
		AccountType:       r.AccountType,
		Enabled:           r.Enabled,
		ConnectionID:      r.ConnectionID,
		LastCursorSync:    r.AccountCursor,
	}
	if r.Balance.Valid {
		b, err := decimal.NewFromString(r.Balance.StringVal)
		if err != nil {
			return domain.AccountWithConnection{}, fmt.Errorf("account %s balance %q: %w", r.AccountID, r.Balance.StringVal, err)
		}
		account.Balance = b.Rat()
	}
	conn := ConnectionRow{
		ConnectionID:   r.ConnectionID,
		TeamID:         r.TeamID,
		Provider:       r.Provider,
		AccessToken:    r.AccessToken,
		Status:         r.Status,
		LastAccessed:   r.LastAccessed,
		LastCursorSync: r.LastCursorSync,
		ErrorDetails:   r.ErrorDetails,
	}
	return toAccountWithConnection(account, conn)
}

// UpdateAccountBalanceWithClient overwrites an account balance using the
// provided BigQuery client.
func UpdateAccountBalanceWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, accountID string, balance decimal.Decimal) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET balance = CAST(@balance AS NUMERIC)
		WHERE account_id = @account_id
	`, ds.table(accountsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "balance", Value: balance.String()},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalanceWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("UpdateAccountBalanceWithClient: account %q not found", accountID)
	}
	return nil
}

// UpdateAccountCursorWithClient stores an account's sync cursor using the
// provided BigQuery client.
func UpdateAccountCursorWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, accountID, cursor string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET last_cursor_sync = @cursor
		WHERE account_id = @account_id
	`, ds.table(accountsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "cursor", Value: cursor},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateAccountCursorWithClient: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("UpdateAccountCursorWithClient: account %q not found", accountID)
	}
	return nil
}
