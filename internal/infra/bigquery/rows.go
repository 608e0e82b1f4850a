package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/shopspring/decimal"
)

// ConnectionRow is a row of the bank_connections table.
type ConnectionRow struct {
	ConnectionID   string                 `bigquery:"connection_id"`
	TeamID         string                 `bigquery:"team_id"`
	Provider       string                 `bigquery:"provider"`
	AccessToken    bigquery.NullString    `bigquery:"access_token"`
	Status         string                 `bigquery:"status"`
	LastAccessed   bigquery.NullTimestamp `bigquery:"last_accessed"`
	LastCursorSync bigquery.NullString    `bigquery:"last_cursor_sync"`
	ErrorDetails   bigquery.NullString    `bigquery:"error_details"`
}

// AccountRow is a row of the bank_accounts table.
type AccountRow struct {
	AccountID         string              `bigquery:"account_id"`
	TeamID            string              `bigquery:"team_id"`
	ProviderAccountID string              `bigquery:"provider_account_id"`
	AccountType       bigquery.NullString `bigquery:"account_type"`
	Balance           *big.Rat            `bigquery:"balance"` // NUMERIC
	Enabled           bool                `bigquery:"enabled"`
	ConnectionID      string              `bigquery:"connection_id"`
	LastCursorSync    bigquery.NullString `bigquery:"last_cursor_sync"`
}

// TransactionRow is a row of the transactions table.
type TransactionRow struct {
	InternalID    string `bigquery:"internal_id"` // REQUIRED, dedup key
	TransactionID string `bigquery:"transaction_id"`
	TeamID        string `bigquery:"team_id"`
	AccountID     string `bigquery:"account_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"`

	Amount   *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"`

	Name        string              `bigquery:"name"`
	Description bigquery.NullString `bigquery:"description"`

	Method   string              `bigquery:"method"`
	Category bigquery.NullString `bigquery:"category"`
	Status   string              `bigquery:"status"`

	BalanceAfter   *big.Rat            `bigquery:"balance_after"` // NULLABLE NUMERIC
	CurrencyRate   *big.Rat            `bigquery:"currency_rate"` // NULLABLE NUMERIC
	CurrencySource bigquery.NullString `bigquery:"currency_source"`

	Recurring bool      `bigquery:"recurring"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

// newTransactionRow maps a domain transaction into its warehouse row.
func newTransactionRow(tx domain.Transaction, now time.Time) *TransactionRow {
	row := &TransactionRow{
		InternalID:      tx.InternalID,
		TransactionID:   tx.ID,
		TeamID:          tx.TeamID,
		AccountID:       tx.BankAccountID,
		TransactionDate: civil.DateOf(tx.Date),
		Amount:          tx.Amount.Rat(),
		Currency:        tx.Currency,
		Name:            tx.Name,
		Description:     nullString(tx.Description),
		Method:          string(tx.Method),
		Status:          string(tx.Status),
		BalanceAfter:    ratOrNil(tx.BalanceAfter),
		CurrencyRate:    ratOrNil(tx.CurrencyRate),
		CurrencySource:  nullString(tx.CurrencySource),
		Recurring:       tx.Recurring,
		CreatedTS:       now,
	}
	if tx.Category != nil {
		row.Category = bigquery.NullString{StringVal: string(*tx.Category), Valid: true}
	}
	return row
}

// toAccountWithConnection joins an account row with its connection row.
func toAccountWithConnection(a AccountRow, c ConnectionRow) (domain.AccountWithConnection, error) {
	balance := decimal.Zero
	if a.Balance != nil {
		b, err := decimal.NewFromString(a.Balance.FloatString(numericScale))
		if err != nil {
			return domain.AccountWithConnection{}, fmt.Errorf("account %s balance: %w", a.AccountID, err)
		}
		balance = b
	}

	status, err := domain.ParseConnectionStatus(c.Status)
	if err != nil {
		status = domain.ConnectionUnknown
	}

	conn := domain.BankConnection{
		ID:             c.ConnectionID,
		TeamID:         c.TeamID,
		Provider:       c.Provider,
		AccessToken:    c.AccessToken.StringVal,
		Status:         status,
		LastCursorSync: c.LastCursorSync.StringVal,
	}
	if c.LastAccessed.Valid {
		t := c.LastAccessed.Timestamp
		conn.LastAccessed = &t
	}
	if c.ErrorDetails.Valid {
		d := c.ErrorDetails.StringVal
		conn.ErrorDetails = &d
	}

	return domain.AccountWithConnection{
		Account: domain.BankAccount{
			ID:               a.AccountID,
			TeamID:           a.TeamID,
			ProviderID:       a.ProviderAccountID,
			Type:             a.AccountType.StringVal,
			Balance:          balance,
			Enabled:          a.Enabled,
			BankConnectionID: a.ConnectionID,
			LastCursorSync:   a.LastCursorSync.StringVal,
		},
		Connection: conn,
	}, nil
}

// numericScale is the number of decimal digits of a BigQuery NUMERIC.
const numericScale = 9

func ratOrNil(d *decimal.Decimal) *big.Rat {
	if d == nil {
		return nil
	}
	return d.Rat()
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}
