package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataset_Table(t *testing.T) {
	ds := Dataset{Project: "proj", Name: "banksync"}
	assert.Equal(t, "`proj.banksync.transactions`", ds.table(transactionsTable))
}

func TestNewTransactionRow(t *testing.T) {
	desc := "Invoice 42"
	cat := domain.CategoryIncome
	bal := decimal.RequireFromString("100.25")
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	row := newTransactionRow(domain.Transaction{
		ID:            "t1",
		InternalID:    "k1",
		TeamID:        "team",
		BankAccountID: "acct",
		Date:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.RequireFromString("-12.5"),
		Currency:      "EUR",
		Name:          "Acme",
		Description:   &desc,
		Method:        domain.MethodPayment,
		Category:      &cat,
		Status:        domain.StatusPosted,
		BalanceAfter:  &bal,
	}, now)

	assert.Equal(t, "k1", row.InternalID)
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, row.TransactionDate)
	assert.Equal(t, "-25/2", row.Amount.String())
	assert.Equal(t, bigquery.NullString{StringVal: "Invoice 42", Valid: true}, row.Description)
	assert.Equal(t, bigquery.NullString{StringVal: "income", Valid: true}, row.Category)
	require.NotNil(t, row.BalanceAfter)
	assert.Equal(t, "401/4", row.BalanceAfter.String())
	assert.Nil(t, row.CurrencyRate)
	assert.False(t, row.CurrencySource.Valid)
	assert.Equal(t, now, row.CreatedTS)
}

func TestEnabledAccountRow_ToDomain(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	row := enabledAccountRow{
		AccountID:         "a1",
		TeamID:            "team",
		ProviderAccountID: "p1",
		AccountType:       bigquery.NullString{StringVal: "checking", Valid: true},
		Balance:           bigquery.NullString{StringVal: "1234.5", Valid: true},
		Enabled:           true,
		ConnectionID:      "c1",
		Provider:          "plaid",
		Status:            "DISCONNECTED",
		LastAccessed:      bigquery.NullTimestamp{Timestamp: ts, Valid: true},
		LastCursorSync:    bigquery.NullString{StringVal: "cur", Valid: true},
		AccountCursor:     bigquery.NullString{StringVal: "acct-cur", Valid: true},
	}

	got, err := row.toDomain()
	require.NoError(t, err)

	assert.Equal(t, "a1", got.Account.ID)
	assert.Equal(t, "checking", got.Account.Type)
	assert.Equal(t, "1234.5", got.Account.Balance.String())
	assert.Equal(t, "c1", got.Account.BankConnectionID)
	assert.Equal(t, domain.ConnectionDisconnected, got.Connection.Status)
	require.NotNil(t, got.Connection.LastAccessed)
	assert.Equal(t, ts, *got.Connection.LastAccessed)
	assert.Equal(t, "cur", got.Connection.LastCursorSync)
	assert.Equal(t, "acct-cur", got.Account.LastCursorSync)
	assert.Nil(t, got.Connection.ErrorDetails)
}

func TestEnabledAccountRow_BadStatusIsUnknown(t *testing.T) {
	got, err := enabledAccountRow{AccountID: "a1", Status: "weird"}.toDomain()
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionUnknown, got.Connection.Status)
	assert.True(t, got.Account.Balance.IsZero())
}

func TestInferSchema(t *testing.T) {
	for _, row := range []interface{}{ConnectionRow{}, AccountRow{}, TransactionRow{}} {
		_, err := bigquery.InferSchema(row)
		assert.NoError(t, err)
	}
}

func TestNewTransactionSaver_KeysByInternalID(t *testing.T) {
	saver := newTransactionSaver(domain.Transaction{ID: "t1", InternalID: "k1", Amount: decimal.RequireFromString("1")}, time.Now())

	assert.Equal(t, "k1", saver.InsertID)
	row, ok := saver.Struct.(*TransactionRow)
	require.True(t, ok)
	assert.Equal(t, "t1", row.TransactionID)
}

func TestMissingColumns(t *testing.T) {
	have := bigquery.Schema{
		{Name: "account_id", Type: bigquery.StringFieldType, Required: true},
	}
	want, err := bigquery.InferSchema(AccountRow{})
	require.NoError(t, err)

	var names []string
	for _, f := range missingColumns(have, want) {
		assert.False(t, f.Required)
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "last_cursor_sync")
	assert.Contains(t, names, "account_type")
	assert.NotContains(t, names, "account_id")
	assert.NotContains(t, names, "team_id", "required columns are never added")
}
