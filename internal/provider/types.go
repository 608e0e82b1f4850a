package provider

import (
	"context"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/shopspring/decimal"
)

// Client is the upstream financial-data provider API.
// This interface enables swapping the HTTP client for fakes in tests.
type Client interface {
	// ListTransactions returns one page of transactions for an account.
	ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionsPage, error)

	// GetBalance returns the current balance of an account.
	GetBalance(ctx context.Context, params BalanceParams) (*Balance, error)
}

// ListTransactionsParams selects one page of an account's transactions.
type ListTransactionsParams struct {
	Provider    string
	AccountID   string
	AccountType domain.AccountClass
	AccessToken string
	Cursor      string // empty on the initial sync
	Latest      bool   // only the most recent window
}

// BalanceParams selects the account whose balance is fetched.
type BalanceParams struct {
	Provider    string
	AccountID   string
	AccessToken string
}

// TransactionsPage is one page of the provider's transaction listing.
type TransactionsPage struct {
	Data    []Transaction `json:"data"`
	Cursor  string        `json:"cursor"`
	HasMore bool          `json:"hasMore"`
}

// Transaction is a provider-native transaction record.
type Transaction struct {
	ID                  string           `json:"id"`
	Date                string           `json:"date"`
	Amount              decimal.Decimal  `json:"amount"`
	Currency            string           `json:"currency"`
	Name                string           `json:"name,omitempty"`
	CreditorName        string           `json:"creditor_name,omitempty"`
	DebtorName          string           `json:"debtor_name,omitempty"`
	Description         string           `json:"description,omitempty"`
	Method              string           `json:"method,omitempty"`
	BankTransactionCode string           `json:"bank_transaction_code,omitempty"`
	Category            string           `json:"category,omitempty"`
	Status              string           `json:"status,omitempty"`
	Balance             *decimal.Decimal `json:"balance,omitempty"`
	CurrencyRate        *decimal.Decimal `json:"currency_rate,omitempty"`
	CurrencySource      string           `json:"currency_source,omitempty"`
	Recurring           bool             `json:"recurring,omitempty"`
}

// Balance is the provider's view of an account balance.
type Balance struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}
