package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionMethod is the coarse payment method of a transaction.
type TransactionMethod string

const (
	MethodPayment      TransactionMethod = "payment"
	MethodCardPurchase TransactionMethod = "card_purchase"
	MethodCardATM      TransactionMethod = "card_atm"
	MethodTransfer     TransactionMethod = "transfer"
	MethodOther        TransactionMethod = "other"
)

// TransactionCategory is the category assigned during sync. Most
// transactions have none; the dashboard categorizes them later.
type TransactionCategory string

const (
	CategoryIncome   TransactionCategory = "income"
	CategoryTransfer TransactionCategory = "transfer"
)

// TransactionStatus mirrors the provider's booking state.
type TransactionStatus string

const (
	StatusPosted  TransactionStatus = "posted"
	StatusPending TransactionStatus = "pending"
)

// Transaction is the canonical stored transaction.
// This is a domain struct, not a table row; each store maps it into its own
// schema. InternalID is the upsert conflict key.
type Transaction struct {
	ID            string // provider transaction id
	InternalID    string // deterministic idempotence key
	TeamID        string
	BankAccountID string

	Date     time.Time // date only, UTC midnight
	Amount   decimal.Decimal
	Currency string

	Name        string
	Description *string

	Method   TransactionMethod
	Category *TransactionCategory
	Status   TransactionStatus

	BalanceAfter   *decimal.Decimal
	CurrencyRate   *decimal.Decimal
	CurrencySource *string

	Recurring bool
}
