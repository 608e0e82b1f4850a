package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/dvloznov/bank-sync/internal/provider"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NoInformation is the name given to a transaction without any usable text.
const NoInformation = "No information"

// internalIDNamespace scopes the name-based UUIDs used as internal_id.
var internalIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dvloznov/bank-sync/transactions"))

// Linkage ties a provider record to the team and bank account it belongs to.
type Linkage struct {
	TeamID        string
	BankAccountID string
}

// bankTransactionMethods maps provider bank transaction codes to methods.
var bankTransactionMethods = map[string]domain.TransactionMethod{
	"Payment":                  domain.MethodPayment,
	"Bankgiro payment":         domain.MethodPayment,
	"Incoming foreign payment": domain.MethodPayment,
	"Card purchase":            domain.MethodCardPurchase,
	"Card foreign purchase":    domain.MethodCardPurchase,
	"Card ATM":                 domain.MethodCardATM,
	"Transfer":                 domain.MethodTransfer,
}

// Transform converts a provider record into the canonical transaction.
// It fails only when the record's date cannot be parsed.
func Transform(tx provider.Transaction, link Linkage) (domain.Transaction, error) {
	date, err := parseDate(tx.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Transform: transaction %q: %w", tx.ID, err)
	}

	name := transactionName(tx)

	out := domain.Transaction{
		ID:             tx.ID,
		TeamID:         link.TeamID,
		BankAccountID:  link.BankAccountID,
		Date:           date,
		Amount:         tx.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(tx.Currency)),
		Name:           name,
		Description:    transactionDescription(tx, name),
		Method:         transactionMethod(tx),
		Category:       transactionCategory(tx),
		Status:         transactionStatus(tx.Status),
		BalanceAfter:   tx.Balance,
		CurrencySource: optionalString(tx.CurrencySource),
		Recurring:      tx.Recurring,
	}
	if tx.CurrencyRate != nil && !tx.CurrencyRate.IsZero() && out.CurrencySource != nil {
		out.CurrencyRate = tx.CurrencyRate
	} else {
		out.CurrencySource = nil
	}
	out.InternalID = InternalID(link, tx, date)

	return out, nil
}

// InternalID returns the idempotence key for a provider record. Records with
// an upstream id are keyed by team, account and that id; the rest fall back
// to their content.
func InternalID(link Linkage, tx provider.Transaction, date time.Time) string {
	key := tx.ID
	if strings.TrimSpace(key) == "" {
		key = strings.Join([]string{
			date.Format("2006-01-02"),
			tx.Amount.String(),
			strings.ToUpper(tx.Currency),
			tx.Name,
			tx.Description,
		}, "|")
	}
	name := link.TeamID + "|" + link.BankAccountID + "|" + key
	return uuid.NewSHA1(internalIDNamespace, []byte(name)).String()
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func transactionMethod(tx provider.Transaction) domain.TransactionMethod {
	if m, ok := bankTransactionMethods[tx.BankTransactionCode]; ok {
		return m
	}
	switch m := domain.TransactionMethod(strings.ToLower(tx.Method)); m {
	case domain.MethodPayment, domain.MethodCardPurchase, domain.MethodCardATM, domain.MethodTransfer:
		return m
	}
	return domain.MethodOther
}

func transactionCategory(tx provider.Transaction) *domain.TransactionCategory {
	var c domain.TransactionCategory
	switch {
	case tx.Amount.IsPositive():
		c = domain.CategoryIncome
	case tx.BankTransactionCode == "Transfer":
		c = domain.CategoryTransfer
	default:
		switch domain.TransactionCategory(strings.ToLower(tx.Category)) {
		case domain.CategoryIncome:
			c = domain.CategoryIncome
		case domain.CategoryTransfer:
			c = domain.CategoryTransfer
		default:
			return nil
		}
	}
	return &c
}

func transactionStatus(s string) domain.TransactionStatus {
	if domain.TransactionStatus(strings.ToLower(s)) == domain.StatusPending {
		return domain.StatusPending
	}
	return domain.StatusPosted
}

func transactionName(tx provider.Transaction) string {
	for _, candidate := range []string{tx.Name, tx.CreditorName, tx.DebtorName, tx.Description} {
		if n := capitalize(candidate); n != "" {
			return n
		}
	}
	return NoInformation
}

func transactionDescription(tx provider.Transaction, name string) *string {
	d := capitalize(tx.Description)
	if d == "" || d == name {
		return nil
	}
	return &d
}

// capitalize collapses whitespace and title-cases every word.
// A Caser is not safe for concurrent use, so one is made per call.
func capitalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(s)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
