package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConnectionStatus is the health of a bank connection as shown to the user.
type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionUnknown      ConnectionStatus = "unknown"
)

// Valid reports whether s is one of the known statuses.
func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionConnected, ConnectionDisconnected, ConnectionUnknown:
		return true
	}
	return false
}

// ParseConnectionStatus parses a stored status value.
func ParseConnectionStatus(v string) (ConnectionStatus, error) {
	s := ConnectionStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid connection status %q", v)
	}
	return s, nil
}

// AccountClass is the coarse account classification requested from the provider.
type AccountClass string

const (
	ClassDepository     AccountClass = "depository"
	ClassCredit         AccountClass = "credit"
	ClassOtherAsset     AccountClass = "other_asset"
	ClassLoan           AccountClass = "loan"
	ClassOtherLiability AccountClass = "other_liability"
	ClassUndefined      AccountClass = "undefined"
)

// BankConnection is one linkage between a team and an upstream provider.
type BankConnection struct {
	ID             string
	TeamID         string
	Provider       string
	AccessToken    string
	Status         ConnectionStatus
	LastAccessed   *time.Time
	LastCursorSync string
	ErrorDetails   *string
}

// BankAccount is one account under a connection.
type BankAccount struct {
	ID               string
	TeamID           string
	ProviderID       string // account id at the provider
	Type             string // free-form upstream vocabulary
	Balance          decimal.Decimal
	Enabled          bool
	BankConnectionID string

	// LastCursorSync is this account's resume point. Empty means the
	// connection's cursor is used, or a full sync when that is empty too.
	LastCursorSync string
}

// AccountWithConnection is an enabled account joined with its connection,
// which is the unit of work for one account sync.
type AccountWithConnection struct {
	Account    BankAccount
	Connection BankConnection
}

// ConnectionRef identifies a connection to schedule for sync.
type ConnectionRef struct {
	ConnectionID string
	TeamID       string
}
