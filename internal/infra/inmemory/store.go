// Package inmemory is a process-local store for tests and dry runs.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/shopspring/decimal"
)

// Store keeps connections, accounts and transactions in maps.
// It is safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	connections  map[string]domain.BankConnection
	accounts     map[string]domain.BankAccount
	accountOrder []string
	transactions map[string]domain.Transaction // keyed by internal_id
	txOrder      []string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		connections:  make(map[string]domain.BankConnection),
		accounts:     make(map[string]domain.BankAccount),
		transactions: make(map[string]domain.Transaction),
	}
}

// PutConnection adds or replaces a connection.
func (s *Store) PutConnection(c domain.BankConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[c.ID] = c
}

// PutAccount adds or replaces an account.
func (s *Store) PutAccount(a domain.BankAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		s.accountOrder = append(s.accountOrder, a.ID)
	}
	s.accounts[a.ID] = a
}

// Connection returns a copy of the stored connection.
func (s *Store) Connection(id string) (domain.BankConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[id]
	return c, ok
}

// Account returns a copy of the stored account.
func (s *Store) Account(id string) (domain.BankAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// Transactions returns the team's transactions in insertion order.
func (s *Store) Transactions(teamID string) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transaction
	for _, id := range s.txOrder {
		if tx := s.transactions[id]; tx.TeamID == teamID {
			out = append(out, tx)
		}
	}
	return out
}

// ListEnabledAccounts implements syncjob.AccountStore.
func (s *Store) ListEnabledAccounts(ctx context.Context, teamID, connectionID string) ([]domain.AccountWithConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.connections[connectionID]
	if !ok || conn.TeamID != teamID {
		return nil, nil
	}

	var out []domain.AccountWithConnection
	for _, id := range s.accountOrder {
		a := s.accounts[id]
		if a.Enabled && a.TeamID == teamID && a.BankConnectionID == connectionID {
			out = append(out, domain.AccountWithConnection{Account: a, Connection: conn})
		}
	}
	return out, nil
}

// UpdateAccountBalance implements syncjob.AccountStore.
func (s *Store) UpdateAccountBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("UpdateAccountBalance: account %q not found", accountID)
	}
	a.Balance = balance
	s.accounts[accountID] = a
	return nil
}

// UpdateAccountCursor implements syncjob.AccountStore.
func (s *Store) UpdateAccountCursor(ctx context.Context, accountID, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("UpdateAccountCursor: account %q not found", accountID)
	}
	a.LastCursorSync = cursor
	s.accounts[accountID] = a
	return nil
}

// SetConnectionStatus implements syncjob.ConnectionStore.
func (s *Store) SetConnectionStatus(ctx context.Context, connectionID string, status domain.ConnectionStatus, errorDetails *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return fmt.Errorf("SetConnectionStatus: connection %q not found", connectionID)
	}
	c.Status = status
	c.ErrorDetails = nil
	if errorDetails != nil {
		d := *errorDetails
		c.ErrorDetails = &d
	}
	s.connections[connectionID] = c
	return nil
}

// TouchConnection implements syncjob.ConnectionStore.
func (s *Store) TouchConnection(ctx context.Context, connectionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return fmt.Errorf("TouchConnection: connection %q not found", connectionID)
	}
	c.LastAccessed = &at
	s.connections[connectionID] = c
	return nil
}

// UpsertTransactions implements syncjob.TransactionStore. Rows whose
// internal_id already exists are left untouched. An invalid row rejects the
// whole batch before anything is written.
func (s *Store) UpsertTransactions(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		if tx.InternalID == "" {
			return nil, fmt.Errorf("UpsertTransactions: transaction %q has no internal id", tx.ID)
		}
	}

	var inserted []domain.Transaction
	for _, tx := range txs {
		if _, exists := s.transactions[tx.InternalID]; exists {
			continue
		}
		s.transactions[tx.InternalID] = tx
		s.txOrder = append(s.txOrder, tx.InternalID)
		inserted = append(inserted, tx)
	}
	return inserted, nil
}

// ListSyncableConnections implements jobs.ConnectionLister. Disconnected
// connections are skipped until the user reconnects them.
func (s *Store) ListSyncableConnections(ctx context.Context) ([]domain.ConnectionRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ConnectionRef
	for _, c := range s.connections {
		if c.Status == domain.ConnectionDisconnected {
			continue
		}
		out = append(out, domain.ConnectionRef{ConnectionID: c.ID, TeamID: c.TeamID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out, nil
}
