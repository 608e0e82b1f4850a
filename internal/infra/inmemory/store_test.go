package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed() *Store {
	s := New()
	s.PutConnection(domain.BankConnection{ID: "c1", TeamID: "t1", Status: domain.ConnectionConnected})
	s.PutConnection(domain.BankConnection{ID: "c2", TeamID: "t1", Status: domain.ConnectionDisconnected})
	s.PutAccount(domain.BankAccount{ID: "a1", TeamID: "t1", BankConnectionID: "c1", Enabled: true})
	s.PutAccount(domain.BankAccount{ID: "a2", TeamID: "t1", BankConnectionID: "c1", Enabled: false})
	s.PutAccount(domain.BankAccount{ID: "a3", TeamID: "t1", BankConnectionID: "c2", Enabled: true})
	return s
}

func TestStore_ListEnabledAccounts(t *testing.T) {
	s := seed()

	got, err := s.ListEnabledAccounts(context.Background(), "t1", "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].Account.ID)
	assert.Equal(t, "c1", got[0].Connection.ID)

	got, err = s.ListEnabledAccounts(context.Background(), "other-team", "c1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_UpsertTransactions_IgnoresDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := domain.Transaction{ID: "x", InternalID: "k1", TeamID: "t1", Name: "Original"}

	inserted, err := s.UpsertTransactions(ctx, []domain.Transaction{first})
	require.NoError(t, err)
	assert.Len(t, inserted, 1)

	stale := first
	stale.Name = "Stale"
	inserted, err = s.UpsertTransactions(ctx, []domain.Transaction{stale, {ID: "y", InternalID: "k2", TeamID: "t1"}})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, "k2", inserted[0].InternalID)

	all := s.Transactions("t1")
	require.Len(t, all, 2)
	assert.Equal(t, "Original", all[0].Name)
}

func TestStore_UpsertTransactions_RequiresInternalID(t *testing.T) {
	_, err := New().UpsertTransactions(context.Background(), []domain.Transaction{{ID: "x"}})
	assert.Error(t, err)
}

func TestStore_UpsertTransactions_InvalidRowWritesNothing(t *testing.T) {
	s := New()
	inserted, err := s.UpsertTransactions(context.Background(), []domain.Transaction{
		{ID: "ok", InternalID: "k1", TeamID: "t1"},
		{ID: "bad", TeamID: "t1"},
	})

	assert.Error(t, err)
	assert.Empty(t, inserted)
	assert.Empty(t, s.Transactions("t1"))
}

func TestStore_ConnectionUpdates(t *testing.T) {
	s := seed()
	ctx := context.Background()

	details := "credential revoked"
	require.NoError(t, s.SetConnectionStatus(ctx, "c1", domain.ConnectionDisconnected, &details))
	c, _ := s.Connection("c1")
	assert.Equal(t, domain.ConnectionDisconnected, c.Status)
	require.NotNil(t, c.ErrorDetails)
	assert.Equal(t, details, *c.ErrorDetails)

	require.NoError(t, s.SetConnectionStatus(ctx, "c1", domain.ConnectionConnected, nil))
	c, _ = s.Connection("c1")
	assert.Nil(t, c.ErrorDetails)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.TouchConnection(ctx, "c1", at))
	c, _ = s.Connection("c1")
	assert.Equal(t, at, *c.LastAccessed)

	assert.Error(t, s.TouchConnection(ctx, "missing", at))
}

func TestStore_UpdateAccountCursor(t *testing.T) {
	s := seed()
	require.NoError(t, s.UpdateAccountCursor(context.Background(), "a1", "next"))
	a, _ := s.Account("a1")
	assert.Equal(t, "next", a.LastCursorSync)

	assert.Error(t, s.UpdateAccountCursor(context.Background(), "missing", "next"))
}

func TestStore_UpdateAccountBalance(t *testing.T) {
	s := seed()
	require.NoError(t, s.UpdateAccountBalance(context.Background(), "a1", decimal.RequireFromString("12.34")))
	a, _ := s.Account("a1")
	assert.Equal(t, "12.34", a.Balance.String())

	assert.Error(t, s.UpdateAccountBalance(context.Background(), "missing", decimal.Zero))
}

func TestStore_ListSyncableConnections(t *testing.T) {
	got, err := seed().ListSyncableConnections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ConnectionRef{{ConnectionID: "c1", TeamID: "t1"}}, got)
}
