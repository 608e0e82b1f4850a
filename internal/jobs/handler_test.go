package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/bank-sync/internal/provider"
	"github.com/dvloznov/bank-sync/internal/syncjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	SyncFunc func(ctx context.Context, connectionID, teamID string) (*syncjob.SyncResult, error)
	calls    int
}

func (m *mockRunner) Sync(ctx context.Context, connectionID, teamID string) (*syncjob.SyncResult, error) {
	m.calls++
	return m.SyncFunc(ctx, connectionID, teamID)
}

func TestSyncHandler_StoresResult(t *testing.T) {
	runner := &mockRunner{SyncFunc: func(ctx context.Context, connectionID, teamID string) (*syncjob.SyncResult, error) {
		assert.Equal(t, "conn-1", connectionID)
		assert.Equal(t, "team-1", teamID)
		return &syncjob.SyncResult{
			Success:            false,
			TotalUpserts:       3,
			TotalFailedUpserts: 1,
			FailedAccounts:     1,
			NewTransactions:    2,
			ErrorClass:         provider.ClassRateLimit,
		}, nil
	}}
	job := &SyncConnectionJob{JobID: "j1", Payload: SyncPayload{ConnectionID: "conn-1", TeamID: "team-1"}}

	err := NewSyncHandler(runner)(context.Background(), job)

	require.NoError(t, err, "partial failures complete the job")
	require.NotNil(t, job.Result)
	assert.Equal(t, SyncResult{
		TotalUpserts:       3,
		TotalFailedUpserts: 1,
		FailedAccounts:     1,
		NewTransactions:    2,
		ErrorClass:         "rate_limit",
	}, *job.Result)
}

func TestSyncHandler_RunErrorIsRetryable(t *testing.T) {
	boom := errors.New("database unavailable")
	runner := &mockRunner{SyncFunc: func(ctx context.Context, connectionID, teamID string) (*syncjob.SyncResult, error) {
		return nil, boom
	}}
	job := &SyncConnectionJob{JobID: "j1", Payload: SyncPayload{ConnectionID: "conn-1", TeamID: "team-1"}}

	err := NewSyncHandler(runner)(context.Background(), job)

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, job.Result)
}

func TestSyncHandler_InvalidPayload(t *testing.T) {
	runner := &mockRunner{}

	err := NewSyncHandler(runner)(context.Background(), &SyncConnectionJob{JobID: "j1"})

	assert.Error(t, err)
	assert.Zero(t, runner.calls)
}
