package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/bank-sync/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(id, conn string, status jobs.JobStatus, createdAt int64) *jobs.SyncConnectionJob {
	return &jobs.SyncConnectionJob{
		JobID:     id,
		Payload:   jobs.SyncPayload{ConnectionID: conn, TeamID: "team-1"},
		Status:    status,
		CreatedAt: time.Unix(createdAt, 0),
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	job := newJob("j1", "conn-1", jobs.JobStatusPending, 1)

	require.NoError(t, s.SaveJob(ctx, job))
	job.Status = jobs.JobStatusRunning

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status, "store keeps its own copy")

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	assert.Error(t, s.SaveJob(ctx, &jobs.SyncConnectionJob{}))
}

func TestStore_ListJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, j := range []*jobs.SyncConnectionJob{
		newJob("j1", "conn-1", jobs.JobStatusCompleted, 1),
		newJob("j2", "conn-1", jobs.JobStatusPending, 2),
		newJob("j3", "conn-2", jobs.JobStatusRunning, 3),
	} {
		require.NoError(t, s.SaveJob(ctx, j))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "all newest first", filter: jobs.JobFilter{}, want: []string{"j3", "j2", "j1"}},
		{name: "by connection", filter: jobs.JobFilter{ConnectionID: "conn-1"}, want: []string{"j2", "j1"}},
		{name: "by statuses", filter: jobs.JobFilter{Statuses: []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusRunning}}, want: []string{"j3", "j2"}},
		{name: "limit", filter: jobs.JobFilter{Limit: 1}, want: []string{"j3"}},
		{name: "offset", filter: jobs.JobFilter{Offset: 2}, want: []string{"j1"}},
		{name: "offset past end", filter: jobs.JobFilter{Offset: 5}, want: []string{}},
		{name: "by team", filter: jobs.JobFilter{TeamID: "team-9"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveJob(ctx, newJob("j1", "conn-1", jobs.JobStatusRunning, 1)))

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"))

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound)
}
