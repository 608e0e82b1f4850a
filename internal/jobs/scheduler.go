package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/dvloznov/bank-sync/internal/logger"
)

// DefaultScheduleInterval is how often every connection is synced.
const DefaultScheduleInterval = 6 * time.Hour

// ConnectionLister returns the connections due for periodic sync.
type ConnectionLister interface {
	ListSyncableConnections(ctx context.Context) ([]domain.ConnectionRef, error)
}

// Scheduler periodically enqueues a sync job for every syncable connection.
type Scheduler struct {
	lister    ConnectionLister
	publisher Publisher
	store     JobStore
	interval  time.Duration
}

// NewScheduler creates a Scheduler. When store is non-nil, connections that
// already have a pending, running or retrying job are skipped.
func NewScheduler(lister ConnectionLister, publisher Publisher, store JobStore, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultScheduleInterval
	}
	return &Scheduler{lister: lister, publisher: publisher, store: store, interval: interval}
}

// Run enqueues immediately and then once per interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled sync round failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce enqueues one job per syncable connection and returns how many
// were enqueued.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	conns, err := s.lister.ListSyncableConnections(ctx)
	if err != nil {
		return 0, fmt.Errorf("RunOnce: listing connections: %w", err)
	}

	enqueued := 0
	for _, conn := range conns {
		busy, err := s.inFlight(ctx, conn.ConnectionID)
		if err != nil {
			return enqueued, fmt.Errorf("RunOnce: %w", err)
		}
		if busy {
			log.Debug().
				Str("connection_id", conn.ConnectionID).
				Msg("Sync already queued, skipping")
			continue
		}

		job := &SyncConnectionJob{
			Payload: SyncPayload{ConnectionID: conn.ConnectionID, TeamID: conn.TeamID},
			Trigger: TriggerScheduled,
		}
		if err := s.publisher.PublishSync(ctx, job); err != nil {
			return enqueued, fmt.Errorf("RunOnce: publishing %s: %w", conn.ConnectionID, err)
		}
		enqueued++
	}

	log.Info().
		Int("connections", len(conns)).
		Int("enqueued", enqueued).
		Msg("Scheduled sync round")
	return enqueued, nil
}

func (s *Scheduler) inFlight(ctx context.Context, connectionID string) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	jobs, err := s.store.ListJobs(ctx, JobFilter{
		ConnectionID: connectionID,
		Statuses:     []JobStatus{JobStatusPending, JobStatusRunning, JobStatusRetrying},
		Limit:        1,
	})
	if err != nil {
		return false, fmt.Errorf("checking in-flight jobs: %w", err)
	}
	return len(jobs) > 0, nil
}
