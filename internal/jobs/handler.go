package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/dvloznov/bank-sync/internal/syncjob"
)

// SyncRunner runs one connection sync. *syncjob.Coordinator implements it.
type SyncRunner interface {
	Sync(ctx context.Context, connectionID, teamID string) (*syncjob.SyncResult, error)
}

// NewSyncHandler returns a JobHandler that runs the sync and stores its
// summary on the job. Only a failed run (the account list could not be
// loaded) is returned as an error and retried; account failures are already
// recorded on the connection and complete the job.
func NewSyncHandler(runner SyncRunner) JobHandler {
	return func(ctx context.Context, job *SyncConnectionJob) error {
		if err := ValidatePayload(job.Payload); err != nil {
			return err
		}

		ctx = logger.WithConnection(ctx, job.Payload.TeamID, job.Payload.ConnectionID)
		log := logger.FromContext(ctx)
		log.Info().
			Str("job_id", job.JobID).
			Str("trigger", string(job.Trigger)).
			Int("retry_count", job.RetryCount).
			Msg("Processing sync job")

		result, err := runner.Sync(ctx, job.Payload.ConnectionID, job.Payload.TeamID)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", job.JobID).
				Msg("Sync job failed")
			return fmt.Errorf("sync job %s: %w", job.JobID, err)
		}

		job.Result = &SyncResult{
			Success:            result.Success,
			TotalUpserts:       result.TotalUpserts,
			TotalFailedUpserts: result.TotalFailedUpserts,
			FailedAccounts:     result.FailedAccounts,
			NewTransactions:    result.NewTransactions,
			ErrorClass:         string(result.ErrorClass),
		}

		log.Info().
			Str("job_id", job.JobID).
			Bool("success", result.Success).
			Int("total_upserts", result.TotalUpserts).
			Int("total_failed_upserts", result.TotalFailedUpserts).
			Msg("Sync job completed")
		return nil
	}
}
