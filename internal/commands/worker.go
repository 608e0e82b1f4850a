package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dvloznov/bank-sync/internal/jobs"
	"github.com/dvloznov/bank-sync/internal/jobs/inmemory"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the sync worker and the periodic scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, ctx, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := startWorker(ctx, a)
			if err != nil {
				return err
			}

			a.log.Info().Msg("Worker service started, waiting for jobs...")
			<-ctx.Done()
			a.log.Info().Msg("Shutting down worker service...")

			return w.stop(a)
		},
	}
}

// worker is a running queue plus its optional scheduler.
type worker struct {
	queue     *inmemory.Queue
	store     *inmemory.Store
	scheduler chan error
}

// startWorker starts the queue workers and, when enabled, the scheduler.
// Both stop when ctx is done.
func startWorker(ctx context.Context, a *app) (*worker, error) {
	cfg := a.cfg.Worker

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(store, inmemory.QueueOptions{
		BufferSize:   cfg.BufferSize,
		Workers:      cfg.Workers,
		MaxRetries:   maxRetries(cfg.MaxRetries),
		RetryBackoff: cfg.RetryBackoff,
	})

	if err := queue.Start(ctx, jobs.NewSyncHandler(a.coordinator)); err != nil {
		return nil, err
	}

	w := &worker{queue: queue, store: store}
	if cfg.Schedule {
		w.scheduler = make(chan error, 1)
		s := jobs.NewScheduler(a.store, queue, store, cfg.ScheduleInterval)
		go func() { w.scheduler <- s.Run(ctx) }()
	}
	return w, nil
}

// stop waits for in-flight jobs up to the shutdown timeout.
func (w *worker) stop(a *app) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if w.scheduler != nil {
		if err := <-w.scheduler; err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("Scheduler stopped with error")
		}
	}
	if err := w.queue.Stop(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Error during graceful shutdown")
		return err
	}
	a.log.Info().Msg("Worker service exited")
	return nil
}

// maxRetries maps the config's "0 means none" to the queue's "negative
// means none".
func maxRetries(n int) int {
	if n == 0 {
		return -1
	}
	return n
}
