package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dvloznov/bank-sync/internal/archive"
	"github.com/dvloznov/bank-sync/internal/config"
	"github.com/dvloznov/bank-sync/internal/infra/bigquery"
	"github.com/dvloznov/bank-sync/internal/infra/inmemory"
	"github.com/dvloznov/bank-sync/internal/infra/postgres"
	"github.com/dvloznov/bank-sync/internal/jobs"
	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/dvloznov/bank-sync/internal/notify"
	"github.com/dvloznov/bank-sync/internal/provider"
	"github.com/dvloznov/bank-sync/internal/syncjob"
)

// syncStore is what every store driver provides.
type syncStore interface {
	syncjob.Store
	jobs.ConnectionLister
}

// app holds the wired components shared by the commands.
type app struct {
	cfg         *config.Config
	log         zerolog.Logger
	store       syncStore
	coordinator *syncjob.Coordinator
	closers     []func()
}

func loadConfig(opts *rootOptions) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := logger.NewFromConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

// newApp opens the store and builds the coordinator with its sinks.
func newApp(ctx context.Context, opts *rootOptions) (*app, context.Context, error) {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return nil, ctx, err
	}
	ctx = logger.WithContext(ctx, log)

	a := &app{cfg: cfg, log: log}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, ctx, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	syncOpts := syncjob.Options{
		BatchSize:      cfg.Sync.BatchSize,
		MaxConcurrency: cfg.Sync.MaxConcurrency,
		Latest:         cfg.Sync.Latest,
		Notifier:       newNotifier(cfg.Notion),
		Invalidator:    newInvalidator(cfg.Revalidate),
	}

	if cfg.Archive.Enabled {
		objects, err := archive.NewGCSObjectStore(ctx)
		if err != nil {
			a.Close()
			return nil, ctx, err
		}
		a.closers = append(a.closers, func() { _ = objects.Close() })
		syncOpts.Archiver = archive.NewPageArchiver(objects, cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	a.coordinator = syncjob.NewCoordinator(store, newGateway(cfg.Provider), syncOpts)
	return a, ctx, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (syncStore, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.DriverBigQuery:
		s, err := bigquery.NewStore(ctx, bigquery.Dataset{Project: cfg.BigQueryProject, Name: cfg.BigQueryDataset})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.DriverMemory:
		s := inmemory.New()
		if cfg.MemorySeed != "" {
			f, err := os.Open(cfg.MemorySeed)
			if err != nil {
				return nil, nil, fmt.Errorf("opening memory seed: %w", err)
			}
			defer f.Close()
			if err := s.LoadSeed(f); err != nil {
				return nil, nil, err
			}
		}
		return s, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func newGateway(cfg config.ProviderConfig) *provider.Gateway {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	client := provider.NewHTTPClient(cfg.BaseURL, cfg.APIKey, nil)
	return provider.NewGateway(client, provider.GatewayOptions{
		Retry: provider.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
		},
		RequestTimeout: cfg.RequestTimeout,
		MaxPages:       cfg.MaxPages,
		Limiter:        limiter,
	})
}

func newNotifier(cfg config.NotionConfig) syncjob.Notifier {
	notifiers := notify.Multi{notify.LogNotifier{}}
	if cfg.Enabled {
		var limiter *rate.Limiter
		if cfg.RateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
		}
		notifiers = append(notifiers, notify.NewNotionNotifier(notify.NewNotionClient(cfg.Token), cfg.DatabaseID, limiter))
	}
	return notifiers
}

func newInvalidator(cfg config.RevalidateConfig) syncjob.Invalidator {
	if cfg.URL == "" {
		return notify.LogInvalidator{}
	}
	return notify.NewHTTPInvalidator(cfg.URL, cfg.Secret, &http.Client{Timeout: cfg.Timeout})
}
