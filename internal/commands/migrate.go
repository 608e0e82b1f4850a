package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/bank-sync/internal/config"
	"github.com/dvloznov/bank-sync/internal/infra/bigquery"
	"github.com/dvloznov/bank-sync/internal/infra/postgres"
	"github.com/dvloznov/bank-sync/internal/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx := logger.WithContext(cmd.Context(), log)

			switch cfg.Store.Driver {
			case config.DriverPostgres:
				var version uint
				if down {
					version, err = postgres.Rollback(cfg.Store.PostgresDSN)
				} else {
					version, err = postgres.Migrate(cfg.Store.PostgresDSN)
				}
				if err != nil {
					return err
				}
				log.Info().Uint("version", version).Bool("down", down).Msg("Postgres schema migrated")

			case config.DriverBigQuery:
				if down {
					return fmt.Errorf("--down is not supported for bigquery")
				}
				store, err := bigquery.NewStore(ctx, bigquery.Dataset{Project: cfg.Store.BigQueryProject, Name: cfg.Store.BigQueryDataset})
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				log.Info().Str("dataset", cfg.Store.BigQueryDataset).Msg("BigQuery schema ensured")

			default:
				log.Info().Str("driver", cfg.Store.Driver).Msg("Nothing to migrate")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back one migration (postgres only)")
	return cmd
}
