package system

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/internal/service/seed"
	"github.com/Alijeyrad/labtrace_backend/internal/store/postgres"
	"github.com/Alijeyrad/labtrace_backend/pkg/database"
	"github.com/Alijeyrad/labtrace_backend/pkg/logs"
)

func NewSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import fixture documents from a YAML file",
		Long: `Import clients, jobs, lots, specimens, preparation requests, certificates and
discard records from a YAML fixture file into the Postgres document store.
Documents whose unique key already exists are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StoragePostgres {
				return fmt.Errorf("seed needs storage.driver %q, got %q", config.StoragePostgres, cfg.Storage.Driver)
			}

			log, stop, err := logs.New(cfg)
			if err != nil {
				return err
			}
			defer stop()
			slog.SetDefault(log)

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open fixtures: %w", err)
			}
			defer f.Close()

			fixtures, err := seed.Load(f)
			if err != nil {
				return err
			}

			drv, err := database.NewDriver(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			st := postgres.New(drv, log)
			defer st.Close()

			ctx := context.Background()
			if err := database.Migrate(ctx, drv); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			rep, err := seed.NewImporter(st, cfg.Seed.PhoneRegion, log).Import(ctx, fixtures)
			if err != nil {
				return err
			}
			for coll, n := range rep.Inserted {
				fmt.Printf("%-22s inserted %d, skipped %d\n", coll, n, rep.Skipped[coll])
			}
			fmt.Printf("Seeded %d documents.\n", rep.Total())
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "fixtures.yaml", "YAML fixture file")

	return cmd
}
