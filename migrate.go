package main

import (
	"fmt"

	"github.com/SWAYAM31220/lootspy/internal/config"
	"github.com/SWAYAM31220/lootspy/internal/store"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCommand(debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the reservation schema",
	}
	cmd.AddCommand(migrateDirection("up", migrate.Up, debug))
	cmd.AddCommand(migrateDirection("down", migrate.Down, debug))
	return cmd
}

func migrateDirection(use string, direction migrate.MigrationDirection, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Migrate the reservation schema %s", use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*debug)
			defer logger.Sync()

			cfg, err := config.LoadStore(logger)
			if err != nil {
				return err
			}
			db, err := openSQL(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := store.Migrate(db, cfg.StoreDriver, direction)
			if err != nil {
				return err
			}
			logger.Info("Applied migrations", zap.Int("count", n), zap.String("direction", use))
			return nil
		},
	}
}
