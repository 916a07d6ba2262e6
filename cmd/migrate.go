package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/db"
	"github.com/proprio-data/cadastre-api/internal/geostore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		ctx := cmd.Context()
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := geostore.Migrate(ctx, pool); err != nil {
			return err
		}

		zap.L().Info("migrations up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
