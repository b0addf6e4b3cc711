package main

import (
	"errors"

	"github.com/MrEthical07/goAccounts/pgstore"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if databaseURL == "" {
			return errors.New("--database-url is required")
		}
		db, err := pgstore.Open(cmd.Context(), databaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := pgstore.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}
