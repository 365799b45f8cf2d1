package main

import (
	"log/slog"

	"github.com/objectedge/occ-tools-sub002/pkg/store"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := store.Open(cmd.Context(), cfg.Database.Path)
		if err != nil {
			return err
		}
		defer s.Close()

		slog.Info("database is up to date", "database", cfg.Database.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
