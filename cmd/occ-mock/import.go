package main

import (
	"fmt"
	"log/slog"

	"github.com/objectedge/occ-tools-sub002/pkg/openapi"
	"github.com/objectedge/occ-tools-sub002/pkg/store"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <openapi-file>",
	Short: "Import the methods and parameters of an OpenAPI document",
	Long: `Import reads an OpenAPI 3 document and upserts its operations as methods of
the configured environment. Re-importing the same file is idempotent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		s, err := store.Open(ctx, cfg.Database.Path)
		if err != nil {
			return err
		}
		defer s.Close()

		env := &store.Environment{
			Name:          cfg.Environment.Name,
			RemoteBaseURL: cfg.Environment.RemoteBaseURL,
			LocalBaseURL:  cfg.Environment.LocalBaseURL,
		}
		if err := s.UpsertEnvironment(ctx, env); err != nil {
			return err
		}

		res, err := openapi.ImportFile(ctx, s, env, args[0])
		if err != nil {
			return err
		}
		for _, op := range res.Skipped {
			slog.Warn("skipped operation with unsupported verb", "operation", op)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d methods and %d parameters into schema %s\n",
			res.Methods, res.Parameters, res.Schema.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
