// Command occ-mock runs the local API virtualization server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/objectedge/occ-tools-sub002/pkg/config"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "occ-mock",
	Short: "Record, replay and proxy storefront API traffic",
	Long: `occ-mock sits between a storefront and a remote environment. Requests under
/proxy are answered from recorded descriptors when one matches, and forwarded
to the remote environment otherwise.

Configuration is read from --config (YAML) and OCC_MOCK_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
}

// loadConfig reads the configuration and installs the default logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: level,
	}))
	slog.SetDefault(logger)

	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
