// Package main is the entry point for the datasync CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixml/datasync/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "datasync",
		Short:         "Query Datasync table endpoints",
		Long:          `datasync compiles typed table queries to OData query options and pages through the results of a Datasync service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(queryCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string, opts ...config.Option) (config.ClientConfig, error) {
	cfg, err := config.LoadConfig(envFile, opts...)
	if err != nil {
		return config.ClientConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
