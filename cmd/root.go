// Package cmd implements the hangar command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Datasource adapters register themselves on import.
	_ "github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource/sqlite"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "hangar",
	Short: "Serve administrator-defined SQL queries as JSON and HTML endpoints",
	Long: `hangar renders catalogued SQL templates with request parameters, runs them
against the configured databases and serves the results over HTTP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

func init() {
	rootCmd.SetVersionTemplate("hangar version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the configuration; ignored when missing")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadEnvFile loads variables from path without overriding ones already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
