package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "attendctl",
	Short: "Operator tool for the attendance service",
	Long: `attendctl talks to the attendance database directly. It applies schema
migrations, bulk-enrolls students from a directory of photos, and prints
attendance and signature listings.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
}

// loadConfig reads the service config. Only warnings are logged.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	observability.SetupLogger("warn", "text")
	return cfg, nil
}

func openStore(cfg *config.Config) (*storage.PostgresStore, error) {
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
