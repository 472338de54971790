package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"LandScout/internal/app"
	"LandScout/internal/config"
	"LandScout/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "landscout",
	Short:         "Ingest land listing alerts from a mailbox and score them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults to $LANDSCOUT_CONFIG)")
	rootCmd.AddCommand(serveCmd, ingestCmd, rescoreCmd, weightsCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApplication loads the config, builds the application and closes it after fn.
func withApplication(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	cfg := config.Load()
	if configPath != "" {
		cfg = config.LoadFrom(configPath)
	}
	logger := logging.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	return fn(ctx, application)
}
