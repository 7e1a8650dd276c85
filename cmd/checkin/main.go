package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	_ "github.com/kirinyoku/checkin-go/docs"
	"github.com/kirinyoku/checkin-go/internal/app"
	"github.com/kirinyoku/checkin-go/internal/config"
)

// @title Check-in API
// @version 1.0
// @description Airport check-in: seat assignment with live seat maps for every agent desk.
// @host localhost:8080
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile string
		ledger  string
		seed    bool
	)

	flagSet := pflag.NewFlagSet("checkin", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "load environment variables from this file (default: .env if present)")
	flagSet.StringVar(&ledger, "ledger", "", "seat ledger driver: postgres or memory (overrides LEDGER_DRIVER)")
	flagSet.BoolVar(&seed, "seed", false, "load the demo flights into the memory ledger")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if ledger != "" {
		os.Setenv("LEDGER_DRIVER", ledger)
	}

	cfg, err := config.New(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if seed && cfg.Ledger != config.LedgerMemory {
		return fmt.Errorf("--seed needs the memory ledger")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	application, err := app.New(context.Background(), cfg, logger, app.Options{SeedDemo: seed})
	if err != nil {
		logger.Error("failed to create application", "error", err)
		return err
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		return err
	}

	return nil
}
