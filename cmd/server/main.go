package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/vovakirdan/wirechat-lite/internal/app"
	"github.com/vovakirdan/wirechat-lite/internal/config"
	"github.com/vovakirdan/wirechat-lite/internal/log"
)

type flags struct {
	configPath string
	addr       string
	httpAddr   string
	logLevel   string
	database   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:          "wirechat-lite",
		Short:        "Minimal real-time chat server over TCP and WebSocket",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to config file (created with defaults when missing)")
	cmd.Flags().StringVar(&f.addr, "addr", "", "TCP chat listen address")
	cmd.Flags().StringVar(&f.httpAddr, "http-addr", "", "HTTP and WebSocket listen address")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&f.database, "database", "", "path to the SQLite credential database")
	return cmd
}

func run(parent context.Context, f flags) error {
	bootLog := log.New("info", "")

	cfg, path, err := config.Load(bootLog, f.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(config.Config{
		Addr:         f.addr,
		HTTPAddr:     f.httpAddr,
		LogLevel:     f.logLevel,
		DatabasePath: f.database,
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	logger := log.New(cfg.LogLevel, cfg.LogFile)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Str("http_addr", cfg.HTTPAddr).Msg("starting wirechat-lite")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
