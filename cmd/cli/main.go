package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/application"
	"github.com/careloop/careloop/internal/infrastructure/config"
	"github.com/careloop/careloop/internal/infrastructure/logger"
	"github.com/careloop/careloop/internal/interfaces/tui"
)

const (
	cliName    = "careloop"
	cliVersion = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   cliName,
		Short: "Careloop — confidence-gated AI support conversations",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conversation API server",
		RunE:  runServe,
	}

	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Open the terminal approval console",
		RunE:  runReview,
	}
	reviewCmd.Flags().StringP("tenant", "t", "", "tenant whose queue to review (required)")
	reviewCmd.Flags().StringP("agent", "a", "", "agent id recorded on decisions (required)")
	_ = reviewCmd.MarkFlagRequired("tenant")
	_ = reviewCmd.MarkFlagRequired("agent")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (secrets masked)",
		RunE:  runConfig,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cliVersion)
		},
	}

	rootCmd.AddCommand(serveCmd, reviewCmd, configCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logLevel, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: "stdout",
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	watcher, err := config.NewWatcher(log, func(next *config.Config) {
		logger.SetLevel(logLevel, next.Log.Level)
	})
	if err != nil {
		log.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		watcher.Start(ctx)
	}

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return app.Stop(shutdownCtx)
}

func runReview(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	agentID, _ := cmd.Flags().GetString("agent")

	// Quiet logger so the TUI owns the terminal.
	log, _, err := logger.NewLogger(logger.Config{
		Level:      "error",
		Format:     "console",
		OutputPath: "stderr",
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	app, err := application.NewAppCLI(cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(shutdownCtx)
	}()

	return tui.Run(app.Approvals(), tenantID, agentID)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	out, err := cfg.Dump()
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
