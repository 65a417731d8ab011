package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bringochef/chefctl/internal/config"
	"github.com/bringochef/chefctl/internal/deploy"
	"github.com/bringochef/chefctl/internal/deploy/gcp"
	"github.com/bringochef/chefctl/internal/logger"
	"github.com/bringochef/chefctl/internal/output"
)

var (
	debug         bool
	verbose       bool
	timeout       string
	timeoutCancel context.CancelFunc

	// Common config overrides shared by the cloud-facing commands.
	flagProject string
	flagRegion  string
	flagService string
	flagImage   string
)

var rootCmd = &cobra.Command{
	Use:   "chefctl",
	Short: "Deploy and repair the Bringo Chef agent on Cloud Run",
	Long: `chefctl deploys the Bringo Chef AI agent to Cloud Run and keeps the
permissions of its runtime identity in a known-good state.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}
		logger.Initialize(logLevel)

		if timeout == "0" {
			return nil
		}

		timeoutDuration, err := parseTimeout(timeout)
		if err != nil {
			return fmt.Errorf("error parsing timeout: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeoutDuration)
		timeoutCancel = cancel
		cmd.SetContext(ctx)

		if verbose {
			output.Infof("Timeout: %s", timeoutDuration)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if timeoutCancel != nil {
			timeoutCancel()
		}
	},
}

// Execute runs the root command and handles cleanup of timeout context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if timeoutCancel != nil {
		timeoutCancel()
	}

	if err != nil {
		output.Errorf("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "30m",
		"Timeout for command execution (e.g., 10m, 30s, 1h)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debugging logs")
}

// addTargetFlags registers the config overrides shared by the commands
// that talk to the cloud.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProject, "project", "", "Google Cloud project ID")
	cmd.Flags().StringVar(&flagRegion, "region", "", "Cloud Run region")
	cmd.Flags().StringVar(&flagService, "service", "", "Cloud Run service name")
	cmd.Flags().StringVar(&flagImage, "image", "", "Container image to deploy")
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagProject != "" {
		cfg.ProjectID = flagProject
	}
	if flagRegion != "" {
		cfg.Region = flagRegion
	}
	if flagService != "" {
		cfg.ServiceName = flagService
	}
	if flagImage != "" {
		cfg.Image = flagImage
	}
	return cfg, nil
}

// newPipeline wires the pipeline against live Google Cloud clients.
func newPipeline(ctx context.Context) (*deploy.Pipeline, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	clients, err := gcp.NewClients(ctx, cfg.Region)
	if err != nil {
		return nil, nil, fmt.Errorf("create cloud clients: %w", err)
	}

	return deploy.New(cfg, clients), cfg, nil
}

// parseTimeout parses a timeout string to time.Duration.
// Supports duration formats ("10m", "30s", "1h") and plain seconds ("600").
func parseTimeout(timeoutStr string) (time.Duration, error) {
	if timeoutStr == "" {
		timeoutStr = "30m"
	}

	duration, err := time.ParseDuration(timeoutStr)
	if err == nil {
		return duration, nil
	}

	seconds, err := strconv.Atoi(timeoutStr)
	if err != nil {
		errMsg := fmt.Sprintf(
			"invalid timeout format: %s (use duration like '10m' or '30s', or seconds like '600')",
			timeoutStr)
		return 0, errors.New(errMsg)
	}

	return time.Duration(seconds) * time.Second, nil
}

// RootCmd returns the root command for use by tools like doc generators.
func RootCmd() *cobra.Command {
	return rootCmd
}
