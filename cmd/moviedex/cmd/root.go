// Package cmd provides the CLI commands for moviedex.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/config"
	logpkg "github.com/kailas-cloud/moviedex/internal/logger"
	"github.com/kailas-cloud/moviedex/internal/metrics"
	"github.com/kailas-cloud/moviedex/internal/version"
)

// app carries what every subcommand needs after PersistentPreRunE.
type app struct {
	env        string
	configPath string
	index      string
	cfg        config.Config
	logger     *zap.Logger
}

// Execute runs the root command with SIGINT/SIGTERM cancelling the context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd creates the root command for the moviedex CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "moviedex",
		Short: "Index MovieLens data into Elasticsearch and query it",
		Long: `moviedex loads the MovieLens movies, ratings and tags CSV files into an
Elasticsearch index with nested ratings and tags, appends ratings and tags
with a stored script, and serves typed searches over the result.

Configuration is read from config/<env>.yaml, where env comes from --env or ENV.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.SetVersionTemplate("moviedex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.env, "env", config.GetEnv(), "Environment: local, dev, docker, prod")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file path (overrides --env lookup)")
	cmd.PersistentFlags().StringVar(&a.index, "index", "", "Index name (overrides index.name)")

	cmd.AddCommand(newIngestCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load(a.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.index != "" {
		a.cfg.Index.Name = a.index
	}

	a.logger, err = logpkg.NewLogger(a.env, a.cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	// Registered explicitly, never from init().
	metrics.RegisterPipelineMetrics()
	return nil
}
