// Command agrilog runs the farm record-keeping API and its maintenance tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agrilog/internal/auth"
	"agrilog/internal/blob"
	"agrilog/internal/config"
	"agrilog/internal/core"
	"agrilog/internal/observability"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by the subcommands.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agrilog",
		Short:         "Farm record keeping: fields, crops, treatments and seasons",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "agrilog.yaml", "path to the YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newServeCmd(a), newExportCmd(a), newVersionCmd())
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	if a.logger == nil {
		logger, err := observability.NewLogger(cfg.LogLevel, a.verbose)
		if err != nil {
			return err
		}
		a.logger = logger
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs neither configuration nor a logger
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agrilog %s\n", version)
		},
	}
}

// environment holds the collaborators opened from the configuration.
type environment struct {
	svc      *core.Service
	blobs    blob.Store
	registry *prometheus.Registry
	closers  []io.Closer
}

func (a *app) open(ctx context.Context) (*environment, error) {
	env := &environment{registry: prometheus.NewRegistry()}
	env.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := observability.NewPrometheusRecorder(env.registry)
	if err != nil {
		return nil, err
	}

	store, err := core.OpenPersistentStore(a.cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, err
	}
	if closer, ok := store.(io.Closer); ok {
		env.closers = append(env.closers, closer)
	}

	env.blobs, err = blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	env.svc = core.NewService(store,
		core.WithLogger(observability.NewZapLogger(a.logger.Named("core"))),
		core.WithMetricsRecorder(recorder),
		core.WithTracer(observability.NewLogTracer(a.logger)),
		core.WithAuditRecorder(observability.NewAuditLogger(a.logger)),
		core.WithPasswordHasher(auth.NewHasher(a.cfg.Auth.BcryptCost)),
	)
	a.logger.Debug("environment opened",
		zap.String("storage", a.cfg.Storage.Driver),
		zap.String("blob", string(env.blobs.Driver())),
	)
	return env, nil
}

// Close releases the durable stores.
func (e *environment) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
