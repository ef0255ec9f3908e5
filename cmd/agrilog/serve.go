package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agrilog/internal/adapters/exports"
	"agrilog/internal/adapters/httpapi"
	"agrilog/internal/auth"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the export worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// serve runs until ctx is cancelled or the listener fails, then drains the
// HTTP server and the export worker within the shutdown timeout.
func (a *app) serve(ctx context.Context) error {
	if err := a.cfg.ValidateServe(); err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer(a.cfg.Auth.Secret, a.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	env, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := env.Close(); err != nil {
			a.logger.Warn("close stores", zap.Error(err))
		}
	}()

	worker := exports.NewWorker(env.svc, env.blobs,
		exports.WithLogger(a.logger.Named("exports")),
		exports.WithQueueSize(a.cfg.Exports.QueueSize),
	)
	worker.Start()

	e, err := httpapi.New(httpapi.Config{
		Service:  env.svc,
		Exports:  worker,
		Tokens:   tokens,
		Logger:   a.logger,
		Gatherer: env.registry,
		LogLevel: a.cfg.LogLevel,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", a.cfg.Server.Addr), zap.String("version", version))
		if err := e.Start(a.cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down", zap.Duration("timeout", a.cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(e.Shutdown(shutdownCtx), worker.Stop(shutdownCtx))
	})
	return g.Wait()
}
