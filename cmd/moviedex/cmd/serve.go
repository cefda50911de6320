package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/domain/search/query"
	chiTransport "github.com/kailas-cloud/moviedex/internal/transport/chi"
	healthuc "github.com/kailas-cloud/moviedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/moviedex/internal/usecase/search"
	"github.com/kailas-cloud/moviedex/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port > 0 {
				a.cfg.HTTP.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides http.port)")

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	a.logger.Info("Starting moviedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", a.cfg.HTTP.Port),
		zap.String("index", a.cfg.Index.Name),
	)

	engine, err := connectElastic(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	cps, err := openCheckpoints(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer cps.Close()

	searchSvc := searchuc.New(engine, a.logger).WithDefaultSize(a.cfg.Search.DefaultSize)
	if err := searchSvc.RegisterTemplate(ctx, query.MovieTemplate()); err != nil {
		return err
	}

	// Pass nil interface (not typed nil pointer) when redis is not in use.
	var kvPinger healthuc.Pinger
	if cps.kv != nil {
		kvPinger = cps.kv
	}
	healthSvc := healthuc.New(engine, kvPinger, a.logger)

	server := chiTransport.NewServer(searchSvc, healthSvc, a.logger)
	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chiTransport.NewRouter(server, a.cfg.Auth.APIKeys, a.logger),
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
		return err
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
