package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dylan7474/planetaryLogger/internal/api"
	"github.com/dylan7474/planetaryLogger/internal/cache"
	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/horizons"
	"github.com/dylan7474/planetaryLogger/internal/metrics"
	"github.com/dylan7474/planetaryLogger/internal/stream"
	"github.com/dylan7474/planetaryLogger/web"
)

const fetchRetryInterval = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve elements and generated positions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}
	fs := cmd.Flags()
	fs.String("addr", ":8080", "listen address")
	fs.String("epoch", "", "element epoch, YYYY-MM-DD (default: today)")
	fs.Bool("trust-proxy", false, "use X-Forwarded-For / X-Real-IP for client addresses")
	fs.Int("max-days", 3660, "largest date range served per request")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	if err := a.load(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := a.cfg
	logger := a.logger

	store := elements.NewStore()
	gen := a.generator()
	rows := cache.NewRowCache(cache.Config{MaxEntries: cfg.Cache.MaxEntries}, gen, store, logger)
	streams := stream.NewHandler(gen, store, stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxPerIP,
		MaxTotal:           cfg.Stream.MaxTotal,
		MaxDays:            cfg.Stream.MaxDays,
		RowsPerSecond:      cfg.Stream.RowsPerSecond,
		TrustProxy:         cfg.HTTP.TrustProxy,
	}, logger)
	srv := api.NewServer(api.Config{
		Addr:       cfg.HTTP.Addr,
		TrustProxy: cfg.HTTP.TrustProxy,
		Rate:       cfg.HTTP.Rate,
		Burst:      cfg.HTTP.Burst,
		MaxDays:    cfg.MaxDays,
	}, logger, cfg.Auth, store, rows, streams, web.Content)

	epoch := cfg.EffectiveEpoch()
	if epoch.IsZero() {
		epoch = cache.DayKey(time.Now())
	}
	go a.loadElements(ctx, store, epoch)
	go rows.Start(ctx)
	go srv.SweepLimiter(ctx, time.Minute)

	// Background goroutine to update element set age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetElementSetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTP.Addr, "auth_enabled", cfg.Auth.Enabled, "epoch", epoch.Format(time.DateOnly))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// loadElements fetches the element set, retrying until it succeeds or ctx
// is cancelled. The server reports not ready until then.
func (a *app) loadElements(ctx context.Context, store *elements.Store, epoch time.Time) {
	provider := a.provider(nil)
	for {
		set, err := provider.FetchSet(ctx, horizons.Planets, epoch)
		if err == nil {
			store.Set(set)
			recordSet(len(set.Bodies))
			a.logger.Info("element set loaded", "bodies", len(set.Bodies), "epoch", epoch.Format(time.DateOnly))
			return
		}
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("element fetch failed, retrying", "error", err, "retry_in", fetchRetryInterval.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(fetchRetryInterval):
		}
	}
}
