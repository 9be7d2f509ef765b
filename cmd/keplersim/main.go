// Command keplersim fetches planetary orbital elements from JPL Horizons and
// propagates them into daily position time series.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(logger, level).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("keplersim failed", "error", err)
		os.Exit(1)
	}
}
