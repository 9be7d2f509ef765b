// Package propagation turns an element set and a date range into a daily
// time series of positions.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/kepler"
	"github.com/dylan7474/planetaryLogger/internal/metrics"
)

var (
	// ErrRange is returned when the end date precedes the start date.
	ErrRange = errors.New("invalid date range")
	// ErrNoBodies is returned for a nil or empty element set.
	ErrNoBodies = errors.New("element set has no bodies")
)

// Generator steps through a date range one day at a time and computes every
// body's position on each date.
type Generator struct {
	pool   *WorkerPool
	config Config
	logger *slog.Logger
}

// NewGenerator creates a generator. Zero-valued config fields take defaults.
func NewGenerator(config Config, logger *slog.Logger) *Generator {
	if config.Workers < 1 {
		config.Workers = runtime.NumCPU()
	}
	calc := kepler.NewCalculator(config.Solver)
	config.Solver = calc.Solver()
	return &Generator{
		pool:   NewWorkerPool(config.Workers, calc, logger),
		config: config,
		logger: logger,
	}
}

// DayCount returns the number of dates in the inclusive range [start, end].
func DayCount(start, end time.Time) (int, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return 0, fmt.Errorf("%w: end %s before start %s", ErrRange,
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	n := 0
	for d := start; !d.After(end); d = start.AddDate(0, 0, n) {
		n++
	}
	return n, nil
}

// Generate returns one row per date in [start, end], inclusive.
func (g *Generator) Generate(ctx context.Context, set *elements.Set, start, end time.Time) ([]Row, error) {
	n, err := DayCount(start, end)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, n)
	err = g.Stream(ctx, set, start, end, func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return rows, err
	}
	return rows, nil
}

// Stream computes rows for [start, end] in date order and passes each
// complete row to fn. Dates advance by exactly one calendar day in UTC.
// An error from fn or a cancelled context stops the run.
func (g *Generator) Stream(ctx context.Context, set *elements.Set, start, end time.Time, fn func(Row) error) error {
	if set == nil || len(set.Bodies) == 0 {
		return ErrNoBodies
	}
	total, err := DayCount(start, end)
	if err != nil {
		return err
	}
	start = start.UTC()

	for _, b := range set.Bodies {
		if err := b.Elements.Validate(); err != nil {
			g.logger.Warn("body has unusable elements, positions will be NaN",
				"body", b.Name,
				"error", err,
			)
		}
	}

	g.logger.Debug("generating",
		"bodies", len(set.Bodies),
		"days", total,
		"start", start.Format(time.DateOnly),
		"workers", g.config.Workers,
	)

	began := time.Now()
	for i := 0; i < total; i++ {
		date := start.AddDate(0, 0, i)

		stepStart := time.Now()
		positions, invalid, err := g.pool.PropagateBatch(ctx, set.Bodies, date)
		if err != nil {
			return fmt.Errorf("row %d at %s: %w", i, date.Format(time.DateOnly), err)
		}
		metrics.RecordPropagation(time.Since(stepStart), len(positions)-invalid, invalid)

		if err := fn(Row{Date: date, Positions: positions}); err != nil {
			return fmt.Errorf("row %d at %s: %w", i, date.Format(time.DateOnly), err)
		}
		metrics.IncRows()
	}

	g.logger.Info("generation complete",
		"rows", total,
		"bodies", len(set.Bodies),
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return nil
}
