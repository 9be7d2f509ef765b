package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dylan7474/planetaryLogger/internal/export"
	"github.com/dylan7474/planetaryLogger/internal/horizons"
)

func newLogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log daily geocentric longitudes straight from Horizons state vectors",
		Long: `log queries one Horizons VECTORS record per body and day, centered on
Earth, and writes the ecliptic longitude of each. A body whose request fails
gets a NaN cell and the run continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLog(cmd)
		},
	}
	fs := cmd.Flags()
	fs.String("start", "", "first date, YYYY-MM-DD")
	fs.Int("days", 0, "number of days to log (prompted when unset)")
	fs.StringP("output", "o", "", "output CSV file")
	return cmd
}

func (a *app) runLog(cmd *cobra.Command) error {
	if err := a.load(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := &a.cfg

	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	if err := p.date(&cfg.Start, "Enter Start Date (YYYY-MM-DD): "); err != nil {
		return err
	}
	if err := p.count(&cfg.Days, "Enter Number of Days to Log: "); err != nil {
		return err
	}
	if err := p.text(&cfg.Output, "Enter Output Filename (e.g., data.csv): "); err != nil {
		return err
	}

	f, err := os.Create(cfg.Output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	bodies := horizons.LoggerBodies
	names := make([]string, len(bodies))
	for i, b := range bodies {
		names[i] = b.Name
	}
	w := export.NewCSVWriter(f, export.Longitude, names)
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	provider := a.provider(cmd.ErrOrStderr())
	var failed int
	for day := 0; day < cfg.Days; day++ {
		date := cfg.Start.AddDate(0, 0, day)
		a.logger.Info("processing", "date", date.Format(time.DateOnly))

		lons := make([]float64, len(bodies))
		for i, b := range bodies {
			lon, err := provider.FetchLongitude(ctx, b, date)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.Warn("longitude unavailable",
					"body", b.Name,
					"date", date.Format(time.DateOnly),
					"error", err,
				)
				lon = math.NaN()
				failed++
			}
			lons[i] = lon
		}
		if err := w.WriteLongitudes(date, lons); err != nil {
			return fmt.Errorf("writing %s: %w", date.Format(time.DateOnly), err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.Output, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", cfg.Output, err)
	}

	a.logger.Info("logging complete", "days", cfg.Days, "failed_cells", failed, "output", cfg.Output)
	fmt.Fprintf(cmd.OutOrStdout(), "\nData logging complete. File '%s' has been created.\n", cfg.Output)
	return nil
}
