package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dylan7474/planetaryLogger/internal/config"
	"github.com/dylan7474/planetaryLogger/internal/export"
	"github.com/dylan7474/planetaryLogger/internal/horizons"
	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

func newSimulateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Propagate Horizons elements over a date range and write CSV",
		Long: `simulate fetches the elements of Mercury through Pluto at the epoch date
(default: the start date) and writes one CSV row per day in [start, end].
Missing start, end or output values are asked for on stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSimulate(cmd)
		},
	}
	addSimulateFlags(cmd.Flags())
	return cmd
}

func addSimulateFlags(fs *pflag.FlagSet) {
	fs.String("start", "", "first date, YYYY-MM-DD")
	fs.String("end", "", "last date, YYYY-MM-DD (inclusive)")
	fs.String("epoch", "", "element epoch, YYYY-MM-DD (default: start)")
	fs.StringP("output", "o", "", "output CSV file")
	fs.String("mode", "longitude", "output columns: longitude or vector")
}

func (a *app) runSimulate(cmd *cobra.Command) error {
	if err := a.load(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := &a.cfg

	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	if err := p.date(&cfg.Start, "Enter Start Date for simulation (YYYY-MM-DD): "); err != nil {
		return err
	}
	if err := p.date(&cfg.End, "Enter End Date for simulation (YYYY-MM-DD): "); err != nil {
		return err
	}
	if err := p.text(&cfg.Output, "Enter Output Filename (e.g., simulation.csv): "); err != nil {
		return err
	}

	// Validate the range before any network traffic.
	days, err := propagation.DayCount(cfg.Start, cfg.End)
	if err != nil {
		return err
	}

	epoch := cfg.EffectiveEpoch()
	fmt.Fprintf(cmd.OutOrStdout(), "\nFetching orbital elements from NASA for epoch %s...\n", epoch.Format(time.DateOnly))
	set, err := a.provider(cmd.ErrOrStderr()).FetchSet(ctx, horizons.Planets, epoch)
	if err != nil {
		return fmt.Errorf("fetching elements: %w", err)
	}
	recordSet(len(set.Bodies))

	f, err := os.Create(cfg.Output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	w := export.NewCSVWriter(f, cfg.Mode, set.Names())
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	a.logger.Info("simulation starting",
		"start", cfg.Start.Format(time.DateOnly),
		"end", cfg.End.Format(time.DateOnly),
		"days", days,
		"mode", cfg.Mode.String(),
		"output", cfg.Output,
	)

	err = a.generator().Stream(ctx, set, cfg.Start, cfg.End, func(row propagation.Row) error {
		a.logger.Debug("row written", "date", row.Date.Format(time.DateOnly))
		return w.WriteRow(row)
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.Output, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", cfg.Output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nSimulation complete. File '%s' has been created.\n", cfg.Output)
	return nil
}

// prompter asks for values that were not supplied by flags, env or file.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) text(dst *string, prompt string) error {
	if *dst != "" {
		return nil
	}
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		return fmt.Errorf("no value entered")
	}
	*dst = line
	return nil
}

// count prompts for a positive integer when *dst is zero.
func (p *prompter) count(dst *int, prompt string) error {
	if *dst > 0 {
		return nil
	}
	var s string
	if err := p.text(&s, prompt); err != nil {
		return err
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid number %q: must be a positive integer", s)
	}
	*dst = n
	return nil
}

func (p *prompter) date(dst *time.Time, prompt string) error {
	if !dst.IsZero() {
		return nil
	}
	var s string
	if err := p.text(&s, prompt); err != nil {
		return err
	}
	t, err := config.ParseDate(s)
	if err != nil {
		return err
	}
	*dst = t
	return nil
}
