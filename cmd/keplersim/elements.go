package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dylan7474/planetaryLogger/internal/horizons"
	"github.com/dylan7474/planetaryLogger/internal/kepler"
)

func newElementsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "elements",
		Short: "Fetch and print the element set for an epoch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			epoch := a.cfg.EffectiveEpoch()
			if epoch.IsZero() {
				epoch = time.Now().UTC().Truncate(24 * time.Hour)
			}

			set, err := a.provider(cmd.ErrOrStderr()).FetchSet(cmd.Context(), horizons.Planets, epoch)
			if err != nil {
				return fmt.Errorf("fetching elements: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(set)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "BODY\tID\tEPOCH\tA (AU)\tE\tI\tNODE\tPERI\tM0\tPERIOD (d)")
			for _, b := range set.Bodies {
				el := b.Elements
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.6f\t%.6f\t%.4f\t%.4f\t%.4f\t%.4f\t%.2f\n",
					b.Name, b.ID, el.Epoch.Format(time.RFC3339),
					el.SemiMajorAxisAU, el.Eccentricity, el.InclinationDeg,
					el.LongitudeAscendingNodeDeg, el.ArgPeriapsisDeg, el.MeanAnomalyAtEpochDeg,
					kepler.Period(el.SemiMajorAxisAU),
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("epoch", "", "element epoch, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
