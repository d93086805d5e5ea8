// Package simulate provides the simulate command.
package simulate

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/visorlab/visor/internal/app"
	"github.com/visorlab/visor/internal/conf"
	"github.com/visorlab/visor/internal/spectrum"
)

// Command creates the simulate command, which prints the simulated
// instrument response of one stored record.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		sets      []string
		canonical bool
	)

	cmd := &cobra.Command{
		Use:   "simulate SAMPLE_ID",
		Short: "Print a record's simulated filter values",
		Long: `Simulate convolves a stored record with every known filter set, or
with the sets named by --set, and prints the value of each filter ordered
by nominal wavelength. Nothing is written to the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				rec, err := a.Records.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				sim, err := a.Simulator.Simulate(cmd.Context(), rec)
				if err != nil {
					return err
				}
				if len(sim) == 0 {
					return fmt.Errorf("no filter sets are known; import one with 'visor filterset import'")
				}

				names := sets
				if len(names) == 0 {
					names = slices.Sorted(maps.Keys(sim))
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, name := range names {
					values, ok := sim[name]
					if !ok {
						return fmt.Errorf("filter set %s is not known", name)
					}
					fmt.Fprintf(w, "%s\t\t\n", name)
					if canonical {
						if err := printCanonical(w, a, name, values); err != nil {
							return err
						}
						continue
					}
					printValues(w, values)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringSliceVar(&sets, "set", nil, "Filter set short names to simulate (default: all)")
	cmd.Flags().BoolVar(&canonical, "canonical", false, "For cameras, print the averaged filter list instead of every filter")
	return cmd
}

func printValues(w io.Writer, values map[string]float64) {
	var filters []string
	for key := range values {
		if !spectrum.IsNominalKey(key) {
			filters = append(filters, key)
		}
	}
	slices.SortFunc(filters, func(a, b string) int {
		na, nb := values[spectrum.NominalKey(a)], values[spectrum.NominalKey(b)]
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, f := range filters {
		fmt.Fprintf(w, "  %s\t%g nm\t%.6g\n", f, values[spectrum.NominalKey(f)], values[f])
	}
}

func printCanonical(w io.Writer, a *app.App, name string, values map[string]float64) error {
	fs, err := a.FilterSets.Get(name)
	if err != nil {
		return err
	}
	if !a.Deriver.IsCamera(fs) {
		printValues(w, values)
		return nil
	}
	for _, c := range a.Deriver.Pairing(fs).Canonical {
		v, ok := values[c.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %s\t%g nm\t%.6g\n", c.Name, c.Wavelength, v)
	}
	return nil
}
