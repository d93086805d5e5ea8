// Package filterset provides the filterset command group.
package filterset

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/visorlab/visor/internal/app"
	"github.com/visorlab/visor/internal/conf"
	"github.com/visorlab/visor/internal/filterset"
)

// Command creates the filterset command with its import and list
// subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filterset",
		Short: "Manage instrument filter sets",
	}
	cmd.AddCommand(importCommand(settings), listCommand(settings))
	return cmd
}

func importCommand(settings *conf.Settings) *cobra.Command {
	var resimulate bool

	cmd := &cobra.Command{
		Use:   "import FILE.yaml...",
		Short: "Import filter sets from YAML definition files",
		Long: `Import reads filter set definitions, normalizes each responsivity curve
so that it integrates to one over the grid and stores the sets, replacing
sets with the same short name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sets []*filterset.FilterSet
			for _, path := range args {
				loaded, err := filterset.LoadFile(path)
				if err != nil {
					return err
				}
				sets = append(sets, loaded...)
			}

			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				if err := a.ImportFilterSets(cmd.Context(), sets); err != nil {
					return err
				}
				for _, fs := range sets {
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d filters)\n", fs.ShortName, len(fs.Centers))
				}
				if !resimulate {
					return nil
				}
				n, err := a.Catalog.Resimulate(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt simulation caches of %d records\n", n)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&resimulate, "resimulate", false, "Rebuild every record's simulation cache after importing")
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored filter sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SHORT NAME\tNAME\tFILTERS\tRANGE\tKIND")
				for _, fs := range a.FilterSets.All() {
					kind := "convolved"
					switch {
					case fs.ResampleOnly:
						kind = "resampled"
					case a.Deriver.IsCamera(fs):
						kind = "camera"
					}
					lo, hi := fs.Wavelengths[0], fs.Wavelengths[len(fs.Wavelengths)-1]
					fmt.Fprintf(w, "%s\t%s\t%d\t%g-%g nm\t%s\n", fs.ShortName, fs.Name, len(fs.Centers), lo, hi, kind)
				}
				return w.Flush()
			})
		},
	}
}
