// Package resimulate provides the resimulate command.
package resimulate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visorlab/visor/internal/app"
	"github.com/visorlab/visor/internal/conf"
)

// Command creates the resimulate command, which rebuilds every stored
// record's simulation cache from the current filter sets.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resimulate",
		Short: "Rebuild the simulation cache of every record",
		Long: `Resimulate recomputes the simulated spectra of all stored records, for
instance after a filter set was imported or changed. Records finished
before an interrupt keep their new cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				n, err := a.Catalog.Resimulate(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt simulation caches of %d records against %d filter sets\n",
					n, a.FilterSets.Len())
				return err
			})
		},
	}
	return cmd
}
