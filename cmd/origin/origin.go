// Package origin provides the origin command group.
package origin

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/visorlab/visor/internal/app"
	"github.com/visorlab/visor/internal/conf"
)

// Command creates the origin command with its list and release
// subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "origin",
		Short: "Manage databases of origin",
	}
	cmd.AddCommand(listCommand(settings), releaseCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List databases of origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				origins, err := a.References.ListOrigins(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSHORT\tRELEASED")
				for _, o := range origins {
					fmt.Fprintf(w, "%s\t%s\t%t\n", o.Name, o.Short, o.Released)
				}
				return w.Flush()
			})
		},
	}
}

func releaseCommand(settings *conf.Settings) *cobra.Command {
	var withdraw bool

	cmd := &cobra.Command{
		Use:   "release NAME",
		Short: "Mark a database of origin as released to the public",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				if err := a.References.SetOriginReleased(cmd.Context(), args[0], !withdraw); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s released: %t\n", args[0], !withdraw)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withdraw, "withdraw", false, "Withdraw a previous release")
	return cmd
}
