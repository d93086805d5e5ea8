// Package category provides the category command group. Sample types form
// a closed vocabulary: ingestion rejects any type not added here.
package category

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visorlab/visor/internal/app"
	"github.com/visorlab/visor/internal/conf"
)

// Command creates the category command with its add and list
// subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage the allowed sample types",
	}
	cmd.AddCommand(addCommand(settings), listCommand(settings))
	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME...",
		Short: "Allow new sample types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				for _, name := range args {
					if err := a.References.AddCategory(cmd.Context(), name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the allowed sample types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				names, err := a.References.ListCategories(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}
