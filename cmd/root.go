// Package cmd assembles the visor command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visorlab/visor/cmd/category"
	"github.com/visorlab/visor/cmd/filterset"
	"github.com/visorlab/visor/cmd/ingest"
	"github.com/visorlab/visor/cmd/origin"
	"github.com/visorlab/visor/cmd/resimulate"
	"github.com/visorlab/visor/cmd/simulate"
	"github.com/visorlab/visor/internal/buildinfo"
	"github.com/visorlab/visor/internal/conf"
)

// RootCommand creates and returns the root command. Subcommands share
// settings, which is filled from the config file, the environment and the
// flags before any of them runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "visor",
		Short:         "Spectral library ingestion and instrument simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildinfo.Current().String(),
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: search standard locations)")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		ingest.Command(settings),
		simulate.Command(settings),
		resimulate.Command(settings),
		filterset.Command(settings),
		origin.Command(settings),
		category.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		return nil
	}

	return rootCmd
}

// setupFlags defines the global flags and binds them to their config keys
// so that a flag given on the command line overrides the file.
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("database", "", "Path to the SQLite database")
	flags.String("images", "", "Directory for images extracted from bundles")
	flags.Int("workers", 0, "Parallel simulations")

	bindings := map[string]string{
		"debug":                "debug",
		"database.sqlite.path": "database",
		"images.path":          "images",
		"simulation.workers":   "workers",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
