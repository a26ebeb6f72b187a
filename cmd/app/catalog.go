package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nzoschke/trackmeta/pkg/catalog"
	"github.com/nzoschke/trackmeta/pkg/report"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query analyzed tracks",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged tracks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(func(cat *catalog.Catalog) error {
			tracks, err := cat.List(cmd.Context())
			if err != nil {
				return err
			}
			return report.WriteTracks(cmd.OutOrStdout(), cfg.Output, tracks)
		})
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id|path>",
	Short: "Show one track with its phrases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(func(cat *catalog.Catalog) error {
			track, err := cat.Get(cmd.Context(), args[0])
			if errors.Is(err, catalog.ErrNotFound) {
				track, err = cat.FindByPath(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return report.WriteTracks(cmd.OutOrStdout(), cfg.Output, []catalog.Track{*track})
		})
	},
}

var catalogCompatibleCmd = &cobra.Command{
	Use:   "compatible <camelot>",
	Short: "List tracks that mix harmonically with a Camelot key, e.g. 8A",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bpm, _ := cmd.Flags().GetFloat64("bpm")
		tolerance, _ := cmd.Flags().GetFloat64("tolerance")
		return withCatalog(func(cat *catalog.Catalog) error {
			tracks, err := cat.Compatible(cmd.Context(), args[0], bpm, tolerance)
			if err != nil {
				return err
			}
			return report.WriteTracks(cmd.OutOrStdout(), cfg.Output, tracks)
		})
	},
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a track from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(func(cat *catalog.Catalog) error {
			return cat.Delete(cmd.Context(), args[0])
		})
	},
}

func init() {
	catalogCompatibleCmd.Flags().Float64("bpm", 0, "only tracks near this tempo")
	catalogCompatibleCmd.Flags().Float64("tolerance", 3, "BPM range either side of --bpm")

	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogCompatibleCmd, catalogDeleteCmd)
}

func withCatalog(fn func(*catalog.Catalog) error) error {
	if cfg.Catalog == "" {
		return fmt.Errorf("no catalog configured")
	}
	cat, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()
	return fn(cat)
}
