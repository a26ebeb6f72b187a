package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nzoschke/trackmeta/pkg/analysis"
	"github.com/nzoschke/trackmeta/pkg/catalog"
	"github.com/nzoschke/trackmeta/pkg/library"
	"github.com/nzoschke/trackmeta/pkg/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|directory>",
	Short: "Analyze audio files and print their tempo, key and structure",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	flags := analyzeCmd.Flags()
	flags.Int("workers", 0, "files analyzed concurrently (default: number of CPUs)")
	flags.Duration("timeout", 0, "per-file analysis timeout (default 5m)")
	flags.BoolP("force", "f", false, "reanalyze files already in the catalog")
	flags.Bool("beats", false, "include beat times in results")
	flags.Int("overview", 0, "include a waveform overview at this many points per second")
	flags.Bool("simple", false, "print title, BPM, key and duration only")
	flags.Bool("sidecar", false, "write a JSON file next to each analyzed file")

	bind("workers", flags.Lookup("workers"))
	bind("timeout", flags.Lookup("timeout"))
	bind("force", flags.Lookup("force"))
	bind("analysis.include_beats", flags.Lookup("beats"))
	bind("analysis.overview_pixels_per_sec", flags.Lookup("overview"))
}

// bind registers a flag as the source for a config key.
func bind(key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if simple, _ := cmd.Flags().GetBool("simple"); simple {
		cfg.Output = "simple"
	}

	a, err := analysis.New(cfg.Analysis, analysis.WithLogger(log))
	if err != nil {
		return err
	}

	opts := []library.Option{
		library.WithLogger(log),
		library.WithWorkers(cfg.Workers),
		library.WithTimeout(cfg.Timeout),
		library.WithSampleRate(cfg.SampleRate),
		library.WithForce(cfg.Force),
	}
	if cfg.Catalog != "" {
		cat, err := catalog.Open(cfg.Catalog)
		if err != nil {
			return err
		}
		defer cat.Close()
		opts = append(opts, library.WithStore(cat))
	}

	rep, err := library.NewScanner(a, opts...).Scan(ctx, args[0])
	if err != nil {
		return err
	}

	sidecar, _ := cmd.Flags().GetBool("sidecar")
	results := make([]*analysis.Result, 0, len(rep.Results))
	for _, e := range rep.Results {
		results = append(results, e.Result)
		if sidecar {
			path, err := report.WriteSidecar(e.Path, e.Result)
			if err != nil {
				return err
			}
			log.Debug("wrote sidecar", zap.String("path", path))
		}
	}

	if len(rep.Skipped) > 0 {
		log.Info("skipped cataloged files, use --force to reanalyze", zap.Int("files", len(rep.Skipped)))
	}
	for _, f := range rep.Failed {
		log.Error("failed", zap.String("path", f.Path), zap.Error(f.Err))
	}

	if err := report.Write(cmd.OutOrStdout(), cfg.Output, results); err != nil {
		return err
	}

	if len(rep.Failed) > 0 && len(results) == 0 && len(rep.Skipped) == 0 {
		return fmt.Errorf("%d files failed", len(rep.Failed))
	}
	return nil
}
