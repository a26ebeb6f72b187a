// CLI for track tempo, key and structure analysis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nzoschke/trackmeta/pkg/config"
	"github.com/nzoschke/trackmeta/pkg/logging"
)

var (
	configFile string
	v          = viper.New()
	cfg        *config.Config
	log        = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "app",
	Short:         "Tempo, key, energy and phrase analysis for DJ libraries",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v, configFile)
		if err != nil {
			return err
		}
		log, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cfg.WriteYAML(cmd.OutOrStdout())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.StringP("output", "o", "table", "output format (table, json, yaml, simple)")
	flags.String("catalog", "trackmeta.sqlite3", "catalog database path, empty to disable")

	bind("log_level", flags.Lookup("log-level"))
	bind("log_format", flags.Lookup("log-format"))
	bind("output", flags.Lookup("output"))
	bind("catalog", flags.Lookup("catalog"))

	rootCmd.AddCommand(analyzeCmd, catalogCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
