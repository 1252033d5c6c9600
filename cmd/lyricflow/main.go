// Command lyricflow loads two lyric collections in parallel and compares them
// once both are loaded, scheduling the work in prerequisite-driven rounds.
//
// Usage:
//
//	lyricflow [--config FILE] [--log-level LEVEL] [--log-format text|json] <command>
//
// Commands:
//
//	run       Run the pipeline
//	validate  Check the task graph and dataset directories
//	config    Write or show configuration
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/lyricflow/internal/config"
	"github.com/aristath/lyricflow/internal/telemetry"
)

// version is set with -ldflags at build time.
var version = "dev"

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// loadConfig merges defaults, the global config and either --config or the
// project config, then applies the logging flags.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		globalPath, pathErr := config.GlobalPath()
		if pathErr != nil {
			return nil, pathErr
		}
		cfg, err = config.Load(globalPath, g.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = g.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = g.logFormat
	}
	return cfg, nil
}

func (g *globalFlags) logger(cfg *config.Config, w io.Writer) *slog.Logger {
	return telemetry.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "lyricflow",
		Short:         "Prerequisite-driven lyrics analysis",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (JSON or YAML); replaces .lyricflow/config.json")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newValidateCmd(flags),
		newConfigCmd(flags),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
