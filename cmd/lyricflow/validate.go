package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/aristath/lyricflow/internal/lyrics"
	"github.com/aristath/lyricflow/internal/orchestrator"
)

func newValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the task graph and that every dataset directory exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			src := lyrics.NewDirSource(cfg.DataDir, cfg.Datasets)
			pipeline, err := orchestrator.NewPipeline(orchestrator.PipelineConfig{Source: src})
			if err != nil {
				return err
			}

			order, err := pipeline.Validate()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Task order:")
			for i, id := range order {
				fmt.Fprintf(out, "  %d. %s\n", i+1, id)
			}

			names := make([]string, 0, len(cfg.Datasets))
			for name := range cfg.Datasets {
				names = append(names, name)
			}
			slices.Sort(names)

			var problems []error
			fmt.Fprintln(out, "Datasets:")
			for _, name := range names {
				dir, _ := src.Dir(name)
				info, err := os.Stat(dir)
				switch {
				case err != nil:
					problems = append(problems, fmt.Errorf("dataset %q: %w", name, err))
					fmt.Fprintf(out, "  %s: %s (missing)\n", name, dir)
				case !info.IsDir():
					problems = append(problems, fmt.Errorf("dataset %q: %s is not a directory", name, dir))
					fmt.Fprintf(out, "  %s: %s (not a directory)\n", name, dir)
				default:
					fmt.Fprintf(out, "  %s: %s\n", name, dir)
				}
			}
			return errors.Join(problems...)
		},
	}
}
