package main

import (
	"log/slog"

	"github.com/pavise/maskeval/cmd/maskeval/dev"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maskeval",
		Short: "Maskeval - CLI tool for evaluating binary segmentation masks",
		Long: `Maskeval is a command-line tool for evaluating binary segmentation masks.

It compares model-predicted masks against ground truth, computes overlap
metrics (IoU, Dice, pixel accuracy), validates mask structure, and flags
implausible results.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(dev.NewCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
