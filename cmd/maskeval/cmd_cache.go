package main

import (
	"fmt"
	"path/filepath"

	"github.com/pavise/maskeval/internal/cache"
	"github.com/pavise/maskeval/internal/projectconfig"
	"github.com/spf13/cobra"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the sample result cache",
		Long: `Manage the sample result cache.

The cache stores per-sample metric results to speed up repeated
evaluations over the same inputs. Cached results are keyed by the
encoding configuration and the contents of both mask files.`,
	}

	cmd.AddCommand(newCacheCleanCommand())
	cmd.AddCommand(newCacheStatsCommand())

	return cmd
}

func newCacheCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove all cached sample results",
		Long: `Remove all cached sample results.

The next evaluation run will re-score every sample from scratch.`,
		RunE: cacheCleanE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", projectconfig.DefaultCacheDir, "Cache directory to clean")

	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and size on disk",
		RunE:  cacheStatsE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", projectconfig.DefaultCacheDir, "Cache directory to inspect")

	return cmd
}

func cacheCleanE(cmd *cobra.Command, args []string) error {
	absDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	c := cache.New(absDir)
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", absDir) //nolint:errcheck
	return nil
}

func cacheStatsE(cmd *cobra.Command, args []string) error {
	absDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	c := cache.New(absDir)
	entries, totalBytes, err := c.Info()
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Cache directory: %s\n", absDir)                  //nolint:errcheck
	fmt.Fprintf(w, "Entries:         %d\n", entries)                 //nolint:errcheck
	fmt.Fprintf(w, "Size on disk:    %s\n", formatBytes(totalBytes)) //nolint:errcheck
	return nil
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
