package dev

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand returns the `maskeval dev` sub-command tree.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Development helpers for dataset authors",
	}
	cmd.AddCommand(newLinksCommand())
	return cmd
}

func newLinksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "links [dataset-dir]",
		Short: "Validate dataset card links and mask references",
		Long: `Validate the markdown card of a dataset directory.

Checks that card links resolve inside the dataset directory and that every
mask file under it is referenced by a manifest sample or a card link.
External URLs are not fetched.`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runLinks,
		SilenceErrors: true,
	}
}

func runLinks(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	result := CheckLinks(dir)
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Links: %d/%d valid\n", result.ValidLinks, result.TotalLinks) //nolint:errcheck
	for _, issue := range result.BrokenLinks {
		fmt.Fprintf(w, "  ✗ [%s] %s: %s\n", issue.Source, issue.Target, issue.Reason) //nolint:errcheck
	}
	for _, issue := range result.DirectoryLinks {
		fmt.Fprintf(w, "  ✗ [%s] %s: %s\n", issue.Source, issue.Target, issue.Reason) //nolint:errcheck
	}
	for _, issue := range result.ScopeEscapes {
		fmt.Fprintf(w, "  ✗ [%s] %s: %s\n", issue.Source, issue.Target, issue.Reason) //nolint:errcheck
	}
	if len(result.UnreferencedMasks) > 0 {
		fmt.Fprintf(w, "Unreferenced mask files:\n") //nolint:errcheck
		for _, f := range result.UnreferencedMasks {
			fmt.Fprintf(w, "  ✗ %s\n", f) //nolint:errcheck
		}
	}

	if !result.Passed() {
		return fmt.Errorf("card validation found problems in %s", dir)
	}
	fmt.Fprintln(w, "All card links valid.") //nolint:errcheck
	return nil
}
