package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pavise/maskeval/internal/mask"
	"github.com/pavise/maskeval/internal/scaffold"
	"github.com/pavise/maskeval/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var (
		description string
		encoding    string
		threshold   int
		categories  []string
	)

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Scaffold a new evaluation dataset",
		Long: `Scaffold a new evaluation dataset with a compliant directory structure.

Creates an eval.yaml manifest, preds/ and truth/ mask directories, a
README.md dataset card, a CI workflow, and a .gitignore.

On a terminal, a guided wizard collects the dataset metadata. Piped
input or any metadata flag skips the wizard; the name argument is then
required.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, initMetadata{
				description: description,
				encoding:    encoding,
				threshold:   threshold,
				categories:  categories,
				flagged: cmd.Flags().Changed("description") ||
					cmd.Flags().Changed("encoding") ||
					cmd.Flags().Changed("threshold") ||
					cmd.Flags().Changed("category"),
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Dataset description for the manifest and README")
	cmd.Flags().StringVar(&encoding, "encoding", string(mask.KindGray), "Mask encoding: bool | smallint | intensity | categorical")
	cmd.Flags().IntVar(&threshold, "threshold", wizard.DefaultThreshold, "Binarization threshold for intensity masks (0-255)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Category name for categorical masks (exactly two)")

	return cmd
}

// initMetadata carries the metadata flag values into initCommandE.
type initMetadata struct {
	description string
	encoding    string
	threshold   int
	categories  []string
	flagged     bool // any metadata flag was set explicitly
}

func initCommandE(cmd *cobra.Command, args []string, meta initMetadata) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	// Check TTY from the command's input stream, not os.Stdin directly.
	inReader := cmd.InOrStdin()
	isTTY := false
	if f, ok := inReader.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	var spec *wizard.DatasetSpec
	if isTTY && !meta.flagged {
		s, err := wizard.RunDatasetWizard(cmd.InOrStdin(), cmd.OutOrStdout(), name)
		if err != nil {
			return err
		}
		spec = s
	} else {
		if name == "" {
			return fmt.Errorf("dataset name required when running non-interactively")
		}
		spec = &wizard.DatasetSpec{
			Name:        name,
			Description: meta.description,
			Kind:        meta.encoding,
			Threshold:   meta.threshold,
			Categories:  meta.categories,
		}
		if err := spec.Validate(); err != nil {
			return err
		}
	}

	if spec.Description == "" {
		spec.Description = fmt.Sprintf("Evaluation dataset for %s.", scaffold.TitleCase(spec.Name))
	}

	return scaffoldDataset(cmd, spec)
}

// scaffoldDataset creates the dataset directory tree and writes the
// starter files, skipping any that already exist.
func scaffoldDataset(cmd *cobra.Command, spec *wizard.DatasetSpec) error {
	rootDir := spec.Name
	predsDir := filepath.Join(rootDir, "preds")
	truthDir := filepath.Join(rootDir, "truth")
	workflowDir := filepath.Join(rootDir, ".github", "workflows")

	for _, d := range []string{predsDir, truthDir, workflowDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	files := []fileEntry{
		{filepath.Join(rootDir, "eval.yaml"), scaffold.EvalYAML(spec.Name, spec.Description, spec.Kind, spec.Threshold, spec.Categories)},
		{filepath.Join(rootDir, "README.md"), scaffold.ReadmeCard(spec.Name, spec.Description, spec.Kind)},
		{filepath.Join(workflowDir, "eval.yml"), scaffold.CIWorkflow(spec.Name)},
		{filepath.Join(rootDir, ".gitignore"), scaffold.Gitignore()},
	}

	return writeFiles(cmd, files)
}

// fileEntry pairs a path with its content for batch writing.
type fileEntry struct {
	path    string
	content string
}

// writeFiles writes each file, skipping any that already exist.
func writeFiles(cmd *cobra.Command, files []fileEntry) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Scaffolding dataset:") //nolint:errcheck

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  skip %s (already exists)\n", f.path) //nolint:errcheck
			continue
		}

		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  create %s\n", f.path) //nolint:errcheck
	}

	return nil
}
