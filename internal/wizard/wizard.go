package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pavise/maskeval/internal/mask"
	"github.com/pavise/maskeval/internal/scaffold"
	"golang.org/x/term"
)

// DefaultThreshold is the binarization cutoff scaffolded for intensity
// datasets that do not pick their own.
const DefaultThreshold = 127

// DatasetSpec holds all fields collected during the interactive wizard.
type DatasetSpec struct {
	Name        string
	Description string
	Kind        string
	Threshold   int
	Categories  []string
}

// Validate checks a spec assembled outside the form, such as one built
// from command-line flags.
func (s *DatasetSpec) Validate() error {
	if err := scaffold.ValidateName(s.Name); err != nil {
		return err
	}
	switch mask.Kind(s.Kind) {
	case mask.KindBool, mask.KindInt:
	case mask.KindGray:
		if s.Threshold < 0 || s.Threshold > 255 {
			return fmt.Errorf("threshold %d out of range 0-255", s.Threshold)
		}
	case mask.KindClass:
		if len(s.Categories) != 2 {
			return fmt.Errorf("categorical encoding needs exactly two categories, got %d", len(s.Categories))
		}
	default:
		return fmt.Errorf("unknown encoding kind %q", s.Kind)
	}
	return nil
}

// RunDatasetWizard runs an interactive huh form to collect dataset metadata.
// If initialName is non-empty, it pre-populates the name field.
func RunDatasetWizard(in io.Reader, out io.Writer, initialName string) (*DatasetSpec, error) {
	var (
		name          = initialName
		description   string
		kind          string
		thresholdRaw  string
		categoriesRaw string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Dataset name").
				Description("A kebab-case name for your dataset").
				Placeholder("roads-val").
				Value(&name).
				Validate(func(s string) error {
					return scaffold.ValidateName(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Description").
				Description("What does this dataset evaluate?").
				Placeholder("Describe your dataset").
				Value(&description),
			huh.NewSelect[string]().
				Title("Mask encoding").
				Description("How prediction and truth masks are stored").
				Options(
					huh.NewOption("bool", string(mask.KindBool)),
					huh.NewOption("smallint", string(mask.KindInt)),
					huh.NewOption("intensity", string(mask.KindGray)),
					huh.NewOption("categorical", string(mask.KindClass)),
				).
				Value(&kind),
			huh.NewInput().
				Title("Binarization threshold").
				Description("Intensity cutoff 0-255, only used by intensity masks").
				Placeholder(strconv.Itoa(DefaultThreshold)).
				Value(&thresholdRaw).
				Validate(validateThreshold),
			huh.NewInput().
				Title("Categories").
				Description("Comma-separated class names, only used by categorical masks").
				Placeholder("background, foreground").
				Value(&categoriesRaw),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	return &DatasetSpec{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Kind:        kind,
		Threshold:   parseThreshold(thresholdRaw),
		Categories:  splitAndTrim(categoriesRaw),
	}, nil
}

// validateThreshold accepts an empty value, which means the default
// applies, or an integer in the 0-255 intensity range.
func validateThreshold(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("threshold must be an integer")
	}
	if n < 0 || n > 255 {
		return fmt.Errorf("threshold must be between 0 and 255")
	}
	return nil
}

func parseThreshold(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultThreshold
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return DefaultThreshold
	}
	return n
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
