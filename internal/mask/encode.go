package mask

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/pavise/maskeval/internal/models"
)

// foregroundPatterns are checked in priority order against lowercased
// category names; the first match decides the foreground category.
var foregroundPatterns = []string{"foreground", "object", "1"}

type encodeOptions struct {
	threshold *float64
}

// EncodeOption adjusts how a raw mask is encoded.
type EncodeOption func(*encodeOptions)

// WithThreshold sets an explicit binarization threshold for intensity
// masks: pixels strictly greater than t become foreground.
func WithThreshold(t float64) EncodeOption {
	return func(o *encodeOptions) { o.threshold = &t }
}

// encodeParams mirrors the manifest's encoding params block.
type encodeParams struct {
	Threshold *float64 `mapstructure:"threshold"`
}

// OptionsFromParams converts a loosely typed params map, as read from a
// manifest, into encode options.
func OptionsFromParams(params map[string]any) ([]EncodeOption, error) {
	if len(params) == 0 {
		return nil, nil
	}
	var p encodeParams
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, fmt.Errorf("decoding encoding params: %w", err)
	}
	var opts []EncodeOption
	if p.Threshold != nil {
		opts = append(opts, WithThreshold(*p.Threshold))
	}
	return opts, nil
}

// Encode converts a raw mask into its canonical binary form. Alongside
// the mask it returns advisory findings describing which conversion rule
// applied. Findings are never errors; a non-nil error means the sample
// cannot be scored at all.
func Encode(src Source, opts ...EncodeOption) (*Mask, []models.Finding, error) {
	var o encodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch s := src.(type) {
	case *BoolSource:
		m, err := encodeBool(s)
		return m, nil, err
	case *IntSource:
		m, err := encodeInt(s)
		return m, nil, err
	case *GraySource:
		return encodeGray(s, o.threshold)
	case *ClassSource:
		return encodeClass(s)
	default:
		return nil, nil, fmt.Errorf("mask: unsupported source kind %q", src.Kind())
	}
}

func encodeBool(s *BoolSource) (*Mask, error) {
	if err := validateGrid(s, len(s.Pixels)); err != nil {
		return nil, err
	}
	labels := make([]Label, len(s.Pixels))
	for i, p := range s.Pixels {
		if p {
			labels[i] = Foreground
		}
	}
	return New(s.Width, s.Height, labels)
}

// encodeInt maps the larger of the two observed values to foreground. A
// uniform mask resolves against the declared value pair when one exists;
// without a declaration the single value is treated as background.
func encodeInt(s *IntSource) (*Mask, error) {
	if err := validateGrid(s, len(s.Pixels)); err != nil {
		return nil, err
	}
	values := s.distinct()
	if len(values) > 2 {
		return nil, &NotBinaryError{Values: values}
	}

	fgValue := 0
	hasFg := false
	switch {
	case len(values) == 2:
		fgValue, hasFg = values[1], true
	case len(s.Declared) == 2:
		larger := s.Declared[0]
		if s.Declared[1] > larger {
			larger = s.Declared[1]
		}
		if values[0] == larger {
			fgValue, hasFg = larger, true
		}
	}

	labels := make([]Label, len(s.Pixels))
	if hasFg {
		for i, p := range s.Pixels {
			if p == fgValue {
				labels[i] = Foreground
			}
		}
	}
	return New(s.Width, s.Height, labels)
}

func encodeGray(s *GraySource, threshold *float64) (*Mask, []models.Finding, error) {
	if err := validateGrid(s, len(s.Pixels)); err != nil {
		return nil, nil, err
	}
	labels := make([]Label, len(s.Pixels))

	if threshold != nil {
		t := *threshold
		for i, p := range s.Pixels {
			if float64(p) > t {
				labels[i] = Foreground
			}
		}
		m, err := New(s.Width, s.Height, labels)
		return m, nil, err
	}

	uniques := s.unique()
	if len(uniques) == 2 {
		// A two-value mask binarizes by exact match on the larger value;
		// no thresholding, no rounding error.
		fg := uniques[1]
		for i, p := range s.Pixels {
			if p == fg {
				labels[i] = Foreground
			}
		}
		m, err := New(s.Width, s.Height, labels)
		return m, nil, err
	}
	if len(uniques) == 1 {
		// A single observed intensity carries no evidence of foreground;
		// like a uniform small-integer mask, it reads as all background.
		m, err := New(s.Width, s.Height, labels)
		return m, nil, err
	}

	t := meanIntensity(uniques)
	for i, p := range s.Pixels {
		if float64(p) > t {
			labels[i] = Foreground
		}
	}
	m, err := New(s.Width, s.Height, labels)
	if err != nil {
		return nil, nil, err
	}
	findings := []models.Finding{{
		Severity:       models.SeverityInfo,
		Category:       models.CategoryDerivedThreshold,
		Message:        fmt.Sprintf("binarized %d unique intensities with derived threshold %.2f (mean of uniques)", len(uniques), t),
		Recommendation: "supply an explicit threshold if this mask is not already binary",
	}}
	return m, findings, nil
}

func meanIntensity(values []uint8) float64 {
	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// encodeClass resolves the foreground category by name pattern, falling
// back to the second declared category by convention.
func encodeClass(s *ClassSource) (*Mask, []models.Finding, error) {
	if len(s.Categories) != 2 {
		return nil, nil, &CategoryCountError{Count: len(s.Categories)}
	}
	if err := validateGrid(s, len(s.Pixels)); err != nil {
		return nil, nil, err
	}

	fgIndex, matched := foregroundIndex(s.Categories)
	var findings []models.Finding
	if !matched {
		findings = append(findings, models.Finding{
			Severity:       models.SeverityInfo,
			Category:       models.CategoryFallback,
			Message:        fmt.Sprintf("no category name matches a foreground pattern; using second declared category %q by convention", s.Categories[1]),
			Recommendation: "rename categories to the background/foreground convention to make the mapping explicit",
		})
	}

	labels := make([]Label, len(s.Pixels))
	for i, p := range s.Pixels {
		if p < 0 || p >= len(s.Categories) {
			return nil, nil, fmt.Errorf("mask: pixel %d references class index %d, want 0 or 1", i, p)
		}
		if p == fgIndex {
			labels[i] = Foreground
		}
	}
	m, err := New(s.Width, s.Height, labels)
	if err != nil {
		return nil, nil, err
	}
	return m, findings, nil
}

// foregroundIndex applies the ordered pattern list to the category names.
// Patterns are tried one at a time across both names, so "foreground"
// always beats "object", and declaration order breaks ties within one
// pattern.
func foregroundIndex(categories []string) (int, bool) {
	for _, pattern := range foregroundPatterns {
		for i, name := range categories {
			if strings.Contains(strings.ToLower(name), pattern) {
				return i, true
			}
		}
	}
	return 1, false
}

// MatchesForeground reports whether a category name matches one of the
// recognized foreground naming patterns. This is the same rule the
// encoder applies when resolving symbolic categories.
func MatchesForeground(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range foregroundPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
