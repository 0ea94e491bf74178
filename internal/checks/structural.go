package checks

import (
	"fmt"
	"strings"

	"github.com/pavise/maskeval/internal/mask"
	"github.com/pavise/maskeval/internal/models"
)

// StructuralCheckers returns all structural mask checkers in display order.
func StructuralCheckers() []MaskChecker {
	return []MaskChecker{
		&CategoryCountChecker{},
		&EmptyCategoryChecker{},
		&ImbalanceChecker{},
		&NamingChecker{},
	}
}

// ValidateStructure runs every structural checker against src and
// flattens their findings. The mask is never mutated or rejected;
// downstream components proceed regardless, though an Error finding
// means the sample should not be trusted.
func ValidateStructure(src mask.Source) []models.Finding {
	results, _ := RunChecks(StructuralCheckers(), src)
	return Flatten(results)
}

// CategoryCountChecker verifies that a symbolic mask declares exactly
// two categories. The other mask kinds are binary by construction, so
// they pass unconditionally.
type CategoryCountChecker struct{}

var _ MaskChecker = (*CategoryCountChecker)(nil)

func (*CategoryCountChecker) Name() string { return "category-count" }

func (*CategoryCountChecker) Check(src mask.Source) (*CheckResult, error) {
	var findings []models.Finding
	if src.Kind() == mask.KindClass {
		if n := len(src.Classes()); n != 2 {
			findings = append(findings, models.Finding{
				Severity:       models.SeverityError,
				Category:       models.CategoryCount,
				Message:        fmt.Sprintf("mask declares %d categories, expected exactly 2", n),
				Recommendation: "restructure the mask so it declares one background and one foreground category",
			})
		}
	}
	return result("category-count", findings), nil
}

// EmptyCategoryChecker warns for every declared category that has no
// pixel instances. A declared-but-absent category usually means the
// mask and its declaration come from different sources.
type EmptyCategoryChecker struct{}

var _ MaskChecker = (*EmptyCategoryChecker)(nil)

func (*EmptyCategoryChecker) Name() string { return "empty-category" }

func (*EmptyCategoryChecker) Check(src mask.Source) (*CheckResult, error) {
	var findings []models.Finding
	for _, class := range src.Classes() {
		if class.Count == 0 {
			findings = append(findings, models.Finding{
				Severity:       models.SeverityWarning,
				Category:       models.CategoryEmpty,
				Message:        fmt.Sprintf("category %q has no pixels", class.Name),
				Recommendation: "confirm the mask really contains no instances of this category",
			})
		}
	}
	return result("empty-category", findings), nil
}

// imbalanceFloor is the share of pixels below which a non-empty
// category counts as severely imbalanced.
const imbalanceFloor = 0.01

// ImbalanceChecker warns when a category covers less than 1% of the
// grid. Sparse defect masks trip this legitimately, so it never rises
// above Warning. Empty categories are the EmptyCategoryChecker's job
// and are skipped here.
type ImbalanceChecker struct{}

var _ MaskChecker = (*ImbalanceChecker)(nil)

func (*ImbalanceChecker) Name() string { return "category-imbalance" }

func (*ImbalanceChecker) Check(src mask.Source) (*CheckResult, error) {
	width, height := src.Bounds()
	total := width * height

	var findings []models.Finding
	if total > 0 {
		for _, class := range src.Classes() {
			share := float64(class.Count) / float64(total)
			if class.Count > 0 && share < imbalanceFloor {
				findings = append(findings, models.Finding{
					Severity:       models.SeverityWarning,
					Category:       models.CategoryImbalance,
					Message:        fmt.Sprintf("category %q covers %.2f%% of pixels", class.Name, share*100),
					Recommendation: "severe imbalance is normal for sparse masks; confirm it matches the dataset",
				})
			}
		}
	}
	return result("category-imbalance", findings), nil
}

// backgroundTerms are the accepted background name patterns, matched
// case-insensitively as substrings.
var backgroundTerms = []string{"background", "bg", "0"}

// NamingChecker reports when symbolic category names do not follow the
// background/foreground convention. Unconventional names are not an
// error, but they push the encoder toward its declaration-order
// fallback, which is easy to get wrong.
type NamingChecker struct{}

var _ MaskChecker = (*NamingChecker)(nil)

func (*NamingChecker) Name() string { return "category-naming" }

func (*NamingChecker) Check(src mask.Source) (*CheckResult, error) {
	var findings []models.Finding
	if src.Kind() == mask.KindClass {
		classes := src.Classes()
		names := make([]string, 0, len(classes))
		for _, class := range classes {
			names = append(names, class.Name)
		}
		if !conventionalNames(names) {
			findings = append(findings, models.Finding{
				Severity:       models.SeverityInfo,
				Category:       models.CategoryNaming,
				Message:        fmt.Sprintf("category names %s do not follow the background/foreground convention", quoteNames(names)),
				Recommendation: "rename the categories, or rely on the documented fallback (second declared category is foreground)",
			})
		}
	}
	return result("category-naming", findings), nil
}

// conventionalNames reports whether one name matches a foreground
// pattern and a different name matches a background term.
func conventionalNames(names []string) bool {
	fg := -1
	for i, name := range names {
		if mask.MatchesForeground(name) {
			fg = i
			break
		}
	}
	if fg < 0 {
		return false
	}
	for i, name := range names {
		if i == fg {
			continue
		}
		if matchesBackground(name) {
			return true
		}
	}
	return false
}

func matchesBackground(name string) bool {
	lower := strings.ToLower(name)
	for _, term := range backgroundTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func quoteNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
