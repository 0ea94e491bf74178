package mask

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyMask signals a raw mask with no pixels. Conversion of an empty
// mask is always an error, never a silent default.
var ErrEmptyMask = errors.New("mask: empty mask")

// NotBinaryError signals a small-integer mask with more than two distinct
// observed values.
type NotBinaryError struct {
	// Values holds the distinct observed values in ascending order.
	Values []int
}

func (e *NotBinaryError) Error() string {
	shown := e.Values
	suffix := ""
	if len(shown) > 6 {
		shown = shown[:6]
		suffix = ", …"
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = strconv.Itoa(v)
	}
	return fmt.Sprintf("mask: not a binary mask: %d distinct values observed (%s%s)",
		len(e.Values), strings.Join(parts, ", "), suffix)
}

// CategoryCountError signals a symbolic mask that does not declare exactly
// two categories.
type CategoryCountError struct {
	Count int
}

func (e *CategoryCountError) Error() string {
	return fmt.Sprintf("mask: symbolic mask must declare exactly 2 categories, got %d", e.Count)
}

// DimensionError signals a prediction/truth shape mismatch when two masks
// are compared.
type DimensionError struct {
	PredWidth, PredHeight   int
	TruthWidth, TruthHeight int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("mask: dimension mismatch: prediction %dx%d, truth %dx%d",
		e.PredWidth, e.PredHeight, e.TruthWidth, e.TruthHeight)
}

func errGridMismatch(w, h, n int) error {
	return fmt.Errorf("mask: %dx%d grid requires %d pixels, got %d", w, h, w*h, n)
}
