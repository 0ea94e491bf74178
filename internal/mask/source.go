package mask

import (
	"sort"
	"strconv"
)

// Kind identifies a raw mask encoding.
type Kind string

const (
	KindBool  Kind = "bool"
	KindInt   Kind = "smallint"
	KindGray  Kind = "intensity"
	KindClass Kind = "categorical"
)

// Class is one entry of a source's class census: a named pixel class and
// how many pixels carry it. Declared-but-absent classes appear with a
// zero count so the structural validator can flag them.
type Class struct {
	Name  string
	Count int
}

// Source is a raw mask in one of the supported input encodings. The kind
// must be declared explicitly by the producer; it is never guessed from
// raw bytes.
type Source interface {
	Kind() Kind
	Bounds() (width, height int)
	// Classes returns the class census in a deterministic order.
	Classes() []Class
}

// BoolSource is a boolean grid: true pixels are foreground.
type BoolSource struct {
	Width, Height int
	Pixels        []bool
}

var _ Source = (*BoolSource)(nil)

func (s *BoolSource) Kind() Kind         { return KindBool }
func (s *BoolSource) Bounds() (int, int) { return s.Width, s.Height }

// Classes always reports both boolean classes, so an all-false mask shows
// an empty "true" class.
func (s *BoolSource) Classes() []Class {
	trueCount := 0
	for _, p := range s.Pixels {
		if p {
			trueCount++
		}
	}
	return []Class{
		{Name: "false", Count: len(s.Pixels) - trueCount},
		{Name: "true", Count: trueCount},
	}
}

// IntSource is a small-integer grid. Declared optionally names the full
// value set the producer works with; when present it lets a uniform mask
// (one observed value) resolve which side of the pair it sits on.
type IntSource struct {
	Width, Height int
	Pixels        []int
	Declared      []int
}

var _ Source = (*IntSource)(nil)

func (s *IntSource) Kind() Kind         { return KindInt }
func (s *IntSource) Bounds() (int, int) { return s.Width, s.Height }

func (s *IntSource) Classes() []Class {
	counts := make(map[int]int)
	for _, p := range s.Pixels {
		counts[p]++
	}
	values := make([]int, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	for _, d := range s.Declared {
		if _, ok := counts[d]; !ok {
			counts[d] = 0
			values = append(values, d)
		}
	}
	sort.Ints(values)

	classes := make([]Class, len(values))
	for i, v := range values {
		classes[i] = Class{Name: strconv.Itoa(v), Count: counts[v]}
	}
	return classes
}

// distinct returns the observed values in ascending order.
func (s *IntSource) distinct() []int {
	seen := make(map[int]struct{})
	var values []int
	for _, p := range s.Pixels {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			values = append(values, p)
		}
	}
	sort.Ints(values)
	return values
}

// GraySource is an 8-bit intensity grid.
type GraySource struct {
	Width, Height int
	Pixels        []uint8
}

var _ Source = (*GraySource)(nil)

func (s *GraySource) Kind() Kind         { return KindGray }
func (s *GraySource) Bounds() (int, int) { return s.Width, s.Height }

func (s *GraySource) Classes() []Class {
	var counts [256]int
	for _, p := range s.Pixels {
		counts[p]++
	}
	var classes []Class
	for v, c := range counts {
		if c > 0 {
			classes = append(classes, Class{Name: strconv.Itoa(v), Count: c})
		}
	}
	return classes
}

// unique returns the observed intensities in ascending order.
func (s *GraySource) unique() []uint8 {
	var seen [256]bool
	for _, p := range s.Pixels {
		seen[p] = true
	}
	var values []uint8
	for v, ok := range seen {
		if ok {
			values = append(values, uint8(v))
		}
	}
	return values
}

// ClassSource is a symbolic two-class grid: Categories holds the ordered
// declared category names and each pixel is an index into it.
type ClassSource struct {
	Width, Height int
	Categories    []string
	Pixels        []int
}

var _ Source = (*ClassSource)(nil)

func (s *ClassSource) Kind() Kind         { return KindClass }
func (s *ClassSource) Bounds() (int, int) { return s.Width, s.Height }

// Classes reports every declared category in declaration order, including
// categories no pixel uses.
func (s *ClassSource) Classes() []Class {
	counts := make([]int, len(s.Categories))
	for _, p := range s.Pixels {
		if p >= 0 && p < len(counts) {
			counts[p]++
		}
	}
	classes := make([]Class, len(s.Categories))
	for i, name := range s.Categories {
		classes[i] = Class{Name: name, Count: counts[i]}
	}
	return classes
}

// validateGrid rejects empty sources and pixel slices that do not match
// the declared bounds.
func validateGrid(src Source, pixels int) error {
	w, h := src.Bounds()
	if w <= 0 || h <= 0 || pixels == 0 {
		return ErrEmptyMask
	}
	if pixels != w*h {
		return errGridMismatch(w, h, pixels)
	}
	return nil
}
