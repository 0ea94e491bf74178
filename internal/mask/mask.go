// Package mask defines the canonical binary mask representation and the
// encoder that converts raw segmentation masks (boolean, small-integer,
// 8-bit intensity, symbolic two-class) into it. Everything downstream —
// metrics, validators, reports — operates on the canonical form only.
package mask

// Label is a canonical pixel class.
type Label uint8

const (
	Background Label = 0
	Foreground Label = 1
)

// Mask is the canonical binary mask: a row-major grid of labels.
// Instances are immutable after construction.
type Mask struct {
	width  int
	height int
	labels []Label
}

// New builds a canonical mask, validating that labels matches the grid.
func New(width, height int, labels []Label) (*Mask, error) {
	if width <= 0 || height <= 0 || len(labels) == 0 {
		return nil, ErrEmptyMask
	}
	if len(labels) != width*height {
		return nil, errGridMismatch(width, height, len(labels))
	}
	return &Mask{width: width, height: height, labels: labels}, nil
}

func (m *Mask) Width() int  { return m.width }
func (m *Mask) Height() int { return m.height }

// Len returns the total pixel count.
func (m *Mask) Len() int { return len(m.labels) }

// At returns the label at linear index i (row-major).
func (m *Mask) At(i int) Label { return m.labels[i] }

// Labels exposes the underlying label slice. Callers must not modify it.
func (m *Mask) Labels() []Label { return m.labels }

// Foreground counts foreground pixels.
func (m *Mask) Foreground() int {
	n := 0
	for _, l := range m.labels {
		if l == Foreground {
			n++
		}
	}
	return n
}

// Equal reports whether two masks have identical shape and labels.
func (m *Mask) Equal(other *Mask) bool {
	if other == nil || m.width != other.width || m.height != other.height {
		return false
	}
	for i, l := range m.labels {
		if l != other.labels[i] {
			return false
		}
	}
	return true
}

// Source reinterprets the canonical labels as a boolean raw mask, which
// is how a canonical mask re-enters the encoder (round-trip identity).
func (m *Mask) Source() *BoolSource {
	px := make([]bool, len(m.labels))
	for i, l := range m.labels {
		px[i] = l == Foreground
	}
	return &BoolSource{Width: m.width, Height: m.height, Pixels: px}
}
