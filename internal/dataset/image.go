package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/go-viper/mapstructure/v2"

	"github.com/pavise/maskeval/internal/mask"
)

// LoadGrayPNG decodes a PNG file into an 8-bit intensity source. Color
// images are converted through the standard grayscale model; mask files
// in practice are already 8-bit grayscale and take the fast path.
func LoadGrayPNG(path string) (*mask.GraySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mask image: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("mask image: decode %s: %w", path, err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]uint8, 0, w*h)

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			pixels = append(pixels, row...)
		}
		return &mask.GraySource{Width: w, Height: h, Pixels: pixels}, nil
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			pixels = append(pixels, gray.Y)
		}
	}
	return &mask.GraySource{Width: w, Height: h, Pixels: pixels}, nil
}

// reinterpretParams is the subset of encoding params the reinterpreter
// consumes. Threshold is left to the encoder.
type reinterpretParams struct {
	Categories []string `mapstructure:"categories"`
	Values     []int    `mapstructure:"values"`
}

// Reinterpret lifts a decoded intensity grid into the source kind the
// manifest declares. PNG files carry no encoding information of their
// own, so the manifest is authoritative:
//
//   - intensity: the grid as decoded
//   - bool: zero pixels are false, everything else true
//   - smallint: pixel values as integers, with params.values as the
//     declared pair
//   - categorical: pixels map onto params.categories, either by the
//     explicit params.values pairing or by the zero/nonzero convention
func Reinterpret(g *mask.GraySource, enc EncodingSpec) (mask.Source, error) {
	var p reinterpretParams
	if len(enc.Params) > 0 {
		if err := mapstructure.Decode(enc.Params, &p); err != nil {
			return nil, fmt.Errorf("decoding encoding params: %w", err)
		}
	}

	switch mask.Kind(enc.Kind) {
	case mask.KindGray:
		return g, nil

	case mask.KindBool:
		pixels := make([]bool, len(g.Pixels))
		for i, v := range g.Pixels {
			pixels[i] = v != 0
		}
		return &mask.BoolSource{Width: g.Width, Height: g.Height, Pixels: pixels}, nil

	case mask.KindInt:
		pixels := make([]int, len(g.Pixels))
		for i, v := range g.Pixels {
			pixels[i] = int(v)
		}
		return &mask.IntSource{Width: g.Width, Height: g.Height, Pixels: pixels, Declared: p.Values}, nil

	case mask.KindClass:
		return reinterpretClass(g, p)

	case "":
		return nil, fmt.Errorf("encoding kind is required")

	default:
		return nil, fmt.Errorf("unknown encoding kind %q", enc.Kind)
	}
}

func reinterpretClass(g *mask.GraySource, p reinterpretParams) (mask.Source, error) {
	if len(p.Categories) == 0 {
		return nil, fmt.Errorf("categorical encoding requires params.categories")
	}
	if len(p.Values) > 0 && len(p.Values) != len(p.Categories) {
		return nil, fmt.Errorf("params.values has %d entries for %d categories", len(p.Values), len(p.Categories))
	}

	pixels := make([]int, len(g.Pixels))
	if len(p.Values) > 0 {
		index := make(map[int]int, len(p.Values))
		for i, v := range p.Values {
			index[v] = i
		}
		for i, v := range g.Pixels {
			ci, ok := index[int(v)]
			if !ok {
				return nil, fmt.Errorf("pixel value %d not in params.values %v", v, p.Values)
			}
			pixels[i] = ci
		}
	} else {
		// Zero/nonzero convention: 0 is the first category, anything
		// else the second.
		if len(p.Categories) < 2 {
			return nil, fmt.Errorf("categorical encoding without params.values requires 2 categories, got %d", len(p.Categories))
		}
		for i, v := range g.Pixels {
			if v != 0 {
				pixels[i] = 1
			}
		}
	}

	return &mask.ClassSource{
		Width:      g.Width,
		Height:     g.Height,
		Categories: p.Categories,
		Pixels:     pixels,
	}, nil
}

// LoadSources loads both mask files of a pair and reinterprets them
// per the manifest encoding.
func LoadSources(pair Pair, enc EncodingSpec) (pred, truth mask.Source, err error) {
	predGray, err := LoadGrayPNG(pair.PredictionPath)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: prediction: %w", pair.ID, err)
	}
	truthGray, err := LoadGrayPNG(pair.TruthPath)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: truth: %w", pair.ID, err)
	}

	pred, err = Reinterpret(predGray, enc)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: prediction: %w", pair.ID, err)
	}
	truth, err = Reinterpret(truthGray, enc)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %s: truth: %w", pair.ID, err)
	}
	return pred, truth, nil
}
