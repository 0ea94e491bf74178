package dataset

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavise/maskeval/internal/mask"
)

// writeGrayPNG encodes pixel values (row-major) as a grayscale PNG.
func writeGrayPNG(t *testing.T, dir, name string, width, height int, pixels []uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadGrayPNG(t *testing.T) {
	dir := t.TempDir()
	path := writeGrayPNG(t, dir, "mask.png", 2, 2, []uint8{0, 64, 128, 255})

	src, err := LoadGrayPNG(path)
	require.NoError(t, err)

	assert.Equal(t, 2, src.Width)
	assert.Equal(t, 2, src.Height)
	assert.Equal(t, []uint8{0, 64, 128, 255}, src.Pixels)
}

func TestLoadGrayPNG_ColorInput(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 255})

	path := filepath.Join(dir, "color.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	src, err := LoadGrayPNG(path)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0}, src.Pixels)
}

func TestLoadGrayPNG_MissingFile(t *testing.T) {
	_, err := LoadGrayPNG("/nonexistent/mask.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mask image: open")
}

func TestLoadGrayPNG_NotPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))

	_, err := LoadGrayPNG(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mask image: decode")
}

func TestReinterpret(t *testing.T) {
	gray := &mask.GraySource{Width: 2, Height: 2, Pixels: []uint8{0, 255, 0, 255}}

	t.Run("intensity passthrough", func(t *testing.T) {
		src, err := Reinterpret(gray, EncodingSpec{Kind: "intensity"})
		require.NoError(t, err)
		assert.Same(t, gray, src)
	})

	t.Run("bool zero nonzero", func(t *testing.T) {
		src, err := Reinterpret(gray, EncodingSpec{Kind: "bool"})
		require.NoError(t, err)
		b, ok := src.(*mask.BoolSource)
		require.True(t, ok)
		assert.Equal(t, []bool{false, true, false, true}, b.Pixels)
	})

	t.Run("smallint with declared values", func(t *testing.T) {
		src, err := Reinterpret(gray, EncodingSpec{
			Kind:   "smallint",
			Params: map[string]any{"values": []any{0, 255}},
		})
		require.NoError(t, err)
		s, ok := src.(*mask.IntSource)
		require.True(t, ok)
		assert.Equal(t, []int{0, 255, 0, 255}, s.Pixels)
		assert.Equal(t, []int{0, 255}, s.Declared)
	})

	t.Run("categorical explicit value mapping", func(t *testing.T) {
		src, err := Reinterpret(gray, EncodingSpec{
			Kind: "categorical",
			Params: map[string]any{
				"categories": []any{"background", "road"},
				"values":     []any{0, 255},
			},
		})
		require.NoError(t, err)
		c, ok := src.(*mask.ClassSource)
		require.True(t, ok)
		assert.Equal(t, []string{"background", "road"}, c.Categories)
		assert.Equal(t, []int{0, 1, 0, 1}, c.Pixels)
	})

	t.Run("categorical zero nonzero convention", func(t *testing.T) {
		mixed := &mask.GraySource{Width: 3, Height: 1, Pixels: []uint8{0, 17, 255}}
		src, err := Reinterpret(mixed, EncodingSpec{
			Kind:   "categorical",
			Params: map[string]any{"categories": []any{"background", "foreground"}},
		})
		require.NoError(t, err)
		c := src.(*mask.ClassSource)
		assert.Equal(t, []int{0, 1, 1}, c.Pixels)
	})

	t.Run("categorical unknown pixel value", func(t *testing.T) {
		mixed := &mask.GraySource{Width: 3, Height: 1, Pixels: []uint8{0, 128, 255}}
		_, err := Reinterpret(mixed, EncodingSpec{
			Kind: "categorical",
			Params: map[string]any{
				"categories": []any{"background", "road"},
				"values":     []any{0, 255},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pixel value 128 not in params.values")
	})

	t.Run("categorical without categories", func(t *testing.T) {
		_, err := Reinterpret(gray, EncodingSpec{Kind: "categorical"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires params.categories")
	})

	t.Run("values categories length mismatch", func(t *testing.T) {
		_, err := Reinterpret(gray, EncodingSpec{
			Kind: "categorical",
			Params: map[string]any{
				"categories": []any{"background", "road"},
				"values":     []any{0, 128, 255},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "3 entries for 2 categories")
	})

	t.Run("empty kind", func(t *testing.T) {
		_, err := Reinterpret(gray, EncodingSpec{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encoding kind is required")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Reinterpret(gray, EncodingSpec{Kind: "rgb"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown encoding kind "rgb"`)
	})
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	predPath := writeGrayPNG(t, dir, "pred.png", 2, 2, []uint8{0, 255, 255, 0})
	truthPath := writeGrayPNG(t, dir, "truth.png", 2, 2, []uint8{0, 255, 0, 255})

	pair := Pair{ID: "tile_001", PredictionPath: predPath, TruthPath: truthPath}

	pred, truth, err := LoadSources(pair, EncodingSpec{Kind: "bool"})
	require.NoError(t, err)

	assert.Equal(t, mask.KindBool, pred.Kind())
	assert.Equal(t, mask.KindBool, truth.Kind())

	pb := pred.(*mask.BoolSource)
	assert.Equal(t, []bool{false, true, true, false}, pb.Pixels)
}

func TestLoadSources_MissingPrediction(t *testing.T) {
	dir := t.TempDir()
	truthPath := writeGrayPNG(t, dir, "truth.png", 1, 1, []uint8{255})

	pair := Pair{ID: "tile_007", PredictionPath: filepath.Join(dir, "gone.png"), TruthPath: truthPath}

	_, _, err := LoadSources(pair, EncodingSpec{Kind: "bool"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample tile_007: prediction")
}
