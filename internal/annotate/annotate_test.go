// File: internal/annotate/annotate_test.go
package annotate

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/taskdroid-cli/internal/ui"
)

func writeTestScreenshot(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{30, 30, 30, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "screen.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestLabelElements_WritesAnnotatedCopy(t *testing.T) {
	a := New(zaptest.NewLogger(t), 5, 4)
	src := writeTestScreenshot(t, 400, 800)
	dst := filepath.Join(filepath.Dir(src), "annotated.png")

	elements := []ui.Element{
		{Identifier: "a", Bounds: ui.Rect{X1: 50, Y1: 100, X2: 150, Y2: 160}},
		{Identifier: "b", Bounds: ui.Rect{X1: 200, Y1: 400, X2: 380, Y2: 460}},
	}
	require.NoError(t, a.LabelElements(src, dst, elements))

	out := decodePNG(t, dst)
	assert.Equal(t, 400, out.Bounds().Dx())
	assert.Equal(t, 800, out.Bounds().Dy())

	// The label backing box must have altered the pixels at each center.
	r, g, b, _ := out.At(100, 130).RGBA()
	assert.False(t, r>>8 == 30 && g>>8 == 30 && b>>8 == 30, "label should change pixels at element center")
}

func TestLabelElements_OffscreenElementDoesNotFail(t *testing.T) {
	a := New(zaptest.NewLogger(t), 5, 4)
	src := writeTestScreenshot(t, 100, 100)
	dst := filepath.Join(filepath.Dir(src), "annotated.png")

	elements := []ui.Element{
		{Identifier: "ghost", Bounds: ui.Rect{X1: 5000, Y1: 5000, X2: 5100, Y2: 5100}},
	}
	require.NoError(t, a.LabelElements(src, dst, elements))
}

func TestLabelElements_MissingSource(t *testing.T) {
	a := New(zaptest.NewLogger(t), 5, 4)
	err := a.LabelElements("/no/such/file.png", filepath.Join(t.TempDir(), "out.png"), nil)
	assert.Error(t, err)
}

func TestDrawGrid_ReturnsConfiguredGeometry(t *testing.T) {
	a := New(zaptest.NewLogger(t), 5, 4)
	src := writeTestScreenshot(t, 400, 800)
	dst := filepath.Join(filepath.Dir(src), "grid.png")

	rows, cols, err := a.DrawGrid(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 5, rows)
	assert.Equal(t, 4, cols)

	out := decodePNG(t, dst)
	// A vertical grid line runs at x = 100 (400 / 4 columns).
	r, _, _, _ := out.At(100, 50).RGBA()
	assert.Equal(t, uint32(255), r>>8, "grid line should be drawn")
}
