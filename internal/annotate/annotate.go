// File: internal/annotate/annotate.go

// Package annotate renders the screenshots shown to the model: numbered
// labels over interactive elements, and a numbered grid overlay for rounds
// where no labeled element covers the target.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/xkilldash9x/taskdroid-cli/internal/ui"
)

var (
	labelText = color.RGBA{0, 0, 0, 255}
	labelBack = color.RGBA{220, 220, 220, 178}
	gridLine  = color.RGBA{255, 64, 64, 255}
)

// Annotator draws on screenshots. Grid geometry is fixed at construction so
// the drawn overlay and the dispatcher's coordinate math always agree.
type Annotator struct {
	logger   *zap.Logger
	gridRows int
	gridCols int
}

// New creates an Annotator with the given grid geometry.
func New(logger *zap.Logger, gridRows, gridCols int) *Annotator {
	return &Annotator{
		logger:   logger.Named("annotate"),
		gridRows: gridRows,
		gridCols: gridCols,
	}
}

// LabelElements writes dstPath as a copy of srcPath with a numeric label
// centered on each element's bounding box. Labels are 1-based to match the
// element roster in the prompt.
func (a *Annotator) LabelElements(srcPath, dstPath string, elements []ui.Element) error {
	img, err := loadPNG(srcPath)
	if err != nil {
		return err
	}
	canvas := toRGBA(img)

	for i, elem := range elements {
		x, y := elem.Bounds.Center()
		a.drawLabel(canvas, strconv.Itoa(i+1), x, y)
	}
	return savePNG(dstPath, canvas)
}

// DrawGrid writes dstPath as a copy of srcPath overlaid with the numbered
// grid and reports the geometry it drew.
func (a *Annotator) DrawGrid(srcPath, dstPath string) (rows, cols int, err error) {
	img, err := loadPNG(srcPath)
	if err != nil {
		return 0, 0, err
	}
	canvas := toRGBA(img)
	bounds := canvas.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	cellW := width / a.gridCols
	cellH := height / a.gridRows

	for c := 1; c < a.gridCols; c++ {
		vline(canvas, bounds.Min.X+c*cellW, bounds.Min.Y, bounds.Max.Y, gridLine)
	}
	for r := 1; r < a.gridRows; r++ {
		hline(canvas, bounds.Min.Y+r*cellH, bounds.Min.X, bounds.Max.X, gridLine)
	}

	// Number each cell at its center, row-major starting at 1, matching the
	// area numbering the grid commands use.
	for r := 0; r < a.gridRows; r++ {
		for c := 0; c < a.gridCols; c++ {
			area := r*a.gridCols + c + 1
			x := bounds.Min.X + c*cellW + cellW/2
			y := bounds.Min.Y + r*cellH + cellH/2
			a.drawLabel(canvas, strconv.Itoa(area), x, y)
		}
	}

	if err := savePNG(dstPath, canvas); err != nil {
		return 0, 0, err
	}
	return a.gridRows, a.gridCols, nil
}

// drawLabel paints text centered on (cx, cy) over a translucent backing box
// so the label stays readable on any screen content.
func (a *Annotator) drawLabel(canvas *image.RGBA, text string, cx, cy int) {
	face := basicfont.Face7x13
	textW := font.MeasureString(face, text).Ceil()
	textH := face.Metrics().Ascent.Ceil()

	const pad = 4
	box := image.Rect(cx-textW/2-pad, cy-textH/2-pad, cx+textW/2+pad, cy+textH/2+pad)
	box = box.Intersect(canvas.Bounds())
	if box.Empty() {
		a.logger.Warn("Label position outside image bounds", zap.String("label", text))
		return
	}
	draw.Draw(canvas, box, image.NewUniform(labelBack), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(labelText),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(cx - textW/2),
			Y: fixed.I(cy + textH/2),
		},
	}
	d.DrawString(text)
}

func vline(canvas *image.RGBA, x, y0, y1 int, c color.RGBA) {
	for y := y0; y < y1; y++ {
		canvas.SetRGBA(x, y, c)
		if x+1 < canvas.Bounds().Max.X {
			canvas.SetRGBA(x+1, y, c)
		}
	}
}

func hline(canvas *image.RGBA, y, x0, x1 int, c color.RGBA) {
	for x := x0; x < x1; x++ {
		canvas.SetRGBA(x, y, c)
		if y+1 < canvas.Bounds().Max.Y {
			canvas.SetRGBA(x, y+1, c)
		}
	}
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening screenshot %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot %s: %w", path, err)
	}
	return img, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating annotated image %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding annotated image %s: %w", path, err)
	}
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
