// Package layout composes captured stills into a single photo-strip or grid
// image: framed cells on a colored background with a footer band carrying the
// booth title, the date and an optional QR badge. The same engine renders
// both the high-resolution photo output and the low-resolution video frames;
// spacing scales down for the latter so proportions match.
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/michaelmcallister/photobooth/geometry"
)

// ErrEmptyInput is returned when Compose is given no rasters; the caller
// should not have invoked it and nothing is drawn.
var ErrEmptyInput = errors.New("layout: no rasters to compose")

// Kind selects the arrangement of cells.
type Kind int

const (
	// Single is one photo with a footer.
	Single Kind = iota
	// Strip3 stacks three photos vertically.
	Strip3
	// Strip4 stacks four photos vertically.
	Strip4
	// Grid2x2 arranges four photos in two rows of two.
	Grid2x2
)

// Cells returns the number of photos the kind needs.
func (k Kind) Cells() int {
	switch k {
	case Strip3:
		return 3
	case Strip4, Grid2x2:
		return 4
	}
	return 1
}

func (k Kind) String() string {
	switch k {
	case Strip3:
		return "strip3"
	case Strip4:
		return "strip4"
	case Grid2x2:
		return "grid"
	}
	return "single"
}

// ParseKind converts a flag/config string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "single":
		return Single, nil
	case "strip3":
		return Strip3, nil
	case "strip4":
		return Strip4, nil
	case "grid":
		return Grid2x2, nil
	}
	return Single, fmt.Errorf("layout: unknown kind %q", s)
}

// Spec is the styling for one composition.
type Spec struct {
	Kind       Kind
	FrameColor color.RGBA
	Title      string
	// QRBadge is an externally supplied pre-rendered raster, drawn
	// bottom-right in the footer when non-nil.
	QRBadge image.Image
}

// Composite is the assembled output raster, tagged with its dimensions for
// downstream video assembly.
type Composite struct {
	Image  *image.RGBA
	Width  int
	Height int
}

// EncodePNG serializes the composite.
func (c *Composite) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Image); err != nil {
		return nil, fmt.Errorf("layout: png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Spacing constants at scale 1.0. Below the small-source width threshold
// everything halves, keeping video-frame composites proportional to the
// full-resolution photo.
const (
	basePadding    = 70
	baseGap        = 70
	baseFooter     = 160
	smallThreshold = 500

	dateFormat = "2006-01-02"
)

// dims is the canvas/cell arithmetic, split from drawing so it stays a pure
// function of its inputs.
type dims struct {
	scale                float64
	padding, gap, footer int
	cellW, cellH         int
	width, height        int
	cols, rows           int
}

func computeDims(kind Kind, cellW, cellH int, scale float64) dims {
	d := dims{
		scale:   scale,
		padding: int(basePadding * scale),
		gap:     int(baseGap * scale),
		footer:  int(baseFooter * scale),
		cellW:   cellW,
		cellH:   cellH,
		cols:    1,
		rows:    kind.Cells(),
	}
	if kind == Grid2x2 {
		d.cols, d.rows = 2, 2
	}
	d.width = d.cellW*d.cols + d.gap*(d.cols-1) + 2*d.padding
	d.height = d.cellH*d.rows + d.gap*(d.rows-1) + 2*d.padding + d.footer
	return d
}

// cellOrigin returns the top-left pixel of cell i.
func (d dims) cellOrigin(i int) (int, int) {
	col, row := i%d.cols, i/d.cols
	x := d.padding + col*(d.cellW+d.gap)
	y := d.padding + row*(d.cellH+d.gap)
	return x, y
}

// Compose arranges the rasters into the requested layout. Rasters
// need not share dimensions: every cell is re-cropped to 4:3 and scaled to
// the common cell size taken from the first raster. Fewer rasters than the
// layout's cell count leaves the remaining cells as bare frame color; zero
// rasters is an error.
func Compose(rasters []image.Image, spec Spec) (*Composite, error) {
	if len(rasters) == 0 {
		return nil, ErrEmptyInput
	}

	first := rasters[0].Bounds()
	cell := geometry.CoverCrop(first.Dx(), first.Dy(), geometry.Ratio4x3)
	if cell.W <= 0 || cell.H <= 0 {
		return nil, ErrEmptyInput
	}
	scale := 1.0
	if cell.W < smallThreshold {
		scale = 0.5
	}
	d := computeDims(spec.Kind, cell.W, cell.H, scale)

	dc := gg.NewContext(d.width, d.height)
	dc.SetColor(spec.FrameColor)
	dc.Clear()

	n := len(rasters)
	if cells := spec.Kind.Cells(); n > cells {
		n = cells
	}
	for i := 0; i < n; i++ {
		x, y := d.cellOrigin(i)
		drawCell(dc, rasters[i], x, y, d.cellW, d.cellH)
	}

	drawFooter(dc, spec, d)

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		// gg contexts are RGBA-backed; convert defensively if that changes.
		b := dc.Image().Bounds()
		rgba := image.NewRGBA(b)
		xdraw.Draw(rgba, b, dc.Image(), b.Min, xdraw.Src)
		img = rgba
	}
	return &Composite{Image: img, Width: d.width, Height: d.height}, nil
}

// drawCell cover-crops src to the cell ratio and scales it into place.
func drawCell(dc *gg.Context, src image.Image, x, y, w, h int) {
	b := src.Bounds()
	crop := geometry.CoverCrop(b.Dx(), b.Dy(), float64(w)/float64(h))
	srcRect := image.Rect(crop.X, crop.Y, crop.X+crop.W, crop.Y+crop.H).Add(b.Min)
	cell := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(cell, cell.Bounds(), src, srcRect, xdraw.Src, nil)
	dc.DrawImage(cell, x, y)
}

func drawFooter(dc *gg.Context, spec Spec, d dims) {
	textColor := color.RGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}
	if luminance(spec.FrameColor) < 0.5 {
		textColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}

	// The footer band sits between the last row of cells and the bottom
	// padding.
	bandTop := float64(d.height - d.padding - d.footer)
	centerX := float64(d.width) / 2
	titleY := bandTop + float64(d.footer)*0.40
	dateY := bandTop + float64(d.footer)*0.72

	dc.SetColor(textColor)
	if spec.Title != "" {
		dc.SetFontFace(footerFace(40 * d.scale))
		dc.DrawStringAnchored(spec.Title, centerX, titleY, 0.5, 0.5)
	}
	dc.SetFontFace(footerFace(24 * d.scale))
	dc.DrawStringAnchored(time.Now().Format(dateFormat), centerX, dateY, 0.5, 0.5)

	if spec.QRBadge != nil {
		pad := int(20 * d.scale)
		size := d.footer - 2*pad
		if size > 0 {
			badge := image.NewRGBA(image.Rect(0, 0, size, size))
			xdraw.ApproxBiLinear.Scale(badge, badge.Bounds(), spec.QRBadge, spec.QRBadge.Bounds(), xdraw.Src, nil)
			dc.DrawImage(badge, d.width-d.padding-size, int(bandTop)+pad)
		}
	}
}

// luminance returns the relative luminance of c in [0,1].
func luminance(c color.RGBA) float64 {
	return (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
}

var footerFont *truetype.Font

func init() {
	footerFont, _ = truetype.Parse(gomono.TTF)
}

// footerFace builds the footer font face at the given size.
func footerFace(size float64) font.Face {
	return truetype.NewFace(footerFont, &truetype.Options{Size: size})
}
