// Package mask renders the decorative overlay constellations (hearts, stars)
// that track the subject's face. The same anchor and scale math feeds both
// consumers: Draw bakes the shapes into a captured raster, and OverlayStyle
// positions a live display layer. Keeping Place as the single source of the
// formulas is deliberate; the two pipelines previously duplicated them.
package mask

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/michaelmcallister/photobooth/face"
	"github.com/michaelmcallister/photobooth/geometry"
)

// Kind selects the overlay constellation.
type Kind int

const (
	// None disables the overlay.
	None Kind = iota
	// Hearts draws five tilted hearts in an arc above the forehead.
	Hearts
	// Stars draws five tilted stars in a slightly wider arc.
	Stars
)

// ParseKind converts a flag/config string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "none":
		return None, nil
	case "hearts":
		return Hearts, nil
	case "stars":
		return Stars, nil
	}
	return None, fmt.Errorf("mask: unknown kind %q", s)
}

func (k Kind) String() string {
	switch k {
	case Hearts:
		return "hearts"
	case Stars:
		return "stars"
	}
	return "none"
}

const (
	// referenceFaceWidth is the normalized face width that maps to scale 1.0.
	referenceFaceWidth = 0.35
	// referenceCanvasWidth is the pixel width at which shape sizes are
	// defined; drawing on other widths scales proportionally.
	referenceCanvasWidth = 640.0

	// Default anchor when no face is available: centered, 30% from the top.
	defaultAnchorX = 0.5
	defaultAnchorY = 0.3

	// Forehead offsets as a fraction of face height. Stars sweep a wider arc
	// and need the extra clearance.
	heartsForeheadOffset = 0.55
	starsForeheadOffset  = 0.60

	// Arc radii as fractions of canvas width/height at scale 1.0.
	arcRadiusX = 0.20
	arcRadiusY = 0.10
)

// Placement is the normalized anchor and scale of a constellation.
type Placement struct {
	X, Y  float64
	Scale float64
}

// Place computes where a constellation sits for a given (possibly nil) face
// estimate, in the estimate's own normalized coordinate space. Without a face
// the overlay degrades to a fixed, centered placement rather than vanishing.
func Place(kind Kind, e *face.Estimate) Placement {
	if e == nil || e.W <= 0 {
		return Placement{X: defaultAnchorX, Y: defaultAnchorY, Scale: 1}
	}
	offset := heartsForeheadOffset
	if kind == Stars {
		offset = starsForeheadOffset
	}
	return Placement{
		X:     e.CenterX(),
		Y:     e.CenterY() - offset*e.H,
		Scale: e.W / referenceFaceWidth,
	}
}

// Style positions the live display overlay: a CSS-like fractional position
// plus a scale. The consumer applies its own mirroring.
type Style struct {
	X, Y  float64
	Scale float64
}

// OverlayStyle computes the live overlay placement for a display element that
// cover-fits the video at containerRatio. The estimate is remapped into
// display space first, so the live layer and the baked raster agree even when
// their crops differ.
func OverlayStyle(kind Kind, e *face.Estimate, containerRatio float64) Style {
	if e == nil {
		return Style{X: defaultAnchorX, Y: defaultAnchorY, Scale: 1}
	}
	remapped := geometry.RemapForCover(*e, containerRatio)
	p := Place(kind, &remapped)
	return Style{X: p.X, Y: p.Y, Scale: p.Scale}
}

// item is one shape in a constellation.
type item struct {
	angleDeg float64 // position along the arc, 0 = apex
	tiltDeg  float64 // the shape's own rotation
	color    [3]float64
	size     float64 // half-size in pixels at the reference canvas width
}

var heartItems = []item{
	{-40, -24, rgb(0xf7, 0x25, 0x85), 13},
	{-20, -12, rgb(0xff, 0x5e, 0x8a), 11},
	{0, 0, rgb(0xe6, 0x39, 0x65), 15},
	{20, 12, rgb(0xff, 0x8f, 0xab), 11},
	{40, 24, rgb(0xff, 0x70, 0x96), 13},
}

var starItems = []item{
	{-45, -30, rgb(0xff, 0xd7, 0x00), 12},
	{-22, -15, rgb(0xff, 0xe0, 0x66), 10},
	{0, 0, rgb(0xff, 0xc3, 0x00), 14},
	{22, 15, rgb(0xff, 0xdd, 0x55), 10},
	{45, 30, rgb(0xf9, 0xa8, 0x26), 12},
}

func rgb(r, g, b uint8) [3]float64 {
	return [3]float64{float64(r) / 255, float64(g) / 255, float64(b) / 255}
}

// Draw bakes the constellation into dst. The estimate must already be in
// dst's coordinate space (cropped and mirrored as needed); pass nil to use
// the default anchor.
func Draw(dst *image.RGBA, kind Kind, e *face.Estimate) {
	if kind == None {
		return
	}
	items := heartItems
	if kind == Stars {
		items = starItems
	}
	b := dst.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if w <= 0 || h <= 0 {
		return
	}

	p := Place(kind, e)
	cx, cy := p.X*w, p.Y*h
	rx := arcRadiusX * w * p.Scale
	ry := arcRadiusY * h * p.Scale
	// Shape sizes are defined against a 640px-wide canvas so the decoration
	// is resolution independent.
	unit := w / referenceCanvasWidth * p.Scale

	dc := gg.NewContextForRGBA(dst)
	for _, it := range items {
		theta := gg.Radians(it.angleDeg)
		x := cx + math.Sin(theta)*rx
		y := cy - math.Cos(theta)*ry
		dc.Push()
		dc.RotateAbout(gg.Radians(it.tiltDeg), x, y)
		dc.SetRGB(it.color[0], it.color[1], it.color[2])
		switch kind {
		case Hearts:
			drawHeart(dc, x, y, it.size*unit)
		case Stars:
			drawStar(dc, x, y, it.size*unit)
		}
		dc.Fill()
		dc.Pop()
	}
}

// drawHeart traces a heart of half-width s centered near (x, y).
func drawHeart(dc *gg.Context, x, y, s float64) {
	dc.MoveTo(x, y+0.6*s)
	dc.CubicTo(x-1.1*s, y-0.2*s, x-0.6*s, y-1.0*s, x, y-0.35*s)
	dc.CubicTo(x+0.6*s, y-1.0*s, x+1.1*s, y-0.2*s, x, y+0.6*s)
	dc.ClosePath()
}

// drawStar traces a five-pointed star of outer radius s centered at (x, y).
func drawStar(dc *gg.Context, x, y, s float64) {
	const points = 5
	inner := 0.45 * s
	for i := 0; i < points*2; i++ {
		r := s
		if i%2 == 1 {
			r = inner
		}
		a := -math.Pi/2 + float64(i)*math.Pi/points
		px := x + r*math.Cos(a)
		py := y + r*math.Sin(a)
		if i == 0 {
			dc.MoveTo(px, py)
		} else {
			dc.LineTo(px, py)
		}
	}
	dc.ClosePath()
}
