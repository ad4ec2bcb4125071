// Package filter parses the composable pixel-transform expressions used by
// the photo booth ("grayscale(1) contrast(1.1)") into an applicable image
// pipeline. Operations run left-to-right and use the CSS filter-function
// vocabulary, so an effect string can be shared verbatim with a live preview
// layer.
package filter

import (
	"fmt"
	"image"
	"image/draw"
	"strconv"
	"strings"

	"github.com/disintegration/gift"
)

// None is the identity expression.
const None = "none"

// Chain is a parsed, ready-to-apply filter expression.
type Chain struct {
	g    *gift.GIFT
	expr string
}

// Parse builds a Chain from an expression of whitespace-separated
// name(value) terms. An empty expression or "none" yields an identity chain.
// Unknown operation names or malformed terms are rejected.
func Parse(expr string) (*Chain, error) {
	c := &Chain{expr: expr}
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" || trimmed == None {
		return c, nil
	}
	var filters []gift.Filter
	for _, term := range strings.Fields(trimmed) {
		f, err := parseTerm(term)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	c.g = gift.New(filters...)
	return c, nil
}

// String returns the original expression.
func (c *Chain) String() string { return c.expr }

// Identity reports whether applying the chain is a no-op.
func (c *Chain) Identity() bool { return c == nil || c.g == nil }

// Apply runs the chain over src, returning a new image. An identity chain
// returns src unchanged.
func (c *Chain) Apply(src image.Image) image.Image {
	if c.Identity() {
		return src
	}
	dst := image.NewRGBA(c.g.Bounds(src.Bounds()))
	c.g.Draw(dst, src)
	return dst
}

// parseTerm maps one CSS-style filter function onto a gift filter. CSS
// amounts are fractions or multipliers; gift wants percentages, so the
// multiplier scales convert as (v-1)*100.
func parseTerm(term string) (gift.Filter, error) {
	open := strings.IndexByte(term, '(')
	if open <= 0 || !strings.HasSuffix(term, ")") {
		return nil, fmt.Errorf("filter: malformed term %q", term)
	}
	name := term[:open]
	arg := term[open+1 : len(term)-1]
	arg = strings.TrimSuffix(strings.TrimSpace(arg), "deg")
	v, err := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
	if err != nil {
		return nil, fmt.Errorf("filter: bad value in term %q: %w", term, err)
	}
	if strings.HasSuffix(arg, "%") {
		v /= 100
	}

	switch name {
	case "grayscale":
		if v <= 0 {
			return noopFilter{}, nil
		}
		return gift.Grayscale(), nil
	case "sepia":
		return gift.Sepia(clamp(float32(v*100), 0, 100)), nil
	case "contrast":
		return gift.Contrast(clamp(float32((v-1)*100), -100, 100)), nil
	case "brightness":
		return gift.Brightness(clamp(float32((v-1)*100), -100, 100)), nil
	case "saturate":
		return gift.Saturation(clamp(float32((v-1)*100), -100, 500)), nil
	case "hue-rotate":
		// Value arrives in degrees; wrap into gift's [-180, 180].
		deg := float32(v)
		for deg > 180 {
			deg -= 360
		}
		for deg < -180 {
			deg += 360
		}
		return gift.Hue(deg), nil
	default:
		return nil, fmt.Errorf("filter: unknown operation %q", name)
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// noopFilter satisfies gift.Filter without touching pixels; used when a term
// like grayscale(0) parses to an explicit no-op.
type noopFilter struct{}

func (noopFilter) Bounds(src image.Rectangle) image.Rectangle { return src }

func (noopFilter) Draw(dst draw.Image, src image.Image, options *gift.Options) {
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
}
