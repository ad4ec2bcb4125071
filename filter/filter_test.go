package filter

import (
	"image"
	"image/color"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		wantErr  bool
		identity bool
	}{
		{"empty", "", false, true},
		{"none", "none", false, true},
		{"whitespace", "   ", false, true},
		{"single op", "grayscale(1)", false, false},
		{"composed", "grayscale(1) contrast(1.1) brightness(1.1)", false, false},
		{"sepia percent", "sepia(80%)", false, false},
		{"hue rotate degrees", "hue-rotate(90deg)", false, false},
		{"saturate", "saturate(1.4)", false, false},
		{"unknown op", "posterize(4)", true, false},
		{"missing paren", "grayscale 1", true, false},
		{"bad value", "contrast(abc)", true, false},
		{"empty parens", "sepia()", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if c.Identity() != tt.identity {
				t.Errorf("Parse(%q).Identity() = %v, want %v", tt.expr, c.Identity(), tt.identity)
			}
		})
	}
}

func solid(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestApplyIdentityReturnsInput(t *testing.T) {
	src := solid(color.RGBA{R: 200, G: 40, B: 40, A: 255}, 4, 4)
	c, err := Parse("none")
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Apply(src); got != image.Image(src) {
		t.Error("identity chain should return the input image unchanged")
	}
}

func TestApplyGrayscale(t *testing.T) {
	src := solid(color.RGBA{R: 200, G: 40, B: 40, A: 255}, 4, 4)
	c, err := Parse("grayscale(1)")
	if err != nil {
		t.Fatal(err)
	}
	out := c.Apply(src)
	r, g, b, _ := out.At(1, 1).RGBA()
	if r != g || g != b {
		t.Errorf("grayscale output not gray: r=%d g=%d b=%d", r, g, b)
	}
}

func TestApplyBrightnessLightens(t *testing.T) {
	src := solid(color.RGBA{R: 100, G: 100, B: 100, A: 255}, 4, 4)
	c, err := Parse("brightness(1.5)")
	if err != nil {
		t.Fatal(err)
	}
	out := c.Apply(src)
	r0, _, _, _ := src.At(1, 1).RGBA()
	r1, _, _, _ := out.At(1, 1).RGBA()
	if r1 <= r0 {
		t.Errorf("brightness(1.5) did not lighten: before=%d after=%d", r0, r1)
	}
}

func TestApplyPreservesBounds(t *testing.T) {
	src := solid(color.RGBA{R: 10, G: 200, B: 10, A: 255}, 8, 6)
	c, err := Parse("sepia(0.8) contrast(1.2)")
	if err != nil {
		t.Fatal(err)
	}
	out := c.Apply(src)
	if out.Bounds() != src.Bounds() {
		t.Errorf("bounds changed: %v -> %v", src.Bounds(), out.Bounds())
	}
}
