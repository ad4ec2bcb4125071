// Package capture turns a live frame source into cropped, filtered, mirrored,
// mask-annotated stills. One Capture call corresponds to one shutter press or
// one video-sampling tick.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/michaelmcallister/photobooth/face"
	"github.com/michaelmcallister/photobooth/filter"
	"github.com/michaelmcallister/photobooth/geometry"
	"github.com/michaelmcallister/photobooth/mask"
)

// ErrSourceNotReady is returned when the frame source has no valid frame yet
// (zero intrinsic dimensions). It is recoverable: callers skip the sample and
// retry on the next tick.
var ErrSourceNotReady = errors.New("capture: frame source not ready")

// FrameSource defines the contract for the camera collaborator. It is
// externally owned and read-only; no guarantees are made about first-frame
// availability, so Dimensions may report zero until the device warms up.
type FrameSource interface {
	// Dimensions returns the intrinsic pixel width and height of the source,
	// or zeros if no frame is available yet.
	Dimensions() (width, height int)
	// Frame returns the current raw frame.
	Frame() (image.Image, error)
}

// Format selects the still encoding.
type Format int

const (
	// PNG is lossless and ignores Quality.
	PNG Format = iota
	// JPEG uses Quality in [0,1].
	JPEG
)

// Config is the immutable effect configuration for one capture.
type Config struct {
	// Filter is a composable pixel-transform expression, see package filter.
	Filter string
	// Mask selects the baked-in overlay constellation.
	Mask mask.Kind
	// TargetWidth scales the cropped frame down (or up) to this width while
	// keeping the target ratio; zero keeps the crop's native size.
	TargetWidth int
	// TargetRatio is the output aspect ratio; zero means 4:3.
	TargetRatio float64
	// Format and Quality control encoding via Still.Encode.
	Format  Format
	Quality float64
}

func (c Config) ratio() float64 {
	if c.TargetRatio > 0 {
		return c.TargetRatio
	}
	return geometry.Ratio4x3
}

// Still is an owned, immutable raster produced by Capture or the layout
// engine.
type Still struct {
	Image  *image.RGBA
	Width  int
	Height int
}

// Encode serializes the still. JPEG quality is given in [0,1]; values outside
// the range are clamped.
func (s *Still) Encode(f Format, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case JPEG:
		q := int(quality * 100)
		if q < 1 {
			q = 1
		}
		if q > 100 {
			q = 100
		}
		if err := jpeg.Encode(&buf, s.Image, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("capture: jpeg encode: %w", err)
		}
	default:
		if err := png.Encode(&buf, s.Image); err != nil {
			return nil, fmt.Errorf("capture: png encode: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Capture produces one still from src: cover-crop to the target ratio, apply
// the filter expression, mirror horizontally (the preview the user saw is
// mirrored), then bake the configured mask using the face estimate remapped
// into the crop. est may be nil.
func Capture(src FrameSource, cfg Config, est *face.Estimate) (*Still, error) {
	srcW, srcH := src.Dimensions()
	if srcW <= 0 || srcH <= 0 {
		return nil, ErrSourceNotReady
	}

	frame, err := src.Frame()
	if err != nil {
		return nil, fmt.Errorf("capture: read frame: %w", err)
	}

	crop := geometry.CoverCrop(srcW, srcH, cfg.ratio())
	outW, outH := crop.W, crop.H
	if cfg.TargetWidth > 0 {
		outW = cfg.TargetWidth
		outH = int(float64(cfg.TargetWidth) / cfg.ratio())
	}

	chain, err := filter.Parse(cfg.Filter)
	if err != nil {
		return nil, err
	}

	// Crop and scale in one draw.
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	srcRect := image.Rect(crop.X, crop.Y, crop.X+crop.W, crop.Y+crop.H).
		Add(frame.Bounds().Min)
	xdraw.CatmullRom.Scale(out, out.Bounds(), frame, srcRect, xdraw.Src, nil)

	filtered := chain.Apply(out)
	mirrored := mirrorX(filtered)

	if cfg.Mask != mask.None {
		var remapped *face.Estimate
		if est != nil {
			e := geometry.MirrorX(geometry.RemapToCrop(*est, crop))
			remapped = &e
		}
		mask.Draw(mirrored, cfg.Mask, remapped)
	}

	return &Still{Image: mirrored, Width: outW, Height: outH}, nil
}

// mirrorX returns a horizontally flipped copy of img.
func mirrorX(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(b.Dx()-1-x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
