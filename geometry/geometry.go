// Package geometry holds the pure coordinate math shared by the capture,
// mask and layout stages: cover-fit cropping and the remaps between sensor
// space, cropped space and displayed space. Keeping the formulas in one place
// is what stops the baked-raster and live-overlay pipelines drifting apart.
package geometry

import (
	"github.com/michaelmcallister/photobooth/face"
)

// Ratio4x3 is the aspect ratio every captured still and composite cell is
// cropped to.
const Ratio4x3 = 4.0 / 3.0

// Crop is a crop rectangle in source pixel coordinates.
type Crop struct {
	X, Y, W, H int
}

// Ratio returns the crop's width:height ratio.
func (c Crop) Ratio() float64 {
	if c.H == 0 {
		return 0
	}
	return float64(c.W) / float64(c.H)
}

// CoverCrop computes the centered crop rectangle that achieves targetRatio
// while keeping as much of the source as possible, the same policy as CSS
// "object-fit: cover". If the source is wider than the target ratio the
// height is preserved and width trimmed symmetrically, otherwise the width is
// preserved and height trimmed. All values are floored to whole pixels to
// avoid fractional-pixel artifacts.
func CoverCrop(srcW, srcH int, targetRatio float64) Crop {
	if srcW <= 0 || srcH <= 0 || targetRatio <= 0 {
		return Crop{}
	}
	w, h := float64(srcW), float64(srcH)
	cropW, cropH := w, h
	if w/h > targetRatio {
		cropW = h * targetRatio
	} else {
		cropH = w / targetRatio
	}
	return Crop{
		X: int((w - cropW) / 2),
		Y: int((h - cropH) / 2),
		W: int(cropW),
		H: int(cropH),
	}
}

// RemapToCrop converts an estimate normalized against the full sensor frame
// into one normalized against the crop rectangle. Used whenever a face box
// computed on the raw frame must be drawn onto a cropped still.
func RemapToCrop(e face.Estimate, c Crop) face.Estimate {
	if c.W == 0 || c.H == 0 {
		return e
	}
	srcW, srcH := float64(e.SourceWidth), float64(e.SourceHeight)
	cw, ch := float64(c.W), float64(c.H)
	return face.Estimate{
		X:            (e.X*srcW - float64(c.X)) / cw,
		Y:            (e.Y*srcH - float64(c.Y)) / ch,
		W:            e.W * srcW / cw,
		H:            e.H * srcH / ch,
		SourceWidth:  c.W,
		SourceHeight: c.H,
	}
}

// RemapForCover converts an estimate normalized against the sensor frame into
// coordinates for a display element that cover-fits the same frame. Only the
// dimension the display crops is remapped: when the video is wider than the
// container only X changes, when it is taller only Y changes, and when the
// ratios match the estimate passes through unchanged. This is the live
// overlay's remap and is independent of the captured-still crop.
func RemapForCover(e face.Estimate, containerRatio float64) face.Estimate {
	if e.SourceHeight <= 0 || containerRatio <= 0 {
		return e
	}
	videoRatio := float64(e.SourceWidth) / float64(e.SourceHeight)
	out := e
	switch {
	case videoRatio > containerRatio:
		// Only a centered fraction of the width is visible.
		visible := containerRatio / videoRatio
		out.X = (e.X - (1-visible)/2) / visible
		out.W = e.W / visible
	case videoRatio < containerRatio:
		visible := videoRatio / containerRatio
		out.Y = (e.Y - (1-visible)/2) / visible
		out.H = e.H / visible
	}
	return out
}

// MirrorX flips an estimate horizontally in normalized space. Captured stills
// are mirrored to match the live preview, so any estimate drawn onto one must
// be mirrored the same way.
func MirrorX(e face.Estimate) face.Estimate {
	out := e
	out.X = 1 - e.X - e.W
	return out
}
