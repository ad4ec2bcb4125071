// Package assembler turns the per-cell clips recorded during a session into
// one composite video whose playback duration matches the configured capture
// window, regardless of how many raw frames each clip actually collected.
package assembler

import (
	"bytes"
	"errors"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"os"

	"github.com/icza/mjpeg"
)

// ErrEncoderUnsupported reports that no candidate in the encoder preference
// list claimed support. It is never fatal: negotiation falls back to the last
// candidate unconditionally.
var ErrEncoderUnsupported = errors.New("assembler: no supported encoder")

// Encoder defines the contract for a video container writer. Begin is called
// once with the normalized output dimensions and frame rate, WriteFrame once
// per composite in order, and Close finalizes the container.
type Encoder interface {
	// Supported reports whether this encoder can run in the current build.
	Supported() bool
	// Ext is the filename extension for the container, without the dot.
	Ext() string
	Begin(path string, width, height int, fps float64) error
	WriteFrame(m image.Image) error
	Close() error
}

// DefaultEncoders is the ordered container preference list.
func DefaultEncoders() []Encoder {
	return []Encoder{NewMJPEG(), NewGIF()}
}

// negotiate picks the first supported encoder, or the last candidate
// unconditionally when none claim support.
func negotiate(encoders []Encoder) (Encoder, error) {
	for _, e := range encoders {
		if e.Supported() {
			return e, nil
		}
	}
	if len(encoders) == 0 {
		return nil, ErrEncoderUnsupported
	}
	return encoders[len(encoders)-1], ErrEncoderUnsupported
}

// MJPEGEncoder writes an AVI container with one JPEG-compressed frame per
// composite.
type MJPEGEncoder struct {
	aw mjpeg.AviWriter
}

// NewMJPEG returns the primary container encoder.
func NewMJPEG() *MJPEGEncoder { return &MJPEGEncoder{} }

func (e *MJPEGEncoder) Supported() bool { return true }

func (e *MJPEGEncoder) Ext() string { return "avi" }

func (e *MJPEGEncoder) Begin(path string, width, height int, fps float64) error {
	f := int32(fps + 0.5)
	if f < 1 {
		f = 1
	}
	aw, err := mjpeg.New(path, int32(width), int32(height), f)
	if err != nil {
		return err
	}
	e.aw = aw
	return nil
}

func (e *MJPEGEncoder) WriteFrame(m image.Image) error {
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, m, nil); err != nil {
		return err
	}
	return e.aw.AddFrame(buf.Bytes())
}

func (e *MJPEGEncoder) Close() error {
	if e.aw == nil {
		return nil
	}
	return e.aw.Close()
}

// GIFEncoder is the last-resort fallback container: universally decodable,
// 256 colors.
type GIFEncoder struct {
	path  string
	delay int // per frame, hundredths of a second
	out   *gif.GIF
}

// NewGIF returns the fallback encoder.
func NewGIF() *GIFEncoder { return &GIFEncoder{} }

func (e *GIFEncoder) Supported() bool { return true }

func (e *GIFEncoder) Ext() string { return "gif" }

func (e *GIFEncoder) Begin(path string, width, height int, fps float64) error {
	e.path = path
	e.delay = int(100/fps + 0.5)
	e.out = &gif.GIF{}
	return nil
}

func (e *GIFEncoder) WriteFrame(m image.Image) error {
	bounds := m.Bounds()
	paletted := image.NewPaletted(bounds, palette.Plan9)
	draw.Draw(paletted, paletted.Rect, m, bounds.Min, draw.Over)
	e.out.Image = append(e.out.Image, paletted)
	e.out.Delay = append(e.out.Delay, e.delay)
	return nil
}

func (e *GIFEncoder) Close() error {
	if e.out == nil {
		return nil
	}
	f, err := os.Create(e.path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gif.EncodeAll(f, e.out); err != nil {
		return err
	}
	return f.Sync()
}
