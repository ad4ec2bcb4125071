package assembler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/michaelmcallister/photobooth/clip"
	"github.com/michaelmcallister/photobooth/layout"
)

var (
	// ErrEmptyInput is returned when no clip has any frames; the assembly is
	// a no-op and no file is written.
	ErrEmptyInput = errors.New("assembler: no frames to assemble")
	// ErrAssemblyFailed wraps a mid-sequence failure; partial output is
	// discarded rather than offered as a truncated file.
	ErrAssemblyFailed = errors.New("assembler: assembly failed")
)

// flushHold is the pause after the final frame that lets the encoder drain
// pending data before the container is finalized.
const flushHold = 120 * time.Millisecond

// Result describes a finished assembly. Ext reports the negotiated container
// so the caller can pick a matching filename extension.
type Result struct {
	Path   string
	Ext    string
	Frames int
	Width  int
	Height int
}

// Assembler builds one composite video from parallel clips. It owns its draw
// path exclusively for the duration of an Assemble call; clients must not
// run two assemblies for the same session concurrently.
type Assembler struct {
	// Encoders is the ordered container preference list; nil means
	// DefaultEncoders.
	Encoders []Encoder
	// Layout styles every composite frame.
	Layout layout.Spec
	// TargetDuration is the wall-clock playback length the output must have.
	TargetDuration time.Duration

	// Pace makes the frame walk sleep until each frame's deadline, matching
	// the original capture window in wall-clock time. File encoders don't
	// need it; a streaming sink does.
	Pace bool

	// Injectable clock, for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Assemble composes the i-th frame of every clip for i in [0, minFrames),
// streams the composites to the negotiated encoder and finalizes the
// container at path (the negotiated extension is appended). The composite
// rendering is strictly sequential; ctx cancels it between frames and during
// deadline waits.
func (a *Assembler) Assemble(ctx context.Context, clips []*clip.Clip, path string) (*Result, error) {
	minFrames := 0
	for i, c := range clips {
		if i == 0 || c.Len() < minFrames {
			minFrames = c.Len()
		}
	}
	if len(clips) == 0 || minFrames <= 0 {
		return nil, ErrEmptyInput
	}

	enc, err := negotiate(a.encoders())
	if err != nil {
		// Negotiation failure is not fatal; the last candidate is used
		// unconditionally.
		if enc == nil {
			return nil, err
		}
		log.WithField("container", enc.Ext()).Warn("no encoder claimed support, using last candidate")
	}

	frames, err := a.renderFrames(ctx, clips, minFrames)
	if err != nil {
		return nil, err
	}

	// Output dimensions come from the first composite and are held fixed for
	// the whole sequence, rounded up to even for encoder compatibility.
	w, h := evenDims(frames[0].Bounds().Dx(), frames[0].Bounds().Dy())

	n := len(frames)
	interval := a.TargetDuration / time.Duration(n)
	fps := float64(n) / a.TargetDuration.Seconds()

	out := fmt.Sprintf("%s.%s", path, enc.Ext())
	if err := enc.Begin(out, w, h, fps); err != nil {
		return nil, fmt.Errorf("%w: begin %s: %v", ErrAssemblyFailed, enc.Ext(), err)
	}

	start := a.clock()()
	for i, frame := range frames {
		if err := enc.WriteFrame(normalize(frame, w, h)); err != nil {
			enc.Close()
			return nil, fmt.Errorf("%w: frame %d: %v", ErrAssemblyFailed, i, err)
		}
		if a.Pace {
			// Deadline wait, not a fixed per-frame sleep: the schedule
			// absorbs render jitter so total wall time stays on target.
			deadline := start.Add(time.Duration(i+1) * interval)
			if err := a.sleeper()(ctx, deadline.Sub(a.clock()())); err != nil {
				enc.Close()
				return nil, fmt.Errorf("%w: %v", ErrAssemblyFailed, err)
			}
		}
	}

	if a.Pace {
		if err := a.sleeper()(ctx, flushHold); err != nil {
			enc.Close()
			return nil, fmt.Errorf("%w: %v", ErrAssemblyFailed, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: close: %v", ErrAssemblyFailed, err)
	}

	log.WithFields(log.Fields{
		"path":   out,
		"frames": n,
		"fps":    fps,
	}).Info("assembled composite video")

	return &Result{Path: out, Ext: enc.Ext(), Frames: n, Width: w, Height: h}, nil
}

// renderFrames runs each frame index through the layout engine, one at a
// time. Any failed composite aborts the whole assembly.
func (a *Assembler) renderFrames(ctx context.Context, clips []*clip.Clip, minFrames int) ([]image.Image, error) {
	frames := make([]image.Image, 0, minFrames)
	cells := make([]image.Image, len(clips))
	for i := 0; i < minFrames; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrAssemblyFailed, ctx.Err())
		default:
		}
		for j, c := range clips {
			cells[j] = c.Frame(i)
		}
		composite, err := layout.Compose(cells, a.Layout)
		if err != nil {
			return nil, fmt.Errorf("%w: composite %d: %v", ErrAssemblyFailed, i, err)
		}
		frames = append(frames, composite.Image)
	}
	return frames, nil
}

func (a *Assembler) encoders() []Encoder {
	if a.Encoders != nil {
		return a.Encoders
	}
	return DefaultEncoders()
}

func (a *Assembler) clock() func() time.Time {
	if a.now != nil {
		return a.now
	}
	return time.Now
}

func (a *Assembler) sleeper() func(context.Context, time.Duration) error {
	if a.sleep != nil {
		return a.sleep
	}
	return sleepCtx
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// evenDims bumps odd dimensions up by one; most codecs reject odd sizes.
func evenDims(w, h int) (int, int) {
	if w%2 == 1 {
		w++
	}
	if h%2 == 1 {
		h++
	}
	return w, h
}

// normalize pads frame out to w x h if the even-dimension bump grew the
// canvas. The common case is a no-op.
func normalize(frame image.Image, w, h int) image.Image {
	b := frame.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return frame
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, frame.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
