// Package session owns the mutable state of one photo-booth run: the
// countdown and sampling timers, the per-cell clip buffers, the latest face
// estimate and the shutter. It exists so that state lives in one controller
// passed explicitly to capture and assembly calls instead of ambient cells.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"

	"github.com/michaelmcallister/photobooth/assembler"
	"github.com/michaelmcallister/photobooth/capture"
	"github.com/michaelmcallister/photobooth/clip"
	"github.com/michaelmcallister/photobooth/face"
	"github.com/michaelmcallister/photobooth/layout"
)

// ErrStopped is returned when the session is cancelled mid-run; the
// in-progress clip is discarded.
var ErrStopped = errors.New("session: stopped")

// Config parameterizes one session.
type Config struct {
	// Layout styles the final strip and every video frame.
	Layout layout.Spec
	// Effect is applied to every capture (shutter and sampling alike).
	Effect capture.Config
	// Countdown is the delay before each shutter press.
	Countdown time.Duration
	// SamplingInterval is the video sampling tick period; zero disables
	// video recording.
	SamplingInterval time.Duration
	// SampleWidth is the pixel width of sampled and sealed video frames.
	// Zero means 480.
	SampleWidth int
	// VideoPath, when non-empty, is the extension-less output path for the
	// assembled video.
	VideoPath string
}

func (c Config) sampleWidth() int {
	if c.SampleWidth > 0 {
		return c.SampleWidth
	}
	return 480
}

func (c Config) videoEnabled() bool {
	return c.SamplingInterval > 0 && c.VideoPath != ""
}

// Output is everything one completed session produced.
type Output struct {
	// Stills are the shutter captures, one per cell, in order.
	Stills []*capture.Still
	// Photo is the composed strip.
	Photo *layout.Composite
	// Video is nil unless video recording was enabled.
	Video *assembler.Result
}

// Session drives capture for every cell of the configured layout, then the
// composition and, when enabled, the video assembly.
type Session struct {
	cfg    Config
	src    capture.FrameSource
	poller *face.Poller

	mu         sync.Mutex
	clips      []*clip.Clip
	assembling sync.Mutex
}

// New returns a Session reading frames from src and face estimates from
// poller. poller may be nil when no detector is available; masks then fall
// back to their default anchor.
func New(cfg Config, src capture.FrameSource, poller *face.Poller) *Session {
	return &Session{cfg: cfg, src: src, poller: poller}
}

// Run executes the whole session: countdown and shutter per cell, then the
// strip composition and video assembly. Cancelling ctx stops the sampling
// timer and discards the in-progress clip.
func (s *Session) Run(ctx context.Context) (*Output, error) {
	cells := s.cfg.Layout.Kind.Cells()
	out := &Output{}

	// The detector runs only while the session is live.
	if s.poller != nil {
		s.poller.Start(ctx)
		defer s.poller.Stop()
	}

	for i := 0; i < cells; i++ {
		still, err := s.shoot(ctx, i)
		if err != nil {
			return nil, err
		}
		out.Stills = append(out.Stills, still)
	}

	rasters := make([]image.Image, len(out.Stills))
	for i, st := range out.Stills {
		rasters[i] = st.Image
	}
	photo, err := layout.Compose(rasters, s.cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("session: compose strip: %w", err)
	}
	out.Photo = photo

	if s.cfg.videoEnabled() {
		video, err := s.assemble(ctx)
		if err != nil {
			// A failed assembly leaves the still strip usable; report and
			// move on, matching the non-fatal failure model.
			log.WithError(err).Error("video assembly failed")
		} else {
			out.Video = video
		}
	}
	return out, nil
}

// shoot runs one countdown for cell index, sampling video frames on each
// tick, and ends with the shutter capture that seals the cell's clip.
func (s *Session) shoot(ctx context.Context, index int) (*capture.Still, error) {
	var (
		cl      *clip.Clip
		ticker  *time.Ticker
		tick    <-chan time.Time
		wg      sync.WaitGroup
		busy    atomic.Bool
		sampled atomic.Int32
	)
	if s.cfg.SamplingInterval > 0 {
		cl = clip.New(s.cfg.Countdown, s.cfg.SamplingInterval)
		ticker = time.NewTicker(s.cfg.SamplingInterval)
		tick = ticker.C
		defer ticker.Stop()
	}

	countdown := time.NewTimer(s.cfg.Countdown)
	defer countdown.Stop()

	for done := false; !done; {
		select {
		case <-ctx.Done():
			// The in-progress clip is discarded with the session.
			return nil, ErrStopped
		case <-tick:
			// Fire-and-forget: a slow capture must not hold up the next
			// tick, but two captures never run over the same raster.
			if !busy.CompareAndSwap(false, true) {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer busy.Store(false)
				s.sample(cl)
				sampled.Add(1)
			}()
		case <-countdown.C:
			done = true
		}
	}
	if ticker != nil {
		ticker.Stop()
	}
	wg.Wait()

	still, err := capture.Capture(s.src, s.cfg.Effect, s.latestEstimate())
	if err != nil {
		return nil, fmt.Errorf("session: shutter for cell %d: %w", index, err)
	}

	if cl != nil {
		// Seal with a sampling-resolution copy of the still so the frozen
		// tail matches the clip's frame size.
		cl.Seal(scaleToWidth(still.Image, s.cfg.sampleWidth()))
		s.mu.Lock()
		s.clips = append(s.clips, cl)
		s.mu.Unlock()
		log.WithFields(log.Fields{
			"cell":    index,
			"sampled": sampled.Load(),
			"frames":  cl.Len(),
		}).Debug("clip sealed")
	}
	return still, nil
}

// sample captures one low-resolution frame into the clip, skipping the tick
// when the source isn't ready yet.
func (s *Session) sample(cl *clip.Clip) {
	cfg := s.cfg.Effect
	cfg.TargetWidth = s.cfg.sampleWidth()
	still, err := capture.Capture(s.src, cfg, s.latestEstimate())
	if err != nil {
		if !errors.Is(err, capture.ErrSourceNotReady) {
			log.WithError(err).Warn("sampling capture failed")
		}
		return
	}
	s.mu.Lock()
	cl.Append(still.Image)
	s.mu.Unlock()
}

func (s *Session) assemble(ctx context.Context) (*assembler.Result, error) {
	// One assembly at a time per session: the assembler owns its draw path
	// exclusively while it runs.
	s.assembling.Lock()
	defer s.assembling.Unlock()

	s.mu.Lock()
	clips := make([]*clip.Clip, len(s.clips))
	copy(clips, s.clips)
	s.mu.Unlock()

	a := &assembler.Assembler{
		Layout:         s.cfg.Layout,
		TargetDuration: s.cfg.Countdown,
	}
	return a.Assemble(ctx, clips, s.cfg.VideoPath)
}

func (s *Session) latestEstimate() *face.Estimate {
	if s.poller == nil {
		return nil
	}
	return s.poller.Latest()
}

// scaleToWidth returns img resized to the given width, keeping its ratio.
func scaleToWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if b.Dx() == width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}
