// Package clip buffers the per-cell frame sequences recorded during a
// countdown. A clip is a sliding window: its length while sampling never
// exceeds what the countdown duration allows, and sealing it appends the
// shutter still several times so the assembled video pauses on each shot.
package clip

import (
	"image"
	"math"
	"time"
)

// FreezeRepeat is how many times the shutter still is appended when a clip is
// sealed, producing the freeze effect between shots.
const FreezeRepeat = 5

// Clip is an ordered, bounded sequence of frames for one grid cell.
type Clip struct {
	frames []image.Image
	cap    int
	sealed bool
}

// New returns a clip sized for one countdown: the sampling window holds at
// most ceil(timerDuration/samplingInterval) frames, oldest dropped first.
func New(timerDuration, samplingInterval time.Duration) *Clip {
	n := 0
	if samplingInterval > 0 {
		n = int(math.Ceil(float64(timerDuration) / float64(samplingInterval)))
	}
	return &Clip{cap: n, frames: make([]image.Image, 0, n+FreezeRepeat)}
}

// Cap returns the sampling-window frame limit.
func (c *Clip) Cap() int { return c.cap }

// Len returns the current number of buffered frames.
func (c *Clip) Len() int { return len(c.frames) }

// Sealed reports whether the clip has been finalized.
func (c *Clip) Sealed() bool { return c.sealed }

// Append adds one sampled frame, dropping the oldest frame once the window is
// full. Appends to a sealed clip are ignored.
func (c *Clip) Append(frame image.Image) {
	if c.sealed || c.cap == 0 {
		return
	}
	if len(c.frames) >= c.cap {
		copy(c.frames, c.frames[1:])
		c.frames = c.frames[:len(c.frames)-1]
	}
	c.frames = append(c.frames, frame)
}

// Seal appends the shutter still FreezeRepeat times, past the sampling
// window, and marks the clip immutable.
func (c *Clip) Seal(still image.Image) {
	if c.sealed {
		return
	}
	for i := 0; i < FreezeRepeat; i++ {
		c.frames = append(c.frames, still)
	}
	c.sealed = true
}

// Frames returns a copy of the buffered sequence in capture order, so
// callers cannot mutate a sealed clip through the returned slice.
func (c *Clip) Frames() []image.Image {
	out := make([]image.Image, len(c.frames))
	copy(out, c.frames)
	return out
}

// Frame returns the i-th frame.
func (c *Clip) Frame(i int) image.Image { return c.frames[i] }
