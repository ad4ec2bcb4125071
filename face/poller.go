package face

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Poller runs a Detector on a fixed tick and keeps the most recent estimate
// available as a snapshot. It replaces a free-running poll loop gated by a
// boolean: the lifecycle is explicit (Start/Stop or context cancellation) so
// it can be tied to a session phase.
type Poller struct {
	detector Detector
	interval time.Duration

	mu     sync.Mutex
	latest *Estimate
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller returns a Poller that queries detector every interval once
// started. A nil detector is tolerated: Latest simply stays nil.
func NewPoller(detector Detector, interval time.Duration) *Poller {
	return &Poller{detector: detector, interval: interval}
}

// Start launches the background poll loop. It is a no-op if the poller is
// already running or has no detector. The loop exits when ctx is cancelled or
// Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detector == nil || p.interval <= 0 || p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop cancels the poll loop and blocks until it has exited. The last
// snapshot is discarded so a stale face cannot leak into the next phase.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.latest = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Latest returns the most recent estimate, or nil if no face has been seen.
func (p *Poller) Latest() *Estimate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			est, err := p.detector.Detect()
			if err != nil {
				// Detector may be permanently unavailable; keep the last
				// snapshot and carry on.
				log.WithError(err).Debug("face detection tick failed")
				continue
			}
			p.mu.Lock()
			p.latest = est
			p.mu.Unlock()
		}
	}
}
