package viewer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dunamismax/holoflow/internal/slot"
)

// Poller tails the display slot on a fixed interval and caches the most
// recent frame. The version string is the change signal: an unchanged
// version skips the copy so idle polling stays cheap.
type Poller struct {
	logger   *log.Logger
	source   slot.Slot
	interval time.Duration

	mu      sync.RWMutex
	frame   slot.Frame
	hasGood bool
}

func NewPoller(logger *log.Logger, source slot.Slot, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		logger:   logger,
		source:   source,
		interval: interval,
	}
}

// Run polls until ctx is cancelled. Fetch errors are logged and the last
// good frame stays served; the display should never go dark because the
// slot backend blipped.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	frame, ok, err := p.source.Get(ctx)
	if err != nil {
		p.logger.Printf("fetch frame failed: %v", err)
		return
	}
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasGood && frame.Version == p.frame.Version {
		return
	}
	p.frame = frame
	p.hasGood = true
}

// Current returns the cached frame. ok is false until the first
// successful fetch of a published frame.
func (p *Poller) Current() (slot.Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame, p.hasGood
}
