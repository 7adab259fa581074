// Package slot is the single-frame handoff between the editing surface
// and the display surface. One named location, last writer wins, no
// history. Versions only need to be comparable for "did it change":
// the viewer polls and re-renders on a version transition instead of
// re-decoding unchanged bytes every tick.
package slot

import (
	"context"
	"time"
)

// Frame is one published hologram composite.
type Frame struct {
	PNG       []byte
	Version   string
	UpdatedAt time.Time
}

// Slot stores at most one Frame. Put overwrites unconditionally; Get
// reports ok=false while nothing has ever been published. When several
// producers race, whichever Put completes last wins, with no ordering
// tied to when the requests started.
type Slot interface {
	Put(ctx context.Context, png []byte) (Frame, error)
	Get(ctx context.Context) (Frame, bool, error)
}
