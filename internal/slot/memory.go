package slot

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Slot for single-binary deployments and
// tests. The version is a monotonically increasing counter.
type Memory struct {
	mu    sync.RWMutex
	frame Frame
	seq   uint64
	has   bool
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (s *Memory) Put(_ context.Context, png []byte) (Frame, error) {
	if len(png) == 0 {
		return Frame{}, errors.New("frame bytes are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored := make([]byte, len(png))
	copy(stored, png)
	s.frame = Frame{
		PNG:       stored,
		Version:   strconv.FormatUint(s.seq, 10),
		UpdatedAt: s.now().UTC(),
	}
	s.has = true
	return s.frame, nil
}

func (s *Memory) Get(_ context.Context) (Frame, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.has {
		return Frame{}, false, nil
	}
	return s.frame, true, nil
}
