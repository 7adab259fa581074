package slot

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMemoryEmptyUntilFirstPut(t *testing.T) {
	s := NewMemory()

	_, ok, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected empty slot before first put")
	}
}

func TestMemoryLastWriterWins(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	first, err := s.Put(ctx, []byte("frame-1"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	second, err := s.Put(ctx, []byte("frame-2"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if first.Version == second.Version {
		t.Fatal("expected version to change on overwrite")
	}

	got, ok, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected a frame after puts")
	}
	if !bytes.Equal(got.PNG, []byte("frame-2")) {
		t.Fatalf("expected most recent frame, got %q", got.PNG)
	}
	if got.Version != second.Version {
		t.Fatalf("expected version %s, got %s", second.Version, got.Version)
	}
}

func TestMemoryVersionMonotonic(t *testing.T) {
	s := NewMemory()
	s.now = func() time.Time { return time.Unix(0, 0) }
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		frame, err := s.Put(ctx, []byte{byte(i + 1)})
		if err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
		if seen[frame.Version] {
			t.Fatalf("version %s repeated", frame.Version)
		}
		seen[frame.Version] = true
	}
}

func TestMemoryCopiesFrameBytes(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	src := []byte("frame")
	if _, err := s.Put(ctx, src); err != nil {
		t.Fatalf("put: %v", err)
	}
	src[0] = 'X'

	got, _, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got.PNG, []byte("frame")) {
		t.Fatal("expected slot to hold its own copy of the frame bytes")
	}
}

func TestMemoryRejectsEmptyFrame(t *testing.T) {
	s := NewMemory()
	if _, err := s.Put(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty frame bytes")
	}
}
