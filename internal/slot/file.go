package slot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSlot keeps the frame in a single file on local disk, for
// single-host deployments where both surfaces share a filesystem.
// The version is derived from the file's modification time and size.
type FileSlot struct {
	path string
}

func NewFileSlot(path string) (*FileSlot, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("slot file path is required")
	}
	return &FileSlot{path: path}, nil
}

func (s *FileSlot) Put(_ context.Context, png []byte) (Frame, error) {
	if len(png) == 0 {
		return Frame{}, errors.New("frame bytes are required")
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Frame{}, fmt.Errorf("create slot directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, png, 0o644); err != nil {
		return Frame{}, fmt.Errorf("publish frame: %w", err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return Frame{}, fmt.Errorf("stat published frame: %w", err)
	}

	return Frame{
		PNG:       png,
		Version:   fileVersion(info),
		UpdatedAt: info.ModTime().UTC(),
	}, nil
}

func (s *FileSlot) Get(_ context.Context) (Frame, bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Frame{}, false, nil
		}
		return Frame{}, false, fmt.Errorf("stat frame: %w", err)
	}
	if info.Size() == 0 {
		return Frame{}, false, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Frame{}, false, fmt.Errorf("read frame: %w", err)
	}

	return Frame{
		PNG:       data,
		Version:   fileVersion(info),
		UpdatedAt: info.ModTime().UTC(),
	}, true, nil
}

func fileVersion(info os.FileInfo) string {
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())
}
