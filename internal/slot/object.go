package slot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/holoflow/internal/storage"
)

// DefaultObjectKey is the well-known object the display surface polls.
const DefaultObjectKey = "display/hologram.png"

// ObjectSlot stores the frame as a single object in the shared bucket
// so the editing and display surfaces can run as separate processes.
// The version is derived from the object's ETag and modification time,
// which is sufficient for change detection; overwrites are whatever
// the object store decides, i.e. last write wins.
type ObjectSlot struct {
	storage   *storage.Client
	objectKey string
}

func NewObjectSlot(client *storage.Client, objectKey string) (*ObjectSlot, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.TrimSpace(objectKey) == "" {
		objectKey = DefaultObjectKey
	}
	return &ObjectSlot{storage: client, objectKey: objectKey}, nil
}

func (s *ObjectSlot) Put(ctx context.Context, png []byte) (Frame, error) {
	if len(png) == 0 {
		return Frame{}, errors.New("frame bytes are required")
	}

	if err := s.storage.WriteObject(ctx, s.objectKey, png, "image/png"); err != nil {
		return Frame{}, fmt.Errorf("publish frame: %w", err)
	}

	info, ok, err := s.storage.StatObject(ctx, s.objectKey)
	if err != nil {
		return Frame{}, fmt.Errorf("stat published frame: %w", err)
	}
	if !ok {
		// Raced with nothing we can do about: another writer may have
		// already replaced the object. Report what we wrote.
		return Frame{PNG: png}, nil
	}

	return Frame{
		PNG:       png,
		Version:   objectVersion(info.ETag, info.LastModified.UnixNano()),
		UpdatedAt: info.LastModified.UTC(),
	}, nil
}

func (s *ObjectSlot) Get(ctx context.Context) (Frame, bool, error) {
	info, ok, err := s.storage.StatObject(ctx, s.objectKey)
	if err != nil {
		return Frame{}, false, err
	}
	if !ok {
		return Frame{}, false, nil
	}

	data, err := s.storage.ReadObject(ctx, s.objectKey)
	if err != nil {
		return Frame{}, false, fmt.Errorf("read frame: %w", err)
	}

	return Frame{
		PNG:       data,
		Version:   objectVersion(info.ETag, info.LastModified.UnixNano()),
		UpdatedAt: info.LastModified.UTC(),
	}, true, nil
}

func objectVersion(etag string, modifiedNanos int64) string {
	return fmt.Sprintf("%s-%d", etag, modifiedNanos)
}
