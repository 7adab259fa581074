package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/holoflow/internal/domain"
	"github.com/dunamismax/holoflow/internal/storage"
)

// LocalFileFetcher reads the photo and mask from local paths, for
// single-host runs and tests. Relative paths are anchored at BaseDir
// when it is set; absolute paths are used as given.
type LocalFileFetcher struct {
	BaseDir string
}

func (f LocalFileFetcher) FetchPhoto(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, domain.SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path := f.resolve(req.PhotoObjectKey)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo %s: %w", path, err)
	}
	return data, nil
}

func (f LocalFileFetcher) FetchMask(_ context.Context, req Request) ([]byte, bool, error) {
	if strings.TrimSpace(req.MaskObjectKey) == "" {
		return nil, false, nil
	}

	path := f.resolve(req.MaskObjectKey)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read mask %s: %w", path, err)
	}
	return data, true, nil
}

func (f LocalFileFetcher) resolve(path string) string {
	if f.BaseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.BaseDir, path)
}

// ObjectStoreFetcher reads the photo and mask from the shared bucket
// that presigned uploads land in.
type ObjectStoreFetcher struct {
	Storage *storage.Client
}

func (f ObjectStoreFetcher) FetchPhoto(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.EqualFold(req.SourceType, domain.SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return f.Storage.ReadObject(ctx, req.PhotoObjectKey)
}

func (f ObjectStoreFetcher) FetchMask(ctx context.Context, req Request) ([]byte, bool, error) {
	if f.Storage == nil {
		return nil, false, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(req.MaskObjectKey) == "" {
		return nil, false, nil
	}

	_, ok, err := f.Storage.StatObject(ctx, req.MaskObjectKey)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	data, err := f.Storage.ReadObject(ctx, req.MaskObjectKey)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
