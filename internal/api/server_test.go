package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/holoflow/internal/domain"
	"github.com/dunamismax/holoflow/internal/queue"
	"github.com/dunamismax/holoflow/internal/store"
	"github.com/hibiken/asynq"
)

type fakeEnqueuer struct {
	payloads []queue.RestoreArtifactPayload
}

func (f *fakeEnqueuer) EnqueueRestoreArtifact(_ context.Context, payload queue.RestoreArtifactPayload) (*asynq.TaskInfo, error) {
	f.payloads = append(f.payloads, payload)
	return &asynq.TaskInfo{
		ID:            "task-1",
		Queue:         "default",
		State:         asynq.TaskStatePending,
		NextProcessAt: time.Now().UTC(),
	}, nil
}

type fakeStorage struct {
	existing map[string]bool
}

func (f *fakeStorage) PresignedPutURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://storage.local/" + objectKey, nil
}

func (f *fakeStorage) ObjectExists(_ context.Context, objectKey string) (bool, error) {
	return f.existing[objectKey], nil
}

func testServer(t *testing.T, enqueuer *fakeEnqueuer, jobStore store.JobStore, storage objectStorage) *Server {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	return NewServer(logger, enqueuer, jobStore, storage, Options{})
}

func TestExtractRestorationIDFromStartPath(t *testing.T) {
	jobID, err := extractRestorationIDFromStartPath("/v1/restorations/abc123/start")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("expected abc123, got %s", jobID)
	}

	if _, err := extractRestorationIDFromStartPath("/v1/restorations/abc123"); err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestExtractRestorationIDFromPath(t *testing.T) {
	jobID, err := extractRestorationIDFromPath("/v1/restorations/abc123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("expected abc123, got %s", jobID)
	}

	if _, err := extractRestorationIDFromPath("/v1/restorations/"); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestRestorationIDFromTracedPath(t *testing.T) {
	cases := map[string]string{
		"/v1/restorations/abc123/start": "abc123",
		"/v1/restorations/abc123":       "abc123",
		"/v1/restorations":              "",
		"/healthz":                      "",
		"/metrics":                      "",
	}
	for path, want := range cases {
		if got := restorationIDFromTracedPath(path); got != want {
			t.Fatalf("path %s: expected %q, got %q", path, want, got)
		}
	}
}

func TestCreateRestorationPresignsUploads(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	srv := testServer(t, &fakeEnqueuer{}, jobStore, &fakeStorage{})

	body := `{"source_type":"s3_presigned","hologram_type":"artifact","user_id":"user-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/restorations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RestorationID string `json:"restoration_id"`
		Status        string `json:"status"`
		Upload        struct {
			PhotoPresignedPut string `json:"photo_presigned_put"`
			MaskPresignedPut  string `json:"mask_presigned_put"`
			PresignedURLState string `json:"presigned_url_state"`
		} `json:"upload"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Status != domain.JobStatusCreated {
		t.Fatalf("expected status created, got %s", resp.Status)
	}
	if resp.Upload.PresignedURLState != "ready" {
		t.Fatalf("expected upload state ready, got %s", resp.Upload.PresignedURLState)
	}
	if resp.Upload.PhotoPresignedPut == "" || resp.Upload.MaskPresignedPut == "" {
		t.Fatal("expected presigned URLs for both photo and mask")
	}

	job, ok, err := jobStore.Get(context.Background(), resp.RestorationID)
	if err != nil || !ok {
		t.Fatalf("expected stored restoration, ok=%v err=%v", ok, err)
	}
	if job.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", job.UserID)
	}
}

func TestCreateRestorationRejectsInvalidRequest(t *testing.T) {
	srv := testServer(t, &fakeEnqueuer{}, store.NewMemoryJobStore(), &fakeStorage{})

	body := `{"source_type":"local_file","hologram_type":"sculpture"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/restorations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartRestorationEnqueues(t *testing.T) {
	dir := t.TempDir()
	photoPath := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(photoPath, []byte("not-really-a-png"), 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}

	jobStore := store.NewMemoryJobStore()
	now := time.Now().UTC()
	job := domain.RestorationJob{
		ID:             "job-1",
		UserID:         "user-1",
		Status:         domain.JobStatusCreated,
		SourceType:     domain.SourceTypeLocalFile,
		HologramType:   domain.HologramTypePainting,
		PhotoObjectKey: photoPath,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := jobStore.Create(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	enqueuer := &fakeEnqueuer{}
	srv := testServer(t, enqueuer, jobStore, &fakeStorage{})

	req := httptest.NewRequest(http.MethodPost, "/v1/restorations/job-1/start", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(enqueuer.payloads) != 1 {
		t.Fatalf("expected 1 enqueued payload, got %d", len(enqueuer.payloads))
	}
	payload := enqueuer.payloads[0]
	if payload.JobID != "job-1" || payload.HologramType != domain.HologramTypePainting {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	stored, _, err := jobStore.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued, got %s", stored.Status)
	}
}

func TestStartRestorationMissingPhotoConflicts(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	now := time.Now().UTC()
	job := domain.RestorationJob{
		ID:             "job-2",
		Status:         domain.JobStatusCreated,
		SourceType:     domain.SourceTypeS3Presigned,
		HologramType:   domain.HologramTypeArtifact,
		PhotoObjectKey: "uploads/job-2/photo",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := jobStore.Create(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	srv := testServer(t, &fakeEnqueuer{}, jobStore, &fakeStorage{existing: map[string]bool{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/restorations/job-2/start", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetRestoration(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	now := time.Now().UTC()
	if err := jobStore.Create(context.Background(), domain.RestorationJob{
		ID:           "job-3",
		Status:       domain.JobStatusSucceeded,
		SourceType:   domain.SourceTypeLocalFile,
		HologramType: domain.HologramTypeArtifact,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	srv := testServer(t, &fakeEnqueuer{}, jobStore, &fakeStorage{})

	req := httptest.NewRequest(http.MethodGet, "/v1/restorations/job-3", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/restorations/nope", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
