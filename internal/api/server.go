package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dunamismax/holoflow/internal/domain"
	"github.com/dunamismax/holoflow/internal/id"
	"github.com/dunamismax/holoflow/internal/queue"
	"github.com/dunamismax/holoflow/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger                *log.Logger
	queueClient           queueEnqueuer
	jobStore              store.JobStore
	storage               objectStorage
	presignTTL            time.Duration
	mux                   *http.ServeMux
	metrics               *metrics
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	rateLimitSubmitCost   int
	tracer                trace.Tracer
}

type queueEnqueuer interface {
	EnqueueRestoreArtifact(ctx context.Context, payload queue.RestoreArtifactPayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

// Options carries the optional server collaborators. The zero value yields a
// server with presigned uploads on a 15 minute TTL and no rate limiting or
// tracing.
type Options struct {
	PresignTTL            time.Duration
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
	RateLimitSubmitCost   int
	Tracer                trace.Tracer
}

func NewServer(logger *log.Logger, queueClient queueEnqueuer, jobStore store.JobStore, storage objectStorage, opts Options) *Server {
	presignTTL := opts.PresignTTL
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	if storage == nil {
		storage = unavailableObjectStorage{}
	}
	userIDHeader := strings.TrimSpace(opts.RateLimitUserIDHeader)
	if userIDHeader == "" {
		userIDHeader = "X-User-ID"
	}
	submitCost := opts.RateLimitSubmitCost
	if submitCost < 1 {
		submitCost = 1
	}

	s := &Server{
		logger:                logger,
		queueClient:           queueClient,
		jobStore:              jobStore,
		storage:               storage,
		presignTTL:            presignTTL,
		mux:                   http.NewServeMux(),
		metrics:               newMetrics(),
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: userIDHeader,
		rateLimitSubmitCost:   submitCost,
		tracer:                opts.Tracer,
	}
	s.routes()
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) PresignedPutURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) ObjectExists(_ context.Context, _ string) (bool, error) {
	return false, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = s.withRateLimit(handler)
	handler = s.metrics.withHTTPMetrics(handler)
	handler = s.withTracing(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/restorations", s.handleCreateRestoration)
	s.mux.HandleFunc("POST /v1/restorations/", s.handleStartRestoration)
	s.mux.HandleFunc("GET /v1/restorations/", s.handleGetRestoration)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRestoration(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRestorationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	jobID := id.New()
	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	hologramType := strings.ToLower(strings.TrimSpace(req.HologramType))
	photoKey := strings.TrimSpace(req.PhotoObjectKey)
	maskKey := strings.TrimSpace(req.MaskObjectKey)
	uploadState := "not_required"
	photoPutURL := ""
	maskPutURL := ""

	if sourceType == domain.SourceTypeS3Presigned {
		photoKey = fmt.Sprintf("uploads/%s/photo", jobID)
		maskKey = fmt.Sprintf("uploads/%s/mask", jobID)

		url, err := s.storage.PresignedPutURL(r.Context(), photoKey, s.presignTTL)
		if err != nil {
			s.logger.Printf("generate photo upload url failed for restoration %s: %v", jobID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URL"})
			return
		}
		photoPutURL = url

		// The mask upload is optional but presigned up front so the
		// client never needs a second round trip.
		url, err = s.storage.PresignedPutURL(r.Context(), maskKey, s.presignTTL)
		if err != nil {
			s.logger.Printf("generate mask upload url failed for restoration %s: %v", jobID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URL"})
			return
		}
		maskPutURL = url
		uploadState = "ready"
	}

	job := domain.RestorationJob{
		ID:             jobID,
		UserID:         strings.TrimSpace(req.UserID),
		Status:         domain.JobStatusCreated,
		SourceType:     sourceType,
		HologramType:   hologramType,
		WebhookURL:     req.WebhookURL,
		PhotoObjectKey: photoKey,
		MaskObjectKey:  maskKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Printf("create restoration failed for %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create restoration"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"restoration_id": job.ID,
		"status":         job.Status,
		"hologram_type":  job.HologramType,
		"upload": map[string]string{
			"photo_object_key":    job.PhotoObjectKey,
			"photo_presigned_put": photoPutURL,
			"mask_object_key":     job.MaskObjectKey,
			"mask_presigned_put":  maskPutURL,
			"presigned_url_state": uploadState,
		},
		"start_url": fmt.Sprintf("/v1/restorations/%s/start", job.ID),
	})
}

func (s *Server) handleStartRestoration(w http.ResponseWriter, r *http.Request) {
	jobID, err := extractRestorationIDFromStartPath(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch restoration failed for %s: %v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load restoration"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "restoration not found"})
		return
	}

	if err := s.verifyPhotoExists(r.Context(), job); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	payload := queue.RestoreArtifactPayload{
		JobID:          job.ID,
		UserID:         job.UserID,
		SourceType:     job.SourceType,
		HologramType:   job.HologramType,
		WebhookURL:     job.WebhookURL,
		PhotoObjectKey: job.PhotoObjectKey,
		MaskObjectKey:  job.MaskObjectKey,
		RequestedAt:    time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueueRestoreArtifact(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue failed for restoration %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue restoration"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.jobStore.UpdateStatus(r.Context(), job.ID, domain.JobStatusQueued); err != nil {
		s.logger.Printf("update status failed for restoration %s: %v", job.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"restoration_id": job.ID,
		"status":         domain.JobStatusQueued,
		"queue":          taskInfo.Queue,
		"task_id":        taskInfo.ID,
		"state":          taskInfo.State.String(),
		"enqueued_at":    taskInfo.NextProcessAt,
	})
}

func (s *Server) handleGetRestoration(w http.ResponseWriter, r *http.Request) {
	jobID, err := extractRestorationIDFromPath(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch restoration failed for %s: %v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load restoration"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "restoration not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restoration_id": job.ID,
		"status":         job.Status,
		"source_type":    job.SourceType,
		"hologram_type":  job.HologramType,
		"created_at":     job.CreatedAt,
		"updated_at":     job.UpdatedAt,
	})
}

func (s *Server) verifyPhotoExists(ctx context.Context, job domain.RestorationJob) error {
	switch job.SourceType {
	case domain.SourceTypeLocalFile:
		if _, err := os.Stat(job.PhotoObjectKey); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("source photo is missing: %s", job.PhotoObjectKey)
			}
			return fmt.Errorf("source photo check failed: %w", err)
		}
		return nil
	default:
		exists, err := s.storage.ObjectExists(ctx, job.PhotoObjectKey)
		if err != nil {
			return fmt.Errorf("source photo check failed: %w", err)
		}
		if !exists {
			return fmt.Errorf("source photo is missing: %s", job.PhotoObjectKey)
		}
		return nil
	}
}

func extractRestorationIDFromStartPath(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/v1/restorations/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "start" {
		return "", errors.New("expected path format /v1/restorations/{id}/start")
	}
	return parts[0], nil
}

func extractRestorationIDFromPath(path string) (string, error) {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/v1/restorations/"), "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", errors.New("expected path format /v1/restorations/{id}")
	}
	return trimmed, nil
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
