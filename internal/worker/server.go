package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/holoflow/internal/config"
	"github.com/dunamismax/holoflow/internal/domain"
	"github.com/dunamismax/holoflow/internal/hologram"
	"github.com/dunamismax/holoflow/internal/inpaint"
	"github.com/dunamismax/holoflow/internal/matte"
	"github.com/dunamismax/holoflow/internal/pipeline"
	"github.com/dunamismax/holoflow/internal/queue"
	"github.com/dunamismax/holoflow/internal/slot"
	"github.com/dunamismax/holoflow/internal/storage"
	"github.com/dunamismax/holoflow/internal/store"
	"github.com/dunamismax/holoflow/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger          *log.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  *pipeline.Processor
	objectProcessor *pipeline.Processor
	webhookClient   webhookSender
	jobStore        store.JobStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	servicesCfg config.ServicesConfig,
	storageClient *storage.Client,
	publisher slot.Slot,
	webhookClient *webhook.Client,
	jobStore store.JobStore,
	usageStore store.UsageStore,
) (*Server, error) {
	if publisher == nil {
		return nil, fmt.Errorf("frame publisher is required")
	}

	var remoteRepairer inpaint.Repairer
	if strings.TrimSpace(servicesCfg.InpaintEndpoint) != "" {
		remoteRepairer = inpaint.NewHTTPClient(inpaint.Config{
			Endpoint: servicesCfg.InpaintEndpoint,
			APIKey:   servicesCfg.InpaintAPIKey,
			Timeout:  servicesCfg.InpaintTimeout,
		})
	}
	repairChain := inpaint.DefaultChain(logger, remoteRepairer)

	var remoteMatter matte.Matter
	if strings.TrimSpace(servicesCfg.MatteEndpoint) != "" {
		remoteMatter = matte.NewHTTPClient(matte.Config{
			Endpoint: servicesCfg.MatteEndpoint,
			APIKey:   servicesCfg.MatteAPIKey,
			Timeout:  servicesCfg.MatteTimeout,
		})
	}
	matteChain := matte.DefaultChain(logger, remoteMatter)

	localProcessor, err := pipeline.NewProcessor(logger, pipeline.LocalFileFetcher{BaseDir: workerCfg.LocalInputDir}, repairChain, matteChain, publisher)
	if err != nil {
		return nil, fmt.Errorf("initialize local processor: %w", err)
	}

	var objectProcessor *pipeline.Processor
	if storageClient != nil {
		objectProcessor, err = pipeline.NewProcessor(logger, pipeline.ObjectStoreFetcher{Storage: storageClient}, repairChain, matteChain, publisher)
		if err != nil {
			return nil, fmt.Errorf("initialize object-store processor: %w", err)
		}
	}

	if usageStore == nil {
		if jobAndUsageStore, ok := jobStore.(store.UsageStore); ok {
			usageStore = jobAndUsageStore
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		webhookClient:   webhookClient,
		jobStore:        jobStore,
		usageStore:      usageStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("holoflow/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeRestoreArtifact, s.handleRestoreArtifact)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleRestoreArtifact(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseRestoreArtifactPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.restore_artifact", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("restoration.id", payload.JobID),
		attribute.String("restoration.source_type", payload.SourceType),
		attribute.String("restoration.hologram_type", payload.HologramType),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf(
		"Restoring... restoration_id=%s source_type=%s hologram_type=%s photo=%s",
		payload.JobID,
		payload.SourceType,
		payload.HologramType,
		payload.PhotoObjectKey,
	)

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

	request := pipeline.Request{
		JobID:          payload.JobID,
		UserID:         payload.UserID,
		SourceType:     payload.SourceType,
		HologramType:   payload.HologramType,
		PhotoObjectKey: payload.PhotoObjectKey,
		MaskObjectKey:  payload.MaskObjectKey,
	}

	var result pipeline.Result
	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		if s.objectProcessor == nil {
			err = fmt.Errorf("object storage is not configured: %w", asynq.SkipRetry)
		} else {
			result, err = s.objectProcessor.Process(ctx, request)
		}
	}
	if err != nil {
		s.updateJobStatus(ctx, payload.JobID, domain.JobStatusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "restoration failed")
		s.dispatchWebhook(ctx, payload, "restoration.failed", map[string]any{
			"restoration_id": payload.JobID,
			"status":         domain.JobStatusFailed,
			"source_type":    payload.SourceType,
			"hologram_type":  payload.HologramType,
			"requested_at":   payload.RequestedAt,
			"failed_at":      time.Now().UTC(),
			"error":          err.Error(),
		})
		return fmt.Errorf("run restoration: %w", err)
	}

	s.logger.Printf(
		"Restored restoration_id=%s repair_tier=%s matte_tier=%s frame_version=%s",
		payload.JobID,
		result.RepairTier(),
		result.MatteTier(),
		result.Frame.Version,
	)
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusSucceeded)
	s.metrics.framesPublishedTotal.Inc()
	s.recordTiers(result)
	s.recordUsage(ctx, payload.JobID, result, time.Since(startedAt))

	if err := s.dispatchWebhook(ctx, payload, "restoration.completed", map[string]any{
		"restoration_id": payload.JobID,
		"status":         domain.JobStatusSucceeded,
		"source_type":    payload.SourceType,
		"hologram_type":  payload.HologramType,
		"repair_tier":    result.RepairTier(),
		"matte_tier":     result.MatteTier(),
		"frame_version":  result.Frame.Version,
		"requested_at":   payload.RequestedAt,
		"completed_at":   time.Now().UTC(),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "restored")
	return nil
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Printf("status update failed restoration_id=%s status=%s err=%v", jobID, status, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.RestoreArtifactPayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed restoration_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordTiers(result pipeline.Result) {
	if tier := result.RepairTier(); tier != "" {
		s.metrics.repairTierTotal.WithLabelValues(tier).Inc()
	}
	if tier := result.MatteTier(); tier != "" {
		s.metrics.matteTierTotal.WithLabelValues(tier).Inc()
	}
}

func (s *Server) recordUsage(ctx context.Context, jobID string, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := "anonymous"
	if s.jobStore != nil {
		job, ok, err := s.jobStore.Get(ctx, jobID)
		if err != nil {
			s.logger.Printf("usage lookup failed restoration_id=%s err=%v", jobID, err)
		} else if ok && strings.TrimSpace(job.UserID) != "" {
			userID = job.UserID
		}
	}

	// The composite is always a full canvas, so billing is per published
	// frame rather than per source resolution.
	pixelsProcessed := int64(hologram.CanvasSize) * int64(hologram.CanvasSize)

	computeTimeMS := computeDuration.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	usage := domain.UsageLog{
		UserID:          userID,
		JobID:           jobID,
		PixelsProcessed: pixelsProcessed,
		RepairTier:      result.RepairTier(),
		MatteTier:       result.MatteTier(),
		ComputeTimeMS:   computeTimeMS,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Printf("usage log write failed restoration_id=%s err=%v", jobID, err)
		return
	}

	s.metrics.pixelsProcessedTotal.Add(float64(pixelsProcessed))
	s.metrics.computeTimeMSTotal.Add(float64(computeTimeMS))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
