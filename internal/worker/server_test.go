package worker

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/dunamismax/holoflow/internal/domain"
	"github.com/dunamismax/holoflow/internal/hologram"
	"github.com/dunamismax/holoflow/internal/inpaint"
	"github.com/dunamismax/holoflow/internal/matte"
	"github.com/dunamismax/holoflow/internal/pipeline"
	"github.com/dunamismax/holoflow/internal/slot"
	"github.com/dunamismax/holoflow/internal/store"
)

func TestRecordUsageWritesUsageLog(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	if err := jobStore.Create(context.Background(), domain.RestorationJob{
		ID:             "job-1",
		UserID:         "user-1",
		Status:         domain.JobStatusProcessing,
		SourceType:     domain.SourceTypeLocalFile,
		HologramType:   domain.HologramTypeArtifact,
		PhotoObjectKey: "photo.png",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     log.New(io.Discard, "", 0),
		jobStore:   jobStore,
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	result := pipeline.Result{
		SourceBytes: 1_000,
		Frame:       slot.Frame{Version: "7"},
		Stages: []pipeline.StageOutcome{
			{Stage: pipeline.StageRepair, Tier: inpaint.TierMaskedBlur},
			{Stage: pipeline.StageMatte, Tier: matte.TierThreshold},
			{Stage: pipeline.StageComposite, Tier: pipeline.TierComposite},
		},
	}
	s.recordUsage(context.Background(), "job-1", result, 250*time.Millisecond)

	if !usageStore.called {
		t.Fatal("expected usage log to be written")
	}
	if usageStore.log.UserID != "user-1" {
		t.Fatalf("expected user_id=user-1, got %s", usageStore.log.UserID)
	}
	wantPixels := int64(hologram.CanvasSize) * int64(hologram.CanvasSize)
	if usageStore.log.PixelsProcessed != wantPixels {
		t.Fatalf("expected pixels_processed=%d, got %d", wantPixels, usageStore.log.PixelsProcessed)
	}
	if usageStore.log.RepairTier != inpaint.TierMaskedBlur {
		t.Fatalf("expected repair_tier=%s, got %s", inpaint.TierMaskedBlur, usageStore.log.RepairTier)
	}
	if usageStore.log.MatteTier != matte.TierThreshold {
		t.Fatalf("expected matte_tier=%s, got %s", matte.TierThreshold, usageStore.log.MatteTier)
	}
	if usageStore.log.ComputeTimeMS != 250 {
		t.Fatalf("expected compute_time_ms=250, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestRecordUsageDefaultsAnonymousUser(t *testing.T) {
	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     log.New(io.Discard, "", 0),
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "job-2", pipeline.Result{}, 0)

	if usageStore.log.UserID != "anonymous" {
		t.Fatalf("expected anonymous user, got %s", usageStore.log.UserID)
	}
	if usageStore.log.ComputeTimeMS < 1 {
		t.Fatalf("expected compute_time_ms to be at least 1, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestRecordTiersSkipsMissingStages(t *testing.T) {
	s := &Server{
		logger:  log.New(io.Discard, "", 0),
		metrics: newMetrics(),
	}

	// No stages at all; must not panic or record empty tier labels.
	s.recordTiers(pipeline.Result{})

	s.recordTiers(pipeline.Result{
		Stages: []pipeline.StageOutcome{
			{Stage: pipeline.StageRepair, Tier: pipeline.TierSkipped},
		},
	})
}

type captureUsageStore struct {
	called bool
	log    domain.UsageLog
}

func (s *captureUsageStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.called = true
	s.log = usage
	return nil
}
