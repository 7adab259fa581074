package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/holoflow/internal/config"
	"github.com/dunamismax/holoflow/internal/imagecodec"
	"github.com/dunamismax/holoflow/internal/slot"
	"github.com/dunamismax/holoflow/internal/storage"
	"github.com/dunamismax/holoflow/internal/store"
	"github.com/dunamismax/holoflow/internal/telemetry"
	"github.com/dunamismax/holoflow/internal/webhook"
	"github.com/dunamismax/holoflow/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)

	if err := imagecodec.Startup(); err != nil {
		logger.Fatalf("image codec startup failed: %v", err)
	}
	defer imagecodec.Shutdown()

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), telemetry.TraceConfig{
		ServiceName:  "holoflow-worker",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Printf("object storage unavailable, presigned sources disabled: %v", err)
		storageClient = nil
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := storageClient.EnsureBucket(ctx); err != nil {
			logger.Printf("ensure bucket failed: %v", err)
		}
		cancel()
	}

	publisher, err := buildPublisher(cfg, storageClient, logger)
	if err != nil {
		logger.Fatalf("frame publisher setup failed: %v", err)
	}

	var jobStore store.JobStore
	var usageStore store.UsageStore
	pgStore, err := store.NewPostgresJobStore(context.Background(), cfg.Database.DSN)
	if err != nil {
		logger.Printf("postgres unavailable, using in-memory job store: %v", err)
		memStore := store.NewMemoryJobStore()
		jobStore = memStore
		usageStore = memStore
	} else {
		defer func() {
			if err := pgStore.Close(); err != nil {
				logger.Printf("job store close error: %v", err)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatalf("ensure schema failed: %v", err)
		}
		cancel()
		jobStore = pgStore
		usageStore = pgStore
	}

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.Webhook.SigningSecret,
		Timeout:       cfg.Webhook.Timeout,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
	})

	logger.Printf(
		"starting worker concurrency=%d max_active_jobs=%d queue=%s redis=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
	)

	srv, err := worker.NewServer(
		logger,
		cfg.Queue,
		cfg.Worker,
		cfg.Services,
		storageClient,
		publisher,
		webhookClient,
		jobStore,
		usageStore,
	)
	if err != nil {
		logger.Fatalf("worker setup failed: %v", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", srv.MetricsHandler())
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := http.ListenAndServe(cfg.Worker.MetricsAddr, mux); err != nil {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	if err := srv.Run(); err != nil {
		logger.Fatalf("worker failed: %v", err)
	}
}

func buildPublisher(cfg config.Config, storageClient *storage.Client, logger *log.Logger) (slot.Slot, error) {
	if cfg.Slot.FilePath != "" {
		logger.Printf("publishing frames to file %s", cfg.Slot.FilePath)
		return slot.NewFileSlot(cfg.Slot.FilePath)
	}
	if storageClient != nil {
		logger.Printf("publishing frames to object %s", cfg.Slot.ObjectKey)
		return slot.NewObjectSlot(storageClient, cfg.Slot.ObjectKey)
	}

	fallback := "./.holoflow-output/hologram.png"
	logger.Printf("no slot backend configured, publishing frames to file %s", fallback)
	return slot.NewFileSlot(fallback)
}
