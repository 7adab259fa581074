package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/holoflow/internal/config"
	"github.com/dunamismax/holoflow/internal/slot"
	"github.com/dunamismax/holoflow/internal/storage"
	"github.com/dunamismax/holoflow/internal/viewer"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[viewer] ", log.LstdFlags|log.Lmsgprefix)

	source, err := buildSource(cfg, logger)
	if err != nil {
		logger.Fatalf("frame source setup failed: %v", err)
	}

	poller := viewer.NewPoller(logger, source, cfg.Viewer.PollInterval)
	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	go poller.Run(pollCtx)

	srv := viewer.NewServer(logger, poller)
	httpServer := &http.Server{
		Addr:         cfg.Viewer.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Viewer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	stopPolling()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func buildSource(cfg config.Config, logger *log.Logger) (slot.Slot, error) {
	if cfg.Slot.FilePath != "" {
		logger.Printf("reading frames from file %s", cfg.Slot.FilePath)
		return slot.NewFileSlot(cfg.Slot.FilePath)
	}

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	logger.Printf("reading frames from object %s", cfg.Slot.ObjectKey)
	return slot.NewObjectSlot(storageClient, cfg.Slot.ObjectKey)
}
