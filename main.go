package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/weiwangfds/docuvault/config"
	"github.com/weiwangfds/docuvault/internal/database"
	"github.com/weiwangfds/docuvault/internal/logger"
	"github.com/weiwangfds/docuvault/internal/middleware"
	"github.com/weiwangfds/docuvault/internal/router"
	documentservice "github.com/weiwangfds/docuvault/internal/service/document"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	loggerMiddleware := middleware.NewLoggerMiddleware()

	r, err := router.NewRouter(loggerMiddleware, db, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}

	documents := r.Documents()
	documents.StartWorkers()

	// Retention sweeps run on timers; the maintenance endpoints trigger the
	// same passes on demand.
	sweepCtx, cancelSweeps := context.WithCancel(context.Background())
	go runSweeps(sweepCtx, documents)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r.GetEngine(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Infof("Server listening on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	cancelSweeps()

	// Drain in-flight HTTP requests before stopping the workers; uploads
	// accepted during the shutdown window still get to enqueue.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shut down: %v", err)
	}

	documents.StopWorkers()

	logger.Info("Server exited")
}

func runSweeps(ctx context.Context, documents documentservice.DocumentService) {
	backupTicker := time.NewTicker(time.Hour)
	cacheTicker := time.NewTicker(15 * time.Minute)
	defer backupTicker.Stop()
	defer cacheTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-backupTicker.C:
			if removed, err := documents.SweepExpiredBackups(now); err != nil {
				logger.Errorf("Backup sweep failed: %v", err)
			} else if removed > 0 {
				logger.Infof("Backup sweep removed %d expired backups", removed)
			}
		case now := <-cacheTicker.C:
			if removed, err := documents.SweepExpiredCache(now); err != nil {
				logger.Errorf("Cache sweep failed: %v", err)
			} else if removed > 0 {
				logger.Infof("Cache sweep removed %d stale entries", removed)
			}
		}
	}
}
