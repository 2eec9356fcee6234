package main

import (
	"github.com/jaehyun/paperflow/internal/config"
	"github.com/jaehyun/paperflow/internal/handlers"
	"github.com/jaehyun/paperflow/internal/models"
	"github.com/jaehyun/paperflow/internal/services"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	reviewCfg         *config.ReviewConfig
	scheduler         *services.ReviewScheduler
	taskQueue         services.TaskQueue
	worker            *services.Worker
	pendingMonitor    *services.PendingMonitor
	manuscriptHandler *handlers.ManuscriptHandler
	reviewHandler     *handlers.ReviewHandler
}

// bootstrap initializes all application dependencies: database, queue,
// scheduler, monitors.
func bootstrap(cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Task queue uses Redis when enabled and reachable, in-process otherwise
	taskQueue := services.NewTaskQueue(cfg)
	scheduler := services.NewReviewScheduler(models.GetDB(), &cfg.Review, taskQueue)

	// The worker only runs when the queue actually went async
	var worker *services.Worker
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(scheduler.Process)
	} else {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(scheduler.Process)
			worker.Start()
		}
	}

	pendingMonitor := services.StartPendingMonitor(models.GetDB())

	return &appServices{
		reviewCfg:         &cfg.Review,
		scheduler:         scheduler,
		taskQueue:         taskQueue,
		worker:            worker,
		pendingMonitor:    pendingMonitor,
		manuscriptHandler: handlers.NewManuscriptHandler(models.GetDB(), scheduler),
		reviewHandler:     handlers.NewReviewHandler(models.GetDB(), scheduler),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.pendingMonitor != nil {
		s.pendingMonitor.Stop()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	logger.Info().Msg("All background services stopped")
}
