package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/jaehyun/paperflow/internal/config"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// ReviewProcessor consumes a dequeued review task.
type ReviewProcessor func(ctx context.Context, task *ReviewTask) error

// Worker drains review tasks from Redis when async mode is on.
type Worker struct {
	srv     *asynq.Server
	mux     *asynq.ServeMux
	process ReviewProcessor

	mu      sync.Mutex
	started bool
	done    sync.WaitGroup
}

// NewWorker returns nil when Redis is disabled; callers treat a nil worker
// as "sync mode, nothing to run".
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues:      map[string]int{"default": 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Errorf("review worker: task %s failed: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{srv: srv, mux: asynq.NewServeMux()}
}

func (w *Worker) SetProcessor(p ReviewProcessor) {
	w.process = p
}

// Start launches the asynq server in the background. Calling Start twice is
// a no-op.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	w.mux.HandleFunc(TaskTypeReview, w.handle)
	w.started = true
	w.done.Add(1)

	go func() {
		defer w.done.Done()
		logger.Infof("review worker: starting")
		if err := w.srv.Run(w.mux); err != nil {
			logger.Errorf("review worker: server stopped: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down and waits for in-flight tasks.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}

	w.srv.Shutdown()
	w.started = false
	w.done.Wait()
	logger.Infof("review worker: stopped")
}

func (w *Worker) handle(ctx context.Context, t *asynq.Task) error {
	var task ReviewTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode review task: %w", err)
	}
	if w.process == nil {
		logger.Warnf("review worker: no processor registered, dropping review %d", task.ReviewRequestID)
		return nil
	}

	logger.Infof("review worker: processing review %d", task.ReviewRequestID)
	return w.process(ctx, &task)
}
