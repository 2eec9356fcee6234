package services

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/jaehyun/paperflow/internal/config"
	"github.com/jaehyun/paperflow/pkg/logger"
)

const TaskTypeReview = "review:manuscript"

// ReviewTask is the queue payload for one scheduled review. The full input
// is assembled in the worker, so the payload only carries the ledger row id.
type ReviewTask struct {
	ReviewRequestID uint `json:"review_request_id"`
}

// TaskQueue hands scheduled reviews off for background processing.
type TaskQueue interface {
	Enqueue(task *ReviewTask) error
	Close() error
}

// NewTaskQueue picks the Redis-backed queue when enabled and reachable,
// otherwise the in-process fallback. Degrading to in-process keeps a single
// binary fully functional without Redis.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if !cfg.Redis.Enabled {
		logger.Infof("review queue: in-process mode (redis disabled)")
		return NewSyncQueue()
	}

	q, err := NewAsyncQueue(&cfg.Redis)
	if err != nil {
		logger.Warnf("review queue: redis unreachable, falling back to in-process mode: %v", err)
		return NewSyncQueue()
	}
	logger.Infof("review queue: async mode via redis at %s", cfg.Redis.Addr)
	return q
}

// AsyncQueue pushes review tasks into asynq.
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	client := asynq.NewClient(opt)

	// Probe the connection before committing to async mode.
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue submits the task with redelivery disabled. Model-call retries
// happen inside the review client, so a redelivered task must never rerun a
// review.
func (q *AsyncQueue) Enqueue(task *ReviewTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(
		asynq.NewTask(TaskTypeReview, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return err
	}

	logger.Infof("review queue: enqueued review %d (task %s)", task.ReviewRequestID, info.ID)
	return nil
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs each task in its own goroutine so Submit and Rerun return
// immediately even without Redis.
type SyncQueue struct {
	process ReviewProcessor
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(p ReviewProcessor) {
	q.process = p
}

func (q *SyncQueue) Enqueue(task *ReviewTask) error {
	if q.process == nil {
		logger.Warnf("review queue: no processor registered, dropping review %d", task.ReviewRequestID)
		return nil
	}

	go func() {
		if err := q.process(context.Background(), task); err != nil {
			logger.Errorf("review queue: review %d failed: %v", task.ReviewRequestID, err)
		}
	}()
	return nil
}

func (q *SyncQueue) Close() error {
	return nil
}
