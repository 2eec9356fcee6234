package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/config"
	"github.com/jaehyun/paperflow/internal/models"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// ReviewScheduler creates review requests and runs them to a terminal state.
// Schedule is the cheap, request-path half: it persists the pending ledger
// row and hands the id to the queue. Process is the worker half: it
// assembles the input, calls the model and resolves the outcome.
type ReviewScheduler struct {
	db       *gorm.DB
	config   *config.ReviewConfig
	queue    TaskQueue
	input    *ReviewInputService
	client   *ReviewerClient
	resolver *OutcomeResolver
}

func NewReviewScheduler(db *gorm.DB, cfg *config.ReviewConfig, queue TaskQueue) *ReviewScheduler {
	return &ReviewScheduler{
		db:       db,
		config:   cfg,
		queue:    queue,
		input:    NewReviewInputService(db, cfg),
		client:   NewReviewerClient(cfg),
		resolver: NewOutcomeResolver(db),
	}
}

// Schedule records a pending review request for the manuscript and enqueues
// it. The returned id identifies the ledger row; callers observe progress by
// reading it back. Once the row exists, Schedule never fails: a broken queue
// marks the row failed instead of surfacing to the caller.
func (s *ReviewScheduler) Schedule(manuscriptID uint, versionID *uint, trigger string) (uint, error) {
	if !models.ValidTrigger(trigger) {
		return 0, fmt.Errorf("unknown review trigger %q", trigger)
	}

	var manuscript models.Manuscript
	if err := s.db.First(&manuscript, manuscriptID).Error; err != nil {
		return 0, ErrManuscriptNotFound
	}
	if !manuscript.ReviewEligible() {
		return 0, ErrIneligibleCategory
	}

	review := &models.ReviewRequest{
		ManuscriptID:        manuscriptID,
		ManuscriptVersionID: versionID,
		Status:              models.ReviewStatusPending,
		Trigger:             trigger,
		Model:               s.config.Model,
		PromptVersion:       s.config.PromptVersion,
		Language:            s.config.Language,
	}
	if err := s.db.Create(review).Error; err != nil {
		return 0, fmt.Errorf("failed to create review request: %w", err)
	}

	logger.Infof("[Scheduler] Review %d scheduled for manuscript %d (trigger=%s)", review.ID, manuscriptID, trigger)

	if err := s.queue.Enqueue(&ReviewTask{ReviewRequestID: review.ID}); err != nil {
		logger.Errorf("[Scheduler] Failed to enqueue review %d: %v", review.ID, err)
		if failErr := s.resolver.Fail(review.ID, fmt.Sprintf("failed to enqueue review task: %v", err), nil, nil); failErr != nil {
			logger.Errorf("[Scheduler] Failed to mark review %d as failed: %v", review.ID, failErr)
		}
	}

	return review.ID, nil
}

// Process runs one scheduled review to completion. Every error inside the
// review itself ends in a failed ledger row; only persistence errors while
// loading or finalizing the row propagate to the queue.
func (s *ReviewScheduler) Process(ctx context.Context, task *ReviewTask) error {
	var review models.ReviewRequest
	if err := s.db.First(&review, task.ReviewRequestID).Error; err != nil {
		return fmt.Errorf("failed to load review request %d: %w", task.ReviewRequestID, err)
	}
	if review.Terminal() {
		logger.Infof("[Scheduler] Review %d is already %s, skipping", review.ID, review.Status)
		return nil
	}

	built, err := s.input.Build(review.ManuscriptID, review.ManuscriptVersionID)
	if err != nil {
		return s.resolver.Fail(review.ID, fmt.Sprintf("failed to assemble review input: %v", err), nil, nil)
	}

	verdict, raw, err := s.client.Review(ctx, built.Prompt)
	if err != nil {
		return s.resolver.Fail(review.ID, err.Error(), raw, built.Snapshot)
	}

	// A verdict that cannot be persisted is not a failed review. The error
	// goes back to the queue so operators see a persistence fault, and the
	// terminal-skip above keeps a redelivery from rerunning the model call.
	if err := s.resolver.Complete(review.ID, verdict, raw, built.Snapshot); err != nil {
		return fmt.Errorf("failed to record verdict for review %d: %w", review.ID, err)
	}
	return nil
}
