package services

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jaehyun/paperflow/internal/config"
	"github.com/jaehyun/paperflow/internal/models"
)

// setupTestDB opens a fresh in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Manuscript{}, &models.ManuscriptVersion{}, &models.ReviewRequest{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// testReviewConfig returns reviewer settings tuned for fast tests.
func testReviewConfig() *config.ReviewConfig {
	return &config.ReviewConfig{
		Provider:       "openai",
		APIKey:         "test-key",
		Model:          "test-model",
		TimeoutSeconds: 5,
		MaxRetries:     2,
		RetryBaseMS:    1,
		RetryMaxMS:     5,
		MaxInputChars:  24000,
		Language:       "en",
		PromptVersion:  "v1",
	}
}

// captureQueue records enqueued tasks without processing them, so tests can
// drive the worker explicitly.
type captureQueue struct {
	tasks []*ReviewTask
}

func (q *captureQueue) Enqueue(task *ReviewTask) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *captureQueue) Close() error { return nil }

// createTestManuscript inserts a draft paper manuscript.
func createTestManuscript(t *testing.T, db *gorm.DB) *models.Manuscript {
	t.Helper()

	manuscript := &models.Manuscript{
		Title:    "Adaptive Scheduling in Distributed Queues",
		Summary:  "We study adaptive scheduling strategies.",
		Body:     "Queueing systems under bursty load degrade in predictable ways.",
		Category: models.CategoryPaper,
		Status:   models.ManuscriptStatusDraft,
	}
	if err := db.Create(manuscript).Error; err != nil {
		t.Fatalf("failed to create test manuscript: %v", err)
	}
	return manuscript
}

func validTestVerdict() *ReviewVerdict {
	return &ReviewVerdict{
		Decision:               models.DecisionAccept,
		OverallScore:           4,
		NoveltyScore:           4,
		MethodologyScore:       5,
		ClarityScore:           4,
		CitationIntegrityScore: 5,
		EditorialSummary:       "Sound methodology and a clear contribution.",
		PeerSummary:            "The evaluation section is thorough and convincing.",
		MajorIssues:            []string{},
		MinorIssues:            []string{"Figure 3 axis labels are small"},
		RequiredRevisions:      []string{},
		Strengths:              []string{"Rigorous evaluation"},
	}
}
