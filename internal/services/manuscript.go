package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/models"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// ManuscriptService owns the manuscript lifecycle: drafting, submitting
// numbered versions, publishing accepted work and handing submissions to the
// review scheduler.
type ManuscriptService struct {
	db        *gorm.DB
	scheduler *ReviewScheduler
}

func NewManuscriptService(db *gorm.DB, scheduler *ReviewScheduler) *ManuscriptService {
	return &ManuscriptService{db: db, scheduler: scheduler}
}

// CreateManuscriptRequest carries the fields an author provides for a new
// manuscript. Submit=true submits the draft immediately after creation.
type CreateManuscriptRequest struct {
	Title     string   `json:"title" binding:"required"`
	Summary   string   `json:"summary"`
	Body      string   `json:"body"`
	Category  string   `json:"category"`
	FilePath  string   `json:"file_path"`
	FileName  string   `json:"file_name"`
	Tags      []string `json:"tags"`
	Citations []uint   `json:"citations"`
	Submit    bool     `json:"submit"`
}

// SubmitResult reports what a submission produced.
type SubmitResult struct {
	Manuscript *models.Manuscript
	VersionID  uint
	ReviewID   uint
}

// Create stores a new manuscript. It starts as a draft; with Submit set the
// first version is cut and reviewed right away.
func (s *ManuscriptService) Create(req *CreateManuscriptRequest) (*models.Manuscript, *SubmitResult, error) {
	category := req.Category
	if category == "" {
		category = models.CategoryPaper
	}

	manuscript := &models.Manuscript{
		Title:         req.Title,
		Summary:       req.Summary,
		Body:          req.Body,
		Category:      category,
		Status:        models.ManuscriptStatusDraft,
		FilePath:      req.FilePath,
		FileName:      req.FileName,
		TagsJSON:      marshalStringList(req.Tags),
		CitationsJSON: marshalUintList(req.Citations),
	}
	if err := s.db.Create(manuscript).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create manuscript: %w", err)
	}

	logger.Infof("[Manuscript] Created manuscript %d (%s)", manuscript.ID, manuscript.Title)

	if !req.Submit {
		return manuscript, nil, nil
	}

	result, err := s.Submit(manuscript.ID)
	if err != nil {
		return manuscript, nil, err
	}
	return result.Manuscript, result, nil
}

// UpdateManuscriptRequest carries draft edits. Nil fields are left alone.
type UpdateManuscriptRequest struct {
	Title     *string   `json:"title"`
	Summary   *string   `json:"summary"`
	Body      *string   `json:"body"`
	FilePath  *string   `json:"file_path"`
	FileName  *string   `json:"file_name"`
	Tags      *[]string `json:"tags"`
	Citations *[]uint   `json:"citations"`
}

// Update edits the live manuscript row. Past versions are immutable, so the
// edit only becomes review-relevant once the manuscript is resubmitted.
func (s *ManuscriptService) Update(manuscriptID uint, req *UpdateManuscriptRequest) (*models.Manuscript, error) {
	manuscript, err := s.Get(manuscriptID)
	if err != nil {
		return nil, err
	}
	if manuscript.Status == models.ManuscriptStatusPublished {
		return nil, fmt.Errorf("published manuscripts cannot be edited")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Summary != nil {
		updates["summary"] = *req.Summary
	}
	if req.Body != nil {
		updates["body"] = *req.Body
	}
	if req.FilePath != nil {
		updates["file_path"] = *req.FilePath
	}
	if req.FileName != nil {
		updates["file_name"] = *req.FileName
	}
	if req.Tags != nil {
		updates["tags_json"] = marshalStringList(*req.Tags)
	}
	if req.Citations != nil {
		updates["citations_json"] = marshalUintList(*req.Citations)
	}
	if len(updates) == 0 {
		return manuscript, nil
	}

	if err := s.db.Model(manuscript).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update manuscript %d: %w", manuscriptID, err)
	}
	return s.Get(manuscriptID)
}

// Submit cuts an immutable version from the manuscript's current content,
// moves it to submitted and schedules its review. Only drafts and
// manuscripts sent back for revision can be submitted.
func (s *ManuscriptService) Submit(manuscriptID uint) (*SubmitResult, error) {
	var manuscript models.Manuscript
	if err := s.db.First(&manuscript, manuscriptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManuscriptNotFound
		}
		return nil, fmt.Errorf("failed to load manuscript %d: %w", manuscriptID, err)
	}

	if !manuscript.ReviewEligible() {
		return nil, ErrIneligibleCategory
	}
	if manuscript.Status != models.ManuscriptStatusDraft && manuscript.Status != models.ManuscriptStatusRevision {
		return nil, fmt.Errorf("manuscript %d cannot be submitted from status %s", manuscriptID, manuscript.Status)
	}

	trigger := models.ReviewTriggerAutoOnUpdate
	if manuscript.CurrentRevision == 0 {
		trigger = models.ReviewTriggerAutoOnCreate
	}

	var versionID uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		nextRevision := manuscript.CurrentRevision + 1
		version := &models.ManuscriptVersion{
			ManuscriptID:  manuscript.ID,
			VersionNumber: nextRevision,
			Title:         manuscript.Title,
			Summary:       manuscript.Summary,
			Body:          manuscript.Body,
			FilePath:      manuscript.FilePath,
			FileName:      manuscript.FileName,
			TagsJSON:      manuscript.TagsJSON,
			CitationsJSON: manuscript.CitationsJSON,
			SubmittedAt:   time.Now().UTC(),
		}
		if err := tx.Create(version).Error; err != nil {
			return fmt.Errorf("failed to create manuscript version: %w", err)
		}
		versionID = version.ID

		updates := map[string]interface{}{
			"status":            models.ManuscriptStatusSubmitted,
			"current_revision":  nextRevision,
			"latest_version_id": version.ID,
			"is_published":      false,
			"published_at":      nil,
		}
		if err := tx.Model(&models.Manuscript{}).Where("id = ?", manuscript.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to submit manuscript %d: %w", manuscript.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reviewID, err := s.scheduler.Schedule(manuscript.ID, &versionID, trigger)
	if err != nil {
		return nil, err
	}

	updated, err := s.Get(manuscript.ID)
	if err != nil {
		return nil, err
	}

	logger.Infof("[Manuscript] Manuscript %d submitted as version %d, review %d scheduled",
		manuscript.ID, updated.CurrentRevision, reviewID)

	return &SubmitResult{Manuscript: updated, VersionID: versionID, ReviewID: reviewID}, nil
}

// Publish makes an accepted manuscript public. Publishing an already
// published manuscript is a no-op; any other status is refused.
func (s *ManuscriptService) Publish(manuscriptID uint) (*models.Manuscript, error) {
	manuscript, err := s.Get(manuscriptID)
	if err != nil {
		return nil, err
	}

	if manuscript.Status == models.ManuscriptStatusPublished {
		return manuscript, nil
	}
	if manuscript.Status != models.ManuscriptStatusAccepted {
		return nil, fmt.Errorf("only accepted manuscripts can be published, manuscript %d is %s",
			manuscriptID, manuscript.Status)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       models.ManuscriptStatusPublished,
		"is_published": true,
		"published_at": now,
	}
	if err := s.db.Model(manuscript).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to publish manuscript %d: %w", manuscriptID, err)
	}

	logger.Infof("[Manuscript] Manuscript %d published", manuscriptID)
	return s.Get(manuscriptID)
}

// Rerun requests a fresh review of the latest submitted version. The
// manuscript returns to submitted and loses any publish state until the new
// verdict lands.
func (s *ManuscriptService) Rerun(manuscriptID uint) (*SubmitResult, error) {
	manuscript, err := s.Get(manuscriptID)
	if err != nil {
		return nil, err
	}
	if !manuscript.ReviewEligible() {
		return nil, ErrIneligibleCategory
	}
	if manuscript.LatestVersionID == nil {
		return nil, fmt.Errorf("manuscript %d has never been submitted", manuscriptID)
	}

	updates := map[string]interface{}{
		"status":       models.ManuscriptStatusSubmitted,
		"is_published": false,
		"published_at": nil,
	}
	if err := s.db.Model(manuscript).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to reset manuscript %d for rerun: %w", manuscriptID, err)
	}

	reviewID, err := s.scheduler.Schedule(manuscriptID, manuscript.LatestVersionID, models.ReviewTriggerManual)
	if err != nil {
		return nil, err
	}

	updated, err := s.Get(manuscriptID)
	if err != nil {
		return nil, err
	}

	logger.Infof("[Manuscript] Manual review %d scheduled for manuscript %d", reviewID, manuscriptID)
	return &SubmitResult{Manuscript: updated, VersionID: *manuscript.LatestVersionID, ReviewID: reviewID}, nil
}

// Get loads a single manuscript.
func (s *ManuscriptService) Get(manuscriptID uint) (*models.Manuscript, error) {
	var manuscript models.Manuscript
	if err := s.db.First(&manuscript, manuscriptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManuscriptNotFound
		}
		return nil, fmt.Errorf("failed to load manuscript %d: %w", manuscriptID, err)
	}
	return &manuscript, nil
}

// ListVersions returns a manuscript's submitted versions, newest first.
func (s *ManuscriptService) ListVersions(manuscriptID uint) ([]models.ManuscriptVersion, error) {
	if _, err := s.Get(manuscriptID); err != nil {
		return nil, err
	}

	var versions []models.ManuscriptVersion
	if err := s.db.Where("manuscript_id = ?", manuscriptID).
		Order("version_number DESC").
		Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("failed to list versions of manuscript %d: %w", manuscriptID, err)
	}
	return versions, nil
}

func marshalUintList(list []uint) string {
	if list == nil {
		list = []uint{}
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
