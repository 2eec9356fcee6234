package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/models"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// OutcomeResolver finalizes review requests. Recording the verdict and
// moving the manuscript happen in one transaction, so a reader never sees a
// completed review without its manuscript transition (or staleness skip).
type OutcomeResolver struct {
	db *gorm.DB
}

func NewOutcomeResolver(db *gorm.DB) *OutcomeResolver {
	return &OutcomeResolver{db: db}
}

// Complete marks a pending review request as completed with the given
// verdict and applies the decision to the manuscript. When the reviewed
// version is no longer the manuscript's latest, the verdict is recorded but
// the manuscript is left untouched.
func (r *OutcomeResolver) Complete(reviewID uint, verdict *ReviewVerdict, raw, snapshot json.RawMessage) error {
	if verdict == nil {
		return fmt.Errorf("cannot complete review %d without a verdict", reviewID)
	}
	if !models.ValidDecision(verdict.Decision) {
		return fmt.Errorf("cannot complete review %d with unknown decision %q", reviewID, verdict.Decision)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var review models.ReviewRequest
		if err := tx.First(&review, reviewID).Error; err != nil {
			return fmt.Errorf("failed to load review request %d: %w", reviewID, err)
		}
		if review.Terminal() {
			return fmt.Errorf("review request %d is already %s", reviewID, review.Status)
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":                   models.ReviewStatusCompleted,
			"decision":                 verdict.Decision,
			"overall_score":            verdict.OverallScore,
			"novelty_score":            verdict.NoveltyScore,
			"methodology_score":        verdict.MethodologyScore,
			"clarity_score":            verdict.ClarityScore,
			"citation_integrity_score": verdict.CitationIntegrityScore,
			"editorial_summary":        verdict.EditorialSummary,
			"peer_summary":             verdict.PeerSummary,
			"major_issues_json":        marshalStringList(verdict.MajorIssues),
			"minor_issues_json":        marshalStringList(verdict.MinorIssues),
			"required_revisions_json":  marshalStringList(verdict.RequiredRevisions),
			"strengths_json":           marshalStringList(verdict.Strengths),
			"completed_at":             now,
		}
		if len(raw) > 0 {
			updates["raw_response"] = string(raw)
		}
		if len(snapshot) > 0 {
			updates["input_snapshot"] = string(snapshot)
		}
		if err := tx.Model(&models.ReviewRequest{}).Where("id = ?", reviewID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to record review verdict: %w", err)
		}

		var manuscript models.Manuscript
		if err := tx.First(&manuscript, review.ManuscriptID).Error; err != nil {
			return fmt.Errorf("failed to load manuscript %d: %w", review.ManuscriptID, err)
		}

		if !versionsMatch(review.ManuscriptVersionID, manuscript.LatestVersionID) {
			logger.Infof("[Resolver] Review %d finished against a superseded version of manuscript %d, keeping status %s",
				reviewID, manuscript.ID, manuscript.Status)
			return nil
		}

		next := nextManuscriptStatus(verdict.Decision)
		manuscriptUpdates := map[string]interface{}{
			"status":       next,
			"is_published": false,
			"published_at": nil,
		}
		if err := tx.Model(&models.Manuscript{}).Where("id = ?", manuscript.ID).Updates(manuscriptUpdates).Error; err != nil {
			return fmt.Errorf("failed to move manuscript %d to %s: %w", manuscript.ID, next, err)
		}

		logger.Infof("[Resolver] Review %d completed with decision %s, manuscript %d moved to %s",
			reviewID, verdict.Decision, manuscript.ID, next)
		return nil
	})
}

// Fail marks a pending review request as failed with the given reason. The
// manuscript is never moved on failure. An already terminal review is left
// as is.
func (r *OutcomeResolver) Fail(reviewID uint, reason string, raw, snapshot json.RawMessage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var review models.ReviewRequest
		if err := tx.First(&review, reviewID).Error; err != nil {
			return fmt.Errorf("failed to load review request %d: %w", reviewID, err)
		}
		if review.Terminal() {
			logger.Warnf("[Resolver] Not failing review %d, it is already %s", reviewID, review.Status)
			return nil
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":        models.ReviewStatusFailed,
			"error_message": reason,
			"completed_at":  now,
		}
		if len(raw) > 0 {
			updates["raw_response"] = string(raw)
		}
		if len(snapshot) > 0 {
			updates["input_snapshot"] = string(snapshot)
		}
		if err := tx.Model(&models.ReviewRequest{}).Where("id = ?", reviewID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to record review failure: %w", err)
		}

		logger.Warnf("[Resolver] Review %d failed: %s", reviewID, reason)
		return nil
	})
}

// versionsMatch compares the reviewed version with the manuscript's current
// latest. Two nils match: both refer to a manuscript that has never had a
// submitted version.
func versionsMatch(reviewed, latest *uint) bool {
	if reviewed == nil && latest == nil {
		return true
	}
	if reviewed == nil || latest == nil {
		return false
	}
	return *reviewed == *latest
}

func nextManuscriptStatus(decision string) string {
	switch decision {
	case models.DecisionAccept:
		return models.ManuscriptStatusAccepted
	case models.DecisionReject:
		return models.ManuscriptStatusRejected
	default:
		// minor_revision and major_revision both send the authors back
		return models.ManuscriptStatusRevision
	}
}

func marshalStringList(list []string) string {
	if list == nil {
		list = []string{}
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
