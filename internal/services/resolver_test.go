package services

import (
	"encoding/json"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/models"
)

func createPendingReview(t *testing.T, db *gorm.DB, manuscriptID uint, versionID *uint) *models.ReviewRequest {
	t.Helper()

	review := &models.ReviewRequest{
		ManuscriptID:        manuscriptID,
		ManuscriptVersionID: versionID,
		Status:              models.ReviewStatusPending,
		Trigger:             models.ReviewTriggerManual,
		Model:               "test-model",
		PromptVersion:       "v1",
		Language:            "en",
	}
	if err := db.Create(review).Error; err != nil {
		t.Fatalf("failed to create pending review: %v", err)
	}
	return review
}

// submitVersion snapshots the manuscript as a new version and marks it latest.
func submitVersion(t *testing.T, db *gorm.DB, manuscript *models.Manuscript, number int) *models.ManuscriptVersion {
	t.Helper()

	version := &models.ManuscriptVersion{
		ManuscriptID:  manuscript.ID,
		VersionNumber: number,
		Title:         manuscript.Title,
		Body:          manuscript.Body,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := db.Create(version).Error; err != nil {
		t.Fatal(err)
	}
	updates := map[string]interface{}{
		"status":            models.ManuscriptStatusSubmitted,
		"current_revision":  number,
		"latest_version_id": version.ID,
	}
	if err := db.Model(manuscript).Updates(updates).Error; err != nil {
		t.Fatal(err)
	}
	return version
}

func TestResolver_CompleteAccept(t *testing.T) {
	db := setupTestDB(t)
	manuscript := createTestManuscript(t, db)
	version := submitVersion(t, db, manuscript, 1)
	review := createPendingReview(t, db, manuscript.ID, &version.ID)

	resolver := NewOutcomeResolver(db)
	raw := json.RawMessage(`{"id":"chatcmpl-1"}`)
	snapshot := json.RawMessage(`{"audit_id":"a-1"}`)
	if err := resolver.Complete(review.ID, validTestVerdict(), raw, snapshot); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	var stored models.ReviewRequest
	if err := db.First(&stored, review.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.ReviewStatusCompleted {
		t.Errorf("Status = %q, expected completed", stored.Status)
	}
	if stored.Decision == nil || *stored.Decision != models.DecisionAccept {
		t.Error("Decision should be accept")
	}
	if stored.OverallScore == nil || *stored.OverallScore != 4 {
		t.Error("OverallScore should be 4")
	}
	if stored.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
	if stored.RawResponse != string(raw) {
		t.Errorf("RawResponse = %q", stored.RawResponse)
	}
	if stored.InputSnapshot != string(snapshot) {
		t.Errorf("InputSnapshot = %q", stored.InputSnapshot)
	}

	var m models.Manuscript
	if err := db.First(&m, manuscript.ID).Error; err != nil {
		t.Fatal(err)
	}
	if m.Status != models.ManuscriptStatusAccepted {
		t.Errorf("manuscript status = %q, expected accepted", m.Status)
	}
}

func TestResolver_DecisionMapping(t *testing.T) {
	tests := []struct {
		decision string
		want     string
	}{
		{models.DecisionAccept, models.ManuscriptStatusAccepted},
		{models.DecisionMinorRevision, models.ManuscriptStatusRevision},
		{models.DecisionMajorRevision, models.ManuscriptStatusRevision},
		{models.DecisionReject, models.ManuscriptStatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.decision, func(t *testing.T) {
			db := setupTestDB(t)
			manuscript := createTestManuscript(t, db)
			version := submitVersion(t, db, manuscript, 1)
			review := createPendingReview(t, db, manuscript.ID, &version.ID)

			verdict := validTestVerdict()
			verdict.Decision = tt.decision

			if err := NewOutcomeResolver(db).Complete(review.ID, verdict, nil, nil); err != nil {
				t.Fatalf("Complete failed: %v", err)
			}

			var m models.Manuscript
			db.First(&m, manuscript.ID)
			if m.Status != tt.want {
				t.Errorf("manuscript status = %q, expected %q", m.Status, tt.want)
			}
		})
	}
}

func TestResolver_StaleVersionDoesNotMoveManuscript(t *testing.T) {
	db := setupTestDB(t)
	manuscript := createTestManuscript(t, db)
	first := submitVersion(t, db, manuscript, 1)
	review := createPendingReview(t, db, manuscript.ID, &first.ID)

	// a second submission supersedes the reviewed version
	submitVersion(t, db, manuscript, 2)

	if err := NewOutcomeResolver(db).Complete(review.ID, validTestVerdict(), nil, nil); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	var stored models.ReviewRequest
	db.First(&stored, review.ID)
	if stored.Status != models.ReviewStatusCompleted {
		t.Error("the verdict itself should still be recorded")
	}

	var m models.Manuscript
	db.First(&m, manuscript.ID)
	if m.Status != models.ManuscriptStatusSubmitted {
		t.Errorf("a stale verdict must not move the manuscript, status = %q", m.Status)
	}
}

func TestResolver_CompleteClearsPublishState(t *testing.T) {
	db := setupTestDB(t)
	manuscript := createTestManuscript(t, db)
	version := submitVersion(t, db, manuscript, 1)

	now := time.Now().UTC()
	publish := map[string]interface{}{
		"is_published": true,
		"published_at": now,
	}
	if err := db.Model(manuscript).Updates(publish).Error; err != nil {
		t.Fatal(err)
	}

	review := createPendingReview(t, db, manuscript.ID, &version.ID)
	verdict := validTestVerdict()
	verdict.Decision = models.DecisionMajorRevision
	if err := NewOutcomeResolver(db).Complete(review.ID, verdict, nil, nil); err != nil {
		t.Fatal(err)
	}

	var m models.Manuscript
	db.First(&m, manuscript.ID)
	if m.IsPublished || m.PublishedAt != nil {
		t.Error("a fresh verdict should clear the publish state")
	}
}

func TestResolver_CompleteRefusesTerminalReview(t *testing.T) {
	db := setupTestDB(t)
	manuscript := createTestManuscript(t, db)
	version := submitVersion(t, db, manuscript, 1)
	review := createPendingReview(t, db, manuscript.ID, &version.ID)

	resolver := NewOutcomeResolver(db)
	if err := resolver.Complete(review.ID, validTestVerdict(), nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := resolver.Complete(review.ID, validTestVerdict(), nil, nil); err == nil {
		t.Error("completing a terminal review should fail")
	}
}

func TestResolver_CompleteRejectsInvalidDecision(t *testing.T) {
	db := setupTestDB(t)
	manuscript := createTestManuscript(t, db)
	version := submitVersion(t, db, manuscript, 1)
	review := createPendingReview(t, db, manuscript.ID, &version.ID)

	verdict := validTestVerdict()
	verdict.Decision = "publish_immediately"
	if err := NewOutcomeResolver(db).Complete(review.ID, verdict, nil, nil); err == nil {
		t.Error("an unknown decision should be refused")
	}
}

func TestResolver_Fail(t *testing.T) {
	db := setupTestDB(t)
	manuscript := createTestManuscript(t, db)
	version := submitVersion(t, db, manuscript, 1)
	review := createPendingReview(t, db, manuscript.ID, &version.ID)

	raw := json.RawMessage(`{"error":{"message":"rate limited"}}`)
	if err := NewOutcomeResolver(db).Fail(review.ID, "model call failed after 3 attempts", raw, nil); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	var stored models.ReviewRequest
	db.First(&stored, review.ID)
	if stored.Status != models.ReviewStatusFailed {
		t.Errorf("Status = %q, expected failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Error("ErrorMessage should be recorded")
	}
	if stored.RawResponse != string(raw) {
		t.Error("the failing raw response should be preserved")
	}
	if stored.CompletedAt == nil {
		t.Error("CompletedAt should be set on failure")
	}

	// a failure never moves the manuscript
	var m models.Manuscript
	db.First(&m, manuscript.ID)
	if m.Status != models.ManuscriptStatusSubmitted {
		t.Errorf("manuscript status = %q, expected submitted", m.Status)
	}
}

func TestResolver_FailIsIdempotentOnTerminalRows(t *testing.T) {
	db := setupTestDB(t)
	manuscript := createTestManuscript(t, db)
	version := submitVersion(t, db, manuscript, 1)
	review := createPendingReview(t, db, manuscript.ID, &version.ID)

	resolver := NewOutcomeResolver(db)
	if err := resolver.Complete(review.ID, validTestVerdict(), nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := resolver.Fail(review.ID, "late failure", nil, nil); err != nil {
		t.Errorf("failing a terminal review should be a quiet no-op: %v", err)
	}

	var stored models.ReviewRequest
	db.First(&stored, review.ID)
	if stored.Status != models.ReviewStatusCompleted {
		t.Error("the completed verdict must not be overwritten")
	}
}

func TestVersionsMatch(t *testing.T) {
	one, two := uint(1), uint(2)
	if !versionsMatch(nil, nil) {
		t.Error("nil/nil should match")
	}
	if versionsMatch(&one, nil) || versionsMatch(nil, &one) {
		t.Error("nil should not match a concrete version")
	}
	if !versionsMatch(&one, &one) {
		t.Error("equal ids should match")
	}
	if versionsMatch(&one, &two) {
		t.Error("different ids should not match")
	}
}
