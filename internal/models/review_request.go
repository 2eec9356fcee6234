package models

import (
	"time"
)

// ReviewRequest statuses.
const (
	ReviewStatusPending   = "pending"
	ReviewStatusCompleted = "completed"
	ReviewStatusFailed    = "failed"
)

// ReviewRequest triggers.
const (
	ReviewTriggerAutoOnCreate = "auto_on_create"
	ReviewTriggerAutoOnUpdate = "auto_on_update"
	ReviewTriggerManual       = "manual"
)

// Reviewer decisions.
const (
	DecisionAccept        = "accept"
	DecisionMinorRevision = "minor_revision"
	DecisionMajorRevision = "major_revision"
	DecisionReject        = "reject"
)

// ReviewRequest is one attempt to obtain an automated verdict on a specific
// manuscript version. Rows are append-only once terminal: a rerun creates a
// new row, it never mutates history.
//
// Pending rows carry no decision or scores. Completed rows carry all five
// scores, a decision and both summaries. Failed rows carry an error message
// and, when the failure happened after the external call, the raw response
// for forensics.
type ReviewRequest struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	ManuscriptID        uint       `gorm:"index;not null" json:"manuscript_id"`
	Manuscript          *Manuscript `gorm:"foreignKey:ManuscriptID" json:"-"`
	ManuscriptVersionID *uint      `gorm:"index" json:"manuscript_version_id"`
	Status              string     `gorm:"size:50;not null;default:pending;index" json:"status"`
	Trigger             string     `gorm:"size:50;not null" json:"trigger"`
	Decision            *string    `gorm:"size:50" json:"decision"`

	Model         string `gorm:"size:100" json:"model"`
	PromptVersion string `gorm:"size:50" json:"prompt_version"`
	Language      string `gorm:"size:20" json:"language"`

	OverallScore           *int `json:"overall_score"`
	NoveltyScore           *int `json:"novelty_score"`
	MethodologyScore       *int `json:"methodology_score"`
	ClarityScore           *int `json:"clarity_score"`
	CitationIntegrityScore *int `json:"citation_integrity_score"`

	EditorialSummary string `gorm:"type:text" json:"editorial_summary"`
	PeerSummary      string `gorm:"type:text" json:"peer_summary"`

	MajorIssuesJSON       string `gorm:"type:text" json:"-"`
	MinorIssuesJSON       string `gorm:"type:text" json:"-"`
	RequiredRevisionsJSON string `gorm:"type:text" json:"-"`
	StrengthsJSON         string `gorm:"type:text" json:"-"`

	InputSnapshot string `gorm:"type:text" json:"-"` // opaque audit JSON
	RawResponse   string `gorm:"type:text" json:"-"` // opaque reviewer reply JSON
	ErrorMessage  string `gorm:"type:text" json:"error_message"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (ReviewRequest) TableName() string { return "review_requests" }

// Terminal reports whether the request has reached a final state.
func (r *ReviewRequest) Terminal() bool {
	return r.Status == ReviewStatusCompleted || r.Status == ReviewStatusFailed
}

// ValidDecision reports whether code is one of the four enumerated decisions.
func ValidDecision(code string) bool {
	switch code {
	case DecisionAccept, DecisionMinorRevision, DecisionMajorRevision, DecisionReject:
		return true
	}
	return false
}

// ValidTrigger reports whether code is a known scheduling trigger.
func ValidTrigger(code string) bool {
	switch code {
	case ReviewTriggerAutoOnCreate, ReviewTriggerAutoOnUpdate, ReviewTriggerManual:
		return true
	}
	return false
}
