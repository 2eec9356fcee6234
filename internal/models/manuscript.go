package models

import (
	"time"

	"gorm.io/gorm"
)

// Manuscript publication statuses.
const (
	ManuscriptStatusDraft     = "draft"
	ManuscriptStatusSubmitted = "submitted"
	ManuscriptStatusRevision  = "revision"
	ManuscriptStatusAccepted  = "accepted"
	ManuscriptStatusPublished = "published"
	ManuscriptStatusRejected  = "rejected"
)

// CategoryPaper is the only category eligible for automated review.
const CategoryPaper = "paper"

// Manuscript is a submission tracked through the publication lifecycle.
// LatestVersionID points at the ManuscriptVersion snapshotted by the most
// recent submission; CurrentRevision counts submissions.
type Manuscript struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:500;not null" json:"title"`
	Summary         string         `gorm:"type:text" json:"summary"`
	Body            string         `gorm:"type:text" json:"body"`
	Category        string         `gorm:"size:50;not null;default:paper" json:"category"`
	Status          string         `gorm:"size:50;not null;default:draft;index" json:"status"`
	IsPublished     bool           `gorm:"default:false" json:"is_published"`
	PublishedAt     *time.Time     `json:"published_at"`
	CurrentRevision int            `gorm:"default:0" json:"current_revision"`
	LatestVersionID *uint          `json:"latest_version_id"`
	FilePath        string         `gorm:"size:500" json:"file_path"`
	FileName        string         `gorm:"size:255" json:"file_name"`
	TagsJSON        string         `gorm:"type:text" json:"-"`
	CitationsJSON   string         `gorm:"type:text" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// ManuscriptVersion is the immutable content snapshot captured at each
// submission. Rows are inserted once and never updated.
type ManuscriptVersion struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ManuscriptID  uint      `gorm:"not null;uniqueIndex:idx_manuscript_version" json:"manuscript_id"`
	VersionNumber int       `gorm:"not null;uniqueIndex:idx_manuscript_version" json:"version_number"`
	Title         string    `gorm:"size:500;not null" json:"title"`
	Summary       string    `gorm:"type:text" json:"summary"`
	Body          string    `gorm:"type:text" json:"body"`
	FilePath      string    `gorm:"size:500" json:"file_path"`
	FileName      string    `gorm:"size:255" json:"file_name"`
	TagsJSON      string    `gorm:"type:text" json:"-"`
	CitationsJSON string    `gorm:"type:text" json:"-"`
	SubmittedAt   time.Time `json:"submitted_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Manuscript) TableName() string        { return "manuscripts" }
func (ManuscriptVersion) TableName() string { return "manuscript_versions" }

// ReviewEligible reports whether automated review applies to this manuscript.
func (m *Manuscript) ReviewEligible() bool {
	return m.Category == CategoryPaper
}
