package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/config"
	"github.com/jaehyun/paperflow/internal/models"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// AttachmentSnapshot records how a single attachment contributed to the
// review input.
type AttachmentSnapshot struct {
	FileName       string `json:"file_name"`
	Extension      string `json:"extension"`
	Analyzed       bool   `json:"analyzed"`
	ExtractedChars int    `json:"extracted_chars"`
	SkipReason     string `json:"skip_reason,omitempty"`
}

// InputSnapshot is the audit record of exactly what was sent to the model.
// It is persisted on the review request so a completed review can always be
// traced back to its input.
type InputSnapshot struct {
	AuditID             string               `json:"audit_id"`
	ManuscriptID        uint                 `json:"manuscript_id"`
	ManuscriptVersionID *uint                `json:"manuscript_version_id,omitempty"`
	VersionNumber       *int                 `json:"version_number,omitempty"`
	Title               string               `json:"title"`
	ContentChars        int                  `json:"content_chars"`
	Truncated           bool                 `json:"truncated"`
	MaxInputChars       int                  `json:"max_input_chars"`
	Attachments         []AttachmentSnapshot `json:"attachments,omitempty"`
}

// BuiltReviewInput is an assembled referee input plus its snapshot.
type BuiltReviewInput struct {
	Prompt   string
	Snapshot json.RawMessage
}

// ReviewInputService assembles the manuscript text a review runs against.
// When a version is pinned the input comes from that immutable snapshot,
// otherwise from the live manuscript row.
type ReviewInputService struct {
	db     *gorm.DB
	config *config.ReviewConfig
}

func NewReviewInputService(db *gorm.DB, cfg *config.ReviewConfig) *ReviewInputService {
	return &ReviewInputService{db: db, config: cfg}
}

// Build loads the manuscript (and pinned version, when given), extracts
// attachment text, assembles the prompt body and truncates it to the
// configured input budget.
func (s *ReviewInputService) Build(manuscriptID uint, versionID *uint) (*BuiltReviewInput, error) {
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

	title := manuscript.Title
	summary := manuscript.Summary
	body := manuscript.Body
	filePath := manuscript.FilePath
	fileName := manuscript.FileName

	var versionNumber *int
	if versionID != nil {
		var version models.ManuscriptVersion
		if err := s.db.First(&version, *versionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrVersionNotFound
			}
			return nil, fmt.Errorf("failed to load manuscript version %d: %w", *versionID, err)
		}
		if version.ManuscriptID != manuscriptID {
			return nil, ErrVersionNotFound
		}
		title = version.Title
		summary = version.Summary
		body = version.Body
		filePath = version.FilePath
		fileName = version.FileName
		versionNumber = &version.VersionNumber
	}

	var sections strings.Builder
	sections.WriteString("Title:\n")
	sections.WriteString(title)
	sections.WriteString("\n\nSummary:\n")
	sections.WriteString(summary)
	sections.WriteString("\n\nBody:\n")
	sections.WriteString(body)

	var attachments []AttachmentSnapshot
	if fileName != "" {
		snapshot := extractAttachment(&sections, filePath, fileName)
		attachments = append(attachments, snapshot)
	}

	assembled := sections.String()
	assembledChars := len([]rune(assembled))
	truncated, wasTruncated := TruncateRunes(assembled, s.config.MaxInputChars)
	if wasTruncated {
		logger.Infof("[ReviewInput] Manuscript %d input truncated from %d to %d chars",
			manuscriptID, assembledChars, s.config.MaxInputChars)
	}

	// content_chars records how much content existed before truncation, so
	// the audit trail still shows the full size of an over-budget input.
	snapshot := InputSnapshot{
		AuditID:             uuid.New().String(),
		ManuscriptID:        manuscriptID,
		ManuscriptVersionID: versionID,
		VersionNumber:       versionNumber,
		Title:               title,
		ContentChars:        assembledChars,
		Truncated:           wasTruncated,
		MaxInputChars:       s.config.MaxInputChars,
		Attachments:         attachments,
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input snapshot: %w", err)
	}

	return &BuiltReviewInput{
		Prompt:   BuildReviewPrompt(truncated, s.config.Language),
		Snapshot: encoded,
	}, nil
}

// extractAttachment appends the attachment's text to the input when its
// format is supported. Extraction problems never fail the review, they are
// recorded as a skip reason instead.
func extractAttachment(sections *strings.Builder, filePath, fileName string) AttachmentSnapshot {
	snapshot := AttachmentSnapshot{
		FileName:  fileName,
		Extension: fileExtension(fileName),
	}

	text, supported, err := ExtractAttachmentText(filePath, fileName)
	switch {
	case !supported:
		snapshot.SkipReason = "unsupported file type"
	case err != nil:
		logger.Warnf("[ReviewInput] Attachment %s extraction failed: %v", fileName, err)
		snapshot.SkipReason = err.Error()
	case strings.TrimSpace(text) == "":
		snapshot.SkipReason = "no extractable text"
	default:
		snapshot.Analyzed = true
		snapshot.ExtractedChars = len([]rune(text))
		sections.WriteString("\n\nAttachment (")
		sections.WriteString(fileName)
		sections.WriteString("):\n")
		sections.WriteString(text)
	}
	return snapshot
}

func fileExtension(fileName string) string {
	idx := strings.LastIndexByte(fileName, '.')
	if idx < 0 || idx == len(fileName)-1 {
		return ""
	}
	return strings.ToLower(fileName[idx+1:])
}

// TruncateRunes cuts s to at most max runes. Cutting on runes keeps
// multi-byte text intact.
func TruncateRunes(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}
	return string(runes[:max]), true
}
