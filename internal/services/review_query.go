package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/models"
)

// ErrNoReviews is returned by Latest when a manuscript has no review
// requests at all.
var ErrNoReviews = errors.New("no review requests for this manuscript")

// ReviewRequestView is the consumer projection of a ledger row. The JSON
// list columns are decoded into slices and the opaque audit columns are
// passed through untouched.
type ReviewRequestView struct {
	ID                  uint   `json:"id"`
	ManuscriptID        uint   `json:"manuscript_id"`
	ManuscriptVersionID *uint  `json:"manuscript_version_id,omitempty"`
	VersionNumber       *int   `json:"version_number,omitempty"`
	Status              string `json:"status"`
	Trigger             string `json:"trigger"`

	Model         string `json:"model"`
	PromptVersion string `json:"prompt_version"`
	Language      string `json:"language"`

	Decision               *string `json:"decision,omitempty"`
	OverallScore           *int    `json:"overall_score,omitempty"`
	NoveltyScore           *int    `json:"novelty_score,omitempty"`
	MethodologyScore       *int    `json:"methodology_score,omitempty"`
	ClarityScore           *int    `json:"clarity_score,omitempty"`
	CitationIntegrityScore *int    `json:"citation_integrity_score,omitempty"`

	EditorialSummary string `json:"editorial_summary,omitempty"`
	PeerSummary      string `json:"peer_summary,omitempty"`

	MajorIssues       []string `json:"major_issues"`
	MinorIssues       []string `json:"minor_issues"`
	RequiredRevisions []string `json:"required_revisions"`
	Strengths         []string `json:"strengths"`

	InputSnapshot json.RawMessage `json:"input_snapshot,omitempty"`
	RawResponse   json.RawMessage `json:"raw_response,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`

	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// ReviewListRequest filters a review listing. ManuscriptID of zero means all
// manuscripts; an empty status means all statuses.
type ReviewListRequest struct {
	ManuscriptID uint
	Status       string
	Page         int
	PageSize     int
}

// ReviewListResponse is one page of review requests, newest first.
type ReviewListResponse struct {
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Items    []ReviewRequestView `json:"items"`
}

// ReviewStatusCounts aggregates the ledger by status.
type ReviewStatusCounts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// ReviewQueryService is the read side of the review ledger.
type ReviewQueryService struct {
	db *gorm.DB
}

func NewReviewQueryService(db *gorm.DB) *ReviewQueryService {
	return &ReviewQueryService{db: db}
}

// List returns review requests, most recent first. Ties on created_at break
// on id so the order is stable.
func (s *ReviewQueryService) List(req *ReviewListRequest) (*ReviewListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	if req.Status != "" && !validReviewStatus(req.Status) {
		return nil, fmt.Errorf("unknown review status %q", req.Status)
	}

	query := s.db.Model(&models.ReviewRequest{})
	if req.ManuscriptID != 0 {
		query = query.Where("manuscript_id = ?", req.ManuscriptID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count review requests: %w", err)
	}

	var rows []models.ReviewRequest
	if err := query.
		Order("created_at DESC, id DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list review requests: %w", err)
	}

	views, err := s.project(rows)
	if err != nil {
		return nil, err
	}

	return &ReviewListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    views,
	}, nil
}

// Latest returns the most recently created review request for a manuscript,
// whatever its state.
func (s *ReviewQueryService) Latest(manuscriptID uint) (*ReviewRequestView, error) {
	var row models.ReviewRequest
	err := s.db.Where("manuscript_id = ?", manuscriptID).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoReviews
		}
		return nil, fmt.Errorf("failed to load latest review: %w", err)
	}

	views, err := s.project([]models.ReviewRequest{row})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// StatusCounts aggregates the whole ledger for operational dashboards.
func (s *ReviewQueryService) StatusCounts() (*ReviewStatusCounts, error) {
	counts := &ReviewStatusCounts{}

	type statusCount struct {
		Status string
		Count  int64
	}
	var perStatus []statusCount
	if err := s.db.Model(&models.ReviewRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&perStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate review statuses: %w", err)
	}

	for _, sc := range perStatus {
		counts.Total += sc.Count
		switch sc.Status {
		case models.ReviewStatusPending:
			counts.Pending = sc.Count
		case models.ReviewStatusCompleted:
			counts.Completed = sc.Count
		case models.ReviewStatusFailed:
			counts.Failed = sc.Count
		}
	}
	return counts, nil
}

// project converts ledger rows into views, resolving version numbers in one
// extra query.
func (s *ReviewQueryService) project(rows []models.ReviewRequest) ([]ReviewRequestView, error) {
	versionNumbers, err := s.versionNumbers(rows)
	if err != nil {
		return nil, err
	}

	views := make([]ReviewRequestView, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		view := ReviewRequestView{
			ID:                  row.ID,
			ManuscriptID:        row.ManuscriptID,
			ManuscriptVersionID: row.ManuscriptVersionID,
			Status:              row.Status,
			Trigger:             row.Trigger,
			Model:               row.Model,
			PromptVersion:       row.PromptVersion,
			Language:            row.Language,

			Decision:               row.Decision,
			OverallScore:           row.OverallScore,
			NoveltyScore:           row.NoveltyScore,
			MethodologyScore:       row.MethodologyScore,
			ClarityScore:           row.ClarityScore,
			CitationIntegrityScore: row.CitationIntegrityScore,

			EditorialSummary: row.EditorialSummary,
			PeerSummary:      row.PeerSummary,

			MajorIssues:       decodeStringList(row.MajorIssuesJSON),
			MinorIssues:       decodeStringList(row.MinorIssuesJSON),
			RequiredRevisions: decodeStringList(row.RequiredRevisionsJSON),
			Strengths:         decodeStringList(row.StrengthsJSON),

			ErrorMessage: row.ErrorMessage,
			CreatedAt:    row.CreatedAt.UTC().Format(time.RFC3339),
		}

		if row.ManuscriptVersionID != nil {
			if number, ok := versionNumbers[*row.ManuscriptVersionID]; ok {
				view.VersionNumber = &number
			}
		}
		if row.CompletedAt != nil {
			completed := row.CompletedAt.UTC().Format(time.RFC3339)
			view.CompletedAt = &completed
		}
		if json.Valid([]byte(row.InputSnapshot)) && row.InputSnapshot != "" {
			view.InputSnapshot = json.RawMessage(row.InputSnapshot)
		}
		if json.Valid([]byte(row.RawResponse)) && row.RawResponse != "" {
			view.RawResponse = json.RawMessage(row.RawResponse)
		}

		views = append(views, view)
	}
	return views, nil
}

func (s *ReviewQueryService) versionNumbers(rows []models.ReviewRequest) (map[uint]int, error) {
	ids := make([]uint, 0, len(rows))
	seen := make(map[uint]bool)
	for i := range rows {
		if rows[i].ManuscriptVersionID == nil {
			continue
		}
		id := *rows[i].ManuscriptVersionID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[uint]int{}, nil
	}

	var versions []models.ManuscriptVersion
	if err := s.db.Select("id, version_number").Where("id IN ?", ids).Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve version numbers: %w", err)
	}

	numbers := make(map[uint]int, len(versions))
	for i := range versions {
		numbers[versions[i].ID] = versions[i].VersionNumber
	}
	return numbers, nil
}

func validReviewStatus(status string) bool {
	switch status {
	case models.ReviewStatusPending, models.ReviewStatusCompleted, models.ReviewStatusFailed:
		return true
	}
	return false
}

func decodeStringList(encoded string) []string {
	if encoded == "" {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal([]byte(encoded), &list); err != nil || list == nil {
		return []string{}
	}
	return list
}
