package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/services"
	"github.com/jaehyun/paperflow/pkg/response"
)

type ReviewHandler struct {
	queryService      *services.ReviewQueryService
	manuscriptService *services.ManuscriptService
}

func NewReviewHandler(db *gorm.DB, scheduler *services.ReviewScheduler) *ReviewHandler {
	return &ReviewHandler{
		queryService:      services.NewReviewQueryService(db),
		manuscriptService: services.NewManuscriptService(db, scheduler),
	}
}

// ListByManuscript returns a manuscript's review history, newest first
// GET /api/manuscripts/:id/reviews
func (h *ReviewHandler) ListByManuscript(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid manuscript id")
		return
	}

	req := services.ReviewListRequest{
		ManuscriptID: uint(id),
		Status:       c.Query("status"),
	}
	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	resp, err := h.queryService.List(&req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, resp)
}

// Latest returns the most recent review request for a manuscript
// GET /api/manuscripts/:id/reviews/latest
func (h *ReviewHandler) Latest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid manuscript id")
		return
	}

	review, err := h.queryService.Latest(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrNoReviews) {
			response.NotFound(c, "manuscript has no review requests")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, review)
}

// Rerun schedules a fresh manual review of the latest version
// POST /api/manuscripts/:id/reviews/rerun
func (h *ReviewHandler) Rerun(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid manuscript id")
		return
	}

	result, err := h.manuscriptService.Rerun(uint(id))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrManuscriptNotFound):
			response.NotFound(c, "manuscript not found")
		case errors.Is(err, services.ErrIneligibleCategory):
			response.BadRequest(c, err.Error())
		default:
			response.Conflict(c, err.Error())
		}
		return
	}

	response.Accepted(c, gin.H{
		"manuscript": result.Manuscript,
		"review_id":  result.ReviewID,
	})
}

// List returns reviews across all manuscripts with optional status filter
// GET /api/reviews
func (h *ReviewHandler) List(c *gin.Context) {
	req := services.ReviewListRequest{
		Status: c.Query("status"),
	}
	if raw := c.Query("manuscript_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			response.BadRequest(c, "invalid manuscript id")
			return
		}
		req.ManuscriptID = uint(id)
	}
	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	resp, err := h.queryService.List(&req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, resp)
}

// Stats returns ledger-wide status counts
// GET /api/reviews/stats
func (h *ReviewHandler) Stats(c *gin.Context) {
	counts, err := h.queryService.StatusCounts()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, counts)
}
