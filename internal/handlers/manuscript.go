package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jaehyun/paperflow/internal/services"
	"github.com/jaehyun/paperflow/pkg/response"
)

type ManuscriptHandler struct {
	manuscriptService *services.ManuscriptService
	queryService      *services.ReviewQueryService
}

func NewManuscriptHandler(db *gorm.DB, scheduler *services.ReviewScheduler) *ManuscriptHandler {
	return &ManuscriptHandler{
		manuscriptService: services.NewManuscriptService(db, scheduler),
		queryService:      services.NewReviewQueryService(db),
	}
}

// Create creates a new manuscript, optionally submitting it right away
// POST /api/manuscripts
func (h *ManuscriptHandler) Create(c *gin.Context) {
	var req services.CreateManuscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	manuscript, submitted, err := h.manuscriptService.Create(&req)
	if err != nil {
		if errors.Is(err, services.ErrIneligibleCategory) {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	if submitted != nil {
		response.Created(c, gin.H{
			"manuscript": manuscript,
			"version_id": submitted.VersionID,
			"review_id":  submitted.ReviewID,
		})
		return
	}
	response.Created(c, gin.H{"manuscript": manuscript})
}

// GetByID returns a manuscript
// GET /api/manuscripts/:id
func (h *ManuscriptHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid manuscript id")
		return
	}

	manuscript, err := h.manuscriptService.Get(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrManuscriptNotFound) {
			response.NotFound(c, "manuscript not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	payload := gin.H{"manuscript": manuscript}
	if latest, err := h.queryService.Latest(uint(id)); err == nil {
		payload["latest_review"] = latest
	} else if !errors.Is(err, services.ErrNoReviews) {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, payload)
}

// Update edits a draft manuscript
// PUT /api/manuscripts/:id
func (h *ManuscriptHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid manuscript id")
		return
	}

	var req services.UpdateManuscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	manuscript, err := h.manuscriptService.Update(uint(id), &req)
	if err != nil {
		if errors.Is(err, services.ErrManuscriptNotFound) {
			response.NotFound(c, "manuscript not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, manuscript)
}

// Submit cuts a new version and schedules its review
// POST /api/manuscripts/:id/submit
func (h *ManuscriptHandler) Submit(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid manuscript id")
		return
	}

	result, err := h.manuscriptService.Submit(uint(id))
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
		"version_id": result.VersionID,
		"review_id":  result.ReviewID,
	})
}

// Publish makes an accepted manuscript public
// POST /api/manuscripts/:id/publish
func (h *ManuscriptHandler) Publish(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid manuscript id")
		return
	}

	manuscript, err := h.manuscriptService.Publish(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrManuscriptNotFound) {
			response.NotFound(c, "manuscript not found")
			return
		}
		response.Conflict(c, err.Error())
		return
	}

	response.Success(c, manuscript)
}

// ListVersions returns a manuscript's submitted versions, newest first
// GET /api/manuscripts/:id/versions
func (h *ManuscriptHandler) ListVersions(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid manuscript id")
		return
	}

	versions, err := h.manuscriptService.ListVersions(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrManuscriptNotFound) {
			response.NotFound(c, "manuscript not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, versions)
}
