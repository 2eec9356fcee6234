package main

import (
	"github.com/gin-gonic/gin"

	"github.com/jaehyun/paperflow/internal/middleware"
	"github.com/jaehyun/paperflow/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for write routes
	writeLimiter := middleware.NewRateLimiter(10, 20)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "paperflow"})
	})

	// API routes
	api := r.Group("/api")
	{
		// Manuscripts
		manuscripts := api.Group("/manuscripts")
		{
			manuscripts.GET("/:id", svc.manuscriptHandler.GetByID)
			manuscripts.GET("/:id/versions", svc.manuscriptHandler.ListVersions)
			manuscripts.GET("/:id/reviews", svc.reviewHandler.ListByManuscript)
			manuscripts.GET("/:id/reviews/latest", svc.reviewHandler.Latest)

			writes := manuscripts.Group("", writeLimiter.Middleware())
			{
				writes.POST("", svc.manuscriptHandler.Create)
				writes.PUT("/:id", svc.manuscriptHandler.Update)
				writes.POST("/:id/submit", svc.manuscriptHandler.Submit)
				writes.POST("/:id/publish", svc.manuscriptHandler.Publish)
				writes.POST("/:id/reviews/rerun", svc.reviewHandler.Rerun)
			}
		}

		// Review ledger
		reviews := api.Group("/reviews")
		{
			reviews.GET("", svc.reviewHandler.List)
			reviews.GET("/stats", svc.reviewHandler.Stats)
		}
	}
}
