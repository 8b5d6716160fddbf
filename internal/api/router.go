package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/camphubhq/pipeline/internal/handlers"
	"github.com/camphubhq/pipeline/internal/logger"
)

const (
	corsMaxAgeHours = 12
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Sources     *handlers.SourceHandler
	Jobs        *handlers.JobHandler
	Discoveries *handlers.DiscoveryHandler
	Dedup       *handlers.DedupHandler
	Import      *handlers.ImportHandler
}

func NewRouter(h Handlers, corsOrigins []string, log logger.Logger) *gin.Engine {
	router := gin.New()

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:3000"}
	}

	// CORS middleware - must be first
	router.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
			"X-CSRF-Token", "Authorization", "accept", "origin",
			"Cache-Control", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           corsMaxAgeHours * time.Hour,
	}))

	// Middleware
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1
	v1 := router.Group("/api/v1")

	// Sources endpoints
	sources := v1.Group("/sources")
	sources.POST("", h.Sources.Create)
	sources.GET("", h.Sources.List)
	sources.POST("/import", h.Import.Import)
	sources.GET("/:id", h.Sources.GetByID)
	sources.PUT("/:id", h.Sources.Update)
	sources.DELETE("/:id", h.Sources.Delete)
	sources.POST("/:id/trigger", h.Sources.Trigger)
	sources.GET("/:id/health", h.Sources.GetHealth)
	sources.POST("/:id/clear-regeneration", h.Sources.ClearRegeneration)

	// Jobs endpoints
	jobs := v1.Group("/jobs")
	jobs.GET("", h.Jobs.List)
	jobs.GET("/:id", h.Jobs.GetByID)
	jobs.POST("/:id/result", h.Jobs.SubmitResult)
	jobs.POST("/:id/cancel", h.Jobs.Cancel)

	// Discovery queue endpoints
	discoveries := v1.Group("/discoveries")
	discoveries.POST("", h.Discoveries.Create)
	discoveries.GET("", h.Discoveries.List)
	discoveries.GET("/:id", h.Discoveries.GetByID)
	discoveries.POST("/:id/analysis", h.Discoveries.Analysis)
	discoveries.POST("/:id/review", h.Discoveries.Review)

	// Dedup endpoint
	v1.POST("/dedup/run", h.Dedup.Run)

	return router
}

func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status_code", statusCode),
			logger.String("client_ip", c.ClientIP()),
			logger.Duration("duration", duration),
		)
	}
}
