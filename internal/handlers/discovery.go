package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/camphubhq/pipeline/internal/discovery"
	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
	"github.com/camphubhq/pipeline/internal/repository"
)

const defaultDiscoveryListLimit = 50

type DiscoveryHandler struct {
	service *discovery.Service
	logger  logger.Logger
}

func NewDiscoveryHandler(service *discovery.Service, log logger.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		service: service,
		logger:  log,
	}
}

// Create registers a candidate URL from the external discovery collaborator.
func (h *DiscoveryHandler) Create(c *gin.Context) {
	var req struct {
		URL            string `json:"url" binding:"required"`
		Title          string `json:"title"`
		Snippet        string `json:"snippet"`
		DiscoveryQuery string `json:"discovery_query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ds, err := h.service.Record(c.Request.Context(), req.URL, req.Title, req.Snippet, req.DiscoveryQuery)
	if err != nil {
		h.logger.Error("Failed to record discovery",
			logger.String("url", req.URL),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record discovery"})
		return
	}

	c.JSON(http.StatusCreated, ds)
}

// Analysis is the AI collaborator's classification callback.
func (h *DiscoveryHandler) Analysis(c *gin.Context) {
	id := c.Param("id")

	var analysis models.SiteAnalysis
	if err := c.ShouldBindJSON(&analysis); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ds, err := h.service.ApplyAnalysis(c.Request.Context(), id, &analysis)
	if err != nil {
		h.respondError(c, id, err, "Failed to apply analysis")
		return
	}

	c.JSON(http.StatusOK, ds)
}

// Review applies an operator decision: approved or rejected.
func (h *DiscoveryHandler) Review(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Decision   string `json:"decision" binding:"required"`
		ReviewedBy string `json:"reviewed_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	decision := discovery.Decision(req.Decision)
	if decision != discovery.DecisionApproved && decision != discovery.DecisionRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be approved or rejected"})
		return
	}

	ds, err := h.service.Review(c.Request.Context(), id, decision, req.ReviewedBy)
	if err != nil {
		h.respondError(c, id, err, "Failed to apply review decision")
		return
	}

	c.JSON(http.StatusOK, ds)
}

func (h *DiscoveryHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	ds, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, id, err, "Failed to get discovered source")
		return
	}

	c.JSON(http.StatusOK, ds)
}

func (h *DiscoveryHandler) List(c *gin.Context) {
	status := models.DiscoveryStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status", "status": string(status)})
		return
	}

	limit := defaultDiscoveryListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	discoveries, err := h.service.List(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error("Failed to list discoveries",
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list discoveries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"discoveries": discoveries,
		"count":       len(discoveries),
	})
}

func (h *DiscoveryHandler) respondError(c *gin.Context, id string, err error, internalMsg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Discovered source not found"})
	case errors.Is(err, discovery.ErrNotReviewable), errors.Is(err, discovery.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error(internalMsg,
			logger.String("discovery_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
	}
}
