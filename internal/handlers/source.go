package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/camphubhq/pipeline/internal/events"
	"github.com/camphubhq/pipeline/internal/health"
	"github.com/camphubhq/pipeline/internal/jobs"
	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
	"github.com/camphubhq/pipeline/internal/repository"
)

type SourceHandler struct {
	repo      *repository.SourceRepository
	jobs      *jobs.Service
	publisher *events.Publisher
	logger    logger.Logger
	listLimit int
}

func NewSourceHandler(
	repo *repository.SourceRepository,
	jobService *jobs.Service,
	publisher *events.Publisher,
	log logger.Logger,
	listLimit int,
) *SourceHandler {
	return &SourceHandler{
		repo:      repo,
		jobs:      jobService,
		publisher: publisher,
		logger:    log,
		listLimit: listLimit,
	}
}

func (h *SourceHandler) Create(c *gin.Context) {
	var source models.Source
	if err := c.ShouldBindJSON(&source); err != nil {
		h.logger.Debug("Invalid request body",
			logger.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.repo.Create(c.Request.Context(), &source); err != nil {
		h.logger.Error("Failed to create source",
			logger.String("source_name", source.Name),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create source"})
		return
	}

	h.publisher.PublishAsync(events.Event{
		EventType: events.SourceCreated,
		EntityID:  source.ID,
	})

	h.logger.Info("Source created",
		logger.String("source_id", source.ID),
		logger.String("source_name", source.Name),
	)

	c.JSON(http.StatusCreated, source)
}

func (h *SourceHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	source, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Source not found", "Failed to get source")
		return
	}

	c.JSON(http.StatusOK, source)
}

// List returns sources matching the filter plus counts for every filter.
// "healthy" is accepted as an alias for "active".
func (h *SourceHandler) List(c *gin.Context) {
	filter := repository.SourceFilter(c.DefaultQuery("filter", string(repository.FilterAll)))
	if filter == "healthy" {
		filter = repository.FilterActive
	}
	if !filter.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown filter", "filter": string(filter)})
		return
	}

	limit := h.listLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	sources, counts, err := h.repo.ListFiltered(
		c.Request.Context(),
		filter,
		health.DegradedConsecutiveFailures,
		c.Query("city_id"),
		limit,
	)
	if err != nil {
		h.logger.Error("Failed to list sources",
			logger.String("filter", string(filter)),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources":          sources,
		"count":            len(sources),
		"counts_by_filter": counts,
	})
}

func (h *SourceHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var source models.Source
	if err := c.ShouldBindJSON(&source); err != nil {
		h.logger.Debug("Invalid request body",
			logger.String("source_id", id),
			logger.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	source.ID = id

	if err := h.repo.Update(c.Request.Context(), &source); err != nil {
		h.respondError(c, err, "Source not found", "Failed to update source")
		return
	}

	h.logger.Info("Source updated",
		logger.String("source_id", id),
		logger.String("source_name", source.Name),
	)

	updated, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, source)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete removes a source. Sessions are unlinked, not removed; cascade=true
// deletes them too.
func (h *SourceHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	cascade := c.Query("cascade") == "true"

	if err := h.repo.Delete(c.Request.Context(), id, cascade); err != nil {
		h.respondError(c, err, "Source not found", "Failed to delete source")
		return
	}

	h.logger.Info("Source deleted",
		logger.String("source_id", id),
		logger.Bool("cascade", cascade),
	)

	c.JSON(http.StatusNoContent, nil)
}

// Trigger starts an extraction job for the source. A running job on the same
// source yields 409; other sources are unaffected.
func (h *SourceHandler) Trigger(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		TriggeredBy string `json:"triggered_by"`
	}
	// Body is optional; an absent or empty triggered_by defaults to manual.
	_ = c.ShouldBindJSON(&req)
	if req.TriggeredBy == "" {
		req.TriggeredBy = "manual"
	}

	job, err := h.jobs.Trigger(c.Request.Context(), id, req.TriggeredBy)
	if err != nil {
		if errors.Is(err, repository.ErrRunningJobConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "A job is already running for this source"})
			return
		}
		h.respondError(c, err, "Source not found", "Failed to trigger job")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

// GetHealth returns the source's health counters plus its classification.
func (h *SourceHandler) GetHealth(c *gin.Context) {
	id := c.Param("id")

	source, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Source not found", "Failed to get source")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source_id":      source.ID,
		"health":         source.Health,
		"classification": health.Classify(source.Health),
	})
}

// ClearRegeneration is the operator acknowledgement that a structurally
// broken scraper has been fixed. Health counters are untouched.
func (h *SourceHandler) ClearRegeneration(c *gin.Context) {
	id := c.Param("id")

	if err := h.repo.ClearRegeneration(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "Source not found", "Failed to clear regeneration flag")
		return
	}

	h.logger.Info("Regeneration flag cleared",
		logger.String("source_id", id),
	)

	c.JSON(http.StatusOK, gin.H{"source_id": id, "needs_regeneration": false})
}

func (h *SourceHandler) respondError(c *gin.Context, err error, notFoundMsg, internalMsg string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
		return
	}
	h.logger.Error(internalMsg,
		logger.String("source_id", c.Param("id")),
		logger.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
}
