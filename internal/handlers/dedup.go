package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/camphubhq/pipeline/internal/dedup"
	"github.com/camphubhq/pipeline/internal/logger"
)

type DedupHandler struct {
	engine *dedup.Engine
	logger logger.Logger
}

func NewDedupHandler(engine *dedup.Engine, log logger.Logger) *DedupHandler {
	return &DedupHandler{
		engine: engine,
		logger: log,
	}
}

// Run executes one bounded merge pass for the requested kind. A location
// pass also runs the bad-location cleanup, so the response's deleted count
// only ever moves on kind=locations.
func (h *DedupHandler) Run(c *gin.Context) {
	var req struct {
		Kind      string `json:"kind" binding:"required"`
		BatchSize int    `json:"batch_size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	kind := dedup.Kind(req.Kind)
	if kind != dedup.KindOrganizations && kind != dedup.KindLocations {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be organizations or locations"})
		return
	}

	result, err := h.engine.RunBatch(c.Request.Context(), kind, req.BatchSize)
	if err != nil {
		h.logger.Error("Dedup pass failed",
			logger.String("kind", string(kind)),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Dedup pass failed"})
		return
	}

	deleted := 0
	continueFlag := result.Continue
	if kind == dedup.KindLocations {
		cleanup, cleanupErr := h.engine.CleanupBadLocations(c.Request.Context(), req.BatchSize)
		if cleanupErr != nil {
			h.logger.Error("Bad location cleanup failed",
				logger.Error(cleanupErr),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Bad location cleanup failed"})
			return
		}
		deleted = cleanup.Deleted
		continueFlag = continueFlag || cleanup.Continue
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":     result.Kind,
		"examined": result.Examined,
		"merged":   result.Merged,
		"deleted":  deleted,
		"failed":   result.Failed,
		"continue": continueFlag,
	})
}
