package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/camphubhq/pipeline/internal/jobs"
	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
	"github.com/camphubhq/pipeline/internal/repository"
)

type JobHandler struct {
	service *jobs.Service
	logger  logger.Logger
}

func NewJobHandler(service *jobs.Service, log logger.Logger) *JobHandler {
	return &JobHandler{
		service: service,
		logger:  log,
	}
}

// resultRequest is the extraction collaborator's callback body. A failure
// carries error (+optional error_kind); a success carries records, possibly
// empty.
type resultRequest struct {
	Records  []models.ExtractedRecord `json:"records"`
	Error    string                   `json:"error"`
	Kind     models.ErrorKind         `json:"error_kind"`
	LogLines []string                 `json:"log_lines"`
}

// SubmitResult applies a terminal extraction outcome to a running job.
func (h *JobHandler) SubmitResult(c *gin.Context) {
	id := c.Param("id")

	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Kind != "" && !req.Kind.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown error_kind", "error_kind": string(req.Kind)})
		return
	}

	job, err := h.service.SubmitResult(c.Request.Context(), id, jobs.Result{
		Records:  req.Records,
		Error:    req.Error,
		Kind:     req.Kind,
		LogLines: req.LogLines,
	})
	if err != nil {
		h.respondError(c, id, err, "Failed to apply job result")
		return
	}

	c.JSON(http.StatusOK, job)
}

// Cancel marks a running job failed with the cancelled error kind. The
// cancellation is cooperative; any in-flight extraction result arriving
// afterwards bounces off the terminal state.
func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		CancelledBy string `json:"cancelled_by"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.CancelledBy == "" {
		req.CancelledBy = "operator"
	}

	job, err := h.service.Cancel(c.Request.Context(), id, req.CancelledBy)
	if err != nil {
		h.respondError(c, id, err, "Failed to cancel job")
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	job, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, id, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) List(c *gin.Context) {
	filter := repository.JobListFilter{
		SourceID: c.Query("source_id"),
		Status:   models.JobStatus(c.Query("status")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status", "status": string(filter.Status)})
		return
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = parsed
	}

	jobList, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs",
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobList,
		"count": len(jobList),
	})
}

func (h *JobHandler) respondError(c *gin.Context, jobID string, err error, internalMsg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, jobs.ErrJobTerminal), errors.Is(err, jobs.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error(internalMsg,
			logger.String("job_id", jobID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
	}
}
