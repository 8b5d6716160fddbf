package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/camphubhq/pipeline/internal/events"
	"github.com/camphubhq/pipeline/internal/importer"
	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/repository"
)

type ImportHandler struct {
	repo      *repository.SourceRepository
	publisher *events.Publisher
	logger    logger.Logger
}

func NewImportHandler(repo *repository.SourceRepository, publisher *events.Publisher, log logger.Logger) *ImportHandler {
	return &ImportHandler{
		repo:      repo,
		publisher: publisher,
		logger:    log,
	}
}

// Import bulk-creates sources from an uploaded Excel file. Row failures are
// reported individually; the rest of the file still imports.
func (h *ImportHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload", "details": err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open upload", "details": err.Error()})
		return
	}
	defer file.Close()

	rows, importErrors := importer.ParseExcelFile(file)

	imported := 0
	for _, row := range rows {
		source, convErr := importer.ToSource(row)
		if convErr != nil {
			importErrors = append(importErrors, importer.ImportError{Row: row.Row, Error: convErr.Error()})
			continue
		}

		if createErr := h.repo.Create(c.Request.Context(), source); createErr != nil {
			importErrors = append(importErrors, importer.ImportError{Row: row.Row, Error: createErr.Error()})
			continue
		}

		h.publisher.PublishAsync(events.Event{
			EventType: events.SourceCreated,
			EntityID:  source.ID,
		})
		imported++
	}

	h.logger.Info("Source import finished",
		logger.String("filename", fileHeader.Filename),
		logger.Int("imported", imported),
		logger.Int("errors", len(importErrors)),
	)

	status := http.StatusOK
	if imported == 0 && len(importErrors) > 0 {
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, gin.H{
		"imported": imported,
		"errors":   importErrors,
	})
}
