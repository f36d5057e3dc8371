package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ipdr-dashboard/internal/ingest"
	"ipdr-dashboard/internal/repository"
	"ipdr-dashboard/internal/service"
)

type UploadHandler interface {
	Upload(c *gin.Context)
	List(c *gin.Context)
}

type uploadHandler struct {
	ingestService service.IngestService
	uploads       repository.UploadRepository
	maxBytes      int64
	logger        *zap.Logger
}

func NewUploadHandler(ingestService service.IngestService, uploads repository.UploadRepository, maxBytes int64, logger *zap.Logger) UploadHandler {
	return &uploadHandler{ingestService: ingestService, uploads: uploads, maxBytes: maxBytes, logger: logger}
}

// Upload handles POST /api/uploads: a multipart "file" plus optional
// column mapping fields.
func (h *uploadHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A CSV file is required in the \"file\" field"})
		return
	}

	var mapping ingest.ColumnMapping
	if err := c.ShouldBind(&mapping); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	result, err := h.ingestService.Ingest(c.Request.Context(), fileHeader.Filename, file, mapping)
	if err != nil {
		var missing *ingest.MissingColumnsError
		switch {
		case errors.As(err, &missing):
			c.JSON(http.StatusBadRequest, gin.H{"error": missing.Error(), "missing_columns": missing.Columns})
		case errors.Is(err, service.ErrInvalidFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrPersistence):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save data to the database"})
		default:
			h.logger.Error("Failed to process upload", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process upload"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

// List handles GET /api/uploads.
func (h *uploadHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	uploads, err := h.uploads.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list uploads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve uploads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"uploads": uploads})
}
