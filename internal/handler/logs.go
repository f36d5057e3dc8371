package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ipdr-dashboard/internal/models"
	"ipdr-dashboard/internal/report"
	"ipdr-dashboard/internal/repository"
)

const dateLayout = "2006-01-02"

type LogsHandler interface {
	Search(c *gin.Context)
	Bounds(c *gin.Context)
	Export(c *gin.Context)
}

type logsHandler struct {
	logs   repository.IPDRLogRepository
	logger *zap.Logger
}

func NewLogsHandler(logs repository.IPDRLogRepository, logger *zap.Logger) LogsHandler {
	return &logsHandler{logs: logs, logger: logger}
}

// SearchResponse is the body of GET /api/logs/search.
type SearchResponse struct {
	Rows   []models.IPDRLog `json:"rows"`
	Report report.Report    `json:"report"`
}

// Search handles GET /api/logs/search
func (h *logsHandler) Search(c *gin.Context) {
	rows, ok := h.search(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Rows: rows, Report: report.Build(rows)})
}

// Export handles GET /api/logs/export with the same filters as Search.
func (h *logsHandler) Export(c *gin.Context) {
	rows, ok := h.search(c)
	if !ok {
		return
	}

	name := fmt.Sprintf("ipdr_export_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.WriteCSV(c.Writer, rows); err != nil {
		h.logger.Error("Failed to write CSV export", zap.Error(err))
	}
}

// Bounds handles GET /api/logs/bounds
func (h *logsHandler) Bounds(c *gin.Context) {
	first, last, err := h.logs.DateBounds(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get date bounds", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve date bounds"})
		return
	}
	count, err := h.logs.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve date bounds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"min_date": first, "max_date": last, "total_rows": count})
}

func (h *logsHandler) search(c *gin.Context) ([]models.IPDRLog, bool) {
	filter := repository.SearchFilter{
		User:     c.Query("user"),
		Domain:   c.Query("domain"),
		SourceIP: c.Query("source_ip"),
		DestIP:   c.Query("dest_ip"),
	}
	var err error
	if filter.Start, err = parseDate(c.Query("start")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a date in YYYY-MM-DD format"})
		return nil, false
	}
	if filter.End, err = parseDate(c.Query("end")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a date in YYYY-MM-DD format"})
		return nil, false
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end date is before start date"})
		return nil, false
	}

	rows, err := h.logs.Search(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to search logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search logs"})
		return nil, false
	}
	return rows, true
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
