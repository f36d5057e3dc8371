package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ipdr-dashboard/internal/anomaly"
	"ipdr-dashboard/internal/service"
)

type AnomalyHandler interface {
	Detect(c *gin.Context)
}

type anomalyHandler struct {
	anomalyService service.AnomalyService
	logger         *zap.Logger
}

func NewAnomalyHandler(anomalyService service.AnomalyService, logger *zap.Logger) AnomalyHandler {
	return &anomalyHandler{anomalyService: anomalyService, logger: logger}
}

type DetectRequest struct {
	Contamination float64 `json:"contamination"`
}

// Detect handles POST /api/anomalies/detect
func (h *anomalyHandler) Detect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.anomalyService.Detect(c.Request.Context(), req.Contamination)
	if err != nil {
		switch {
		case errors.Is(err, anomaly.ErrNotEnoughData):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not enough data"})
		case errors.Is(err, anomaly.ErrInvalidContamination):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Anomaly detection failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Anomaly detection failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"features":  anomaly.FeatureNames,
		"total":     res.Total,
		"scored":    res.Scored,
		"excluded":  res.Excluded,
		"flagged":   res.Flagged,
		"anomalies": res.Anomalies,
	})
}
