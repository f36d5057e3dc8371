package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ipdr-dashboard/internal/anomaly"
	"ipdr-dashboard/internal/models"
	"ipdr-dashboard/internal/notify"
	"ipdr-dashboard/internal/repository"
)

// maxNotifiedSources caps the addresses listed in a notification.
const maxNotifiedSources = 5

type AnomalyService interface {
	Detect(ctx context.Context, contamination float64) (*anomaly.Result, error)
}

type anomalyService struct {
	logs                 repository.IPDRLogRepository
	scorer               *anomaly.Scorer
	notifier             notify.Notifier
	defaultContamination float64
	logger               *zap.Logger
}

// NewAnomalyService creates the service. notifier may be nil.
func NewAnomalyService(logs repository.IPDRLogRepository, scorer *anomaly.Scorer, notifier notify.Notifier, defaultContamination float64, logger *zap.Logger) AnomalyService {
	return &anomalyService{
		logs:                 logs,
		scorer:               scorer,
		notifier:             notifier,
		defaultContamination: defaultContamination,
		logger:               logger,
	}
}

// Detect scores every stored session. A zero contamination uses the default.
func (s *anomalyService) Detect(ctx context.Context, contamination float64) (*anomaly.Result, error) {
	if contamination == 0 {
		contamination = s.defaultContamination
	}

	rows, err := s.logs.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to load sessions for scoring", zap.Error(err))
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	res, err := s.scorer.Score(rows, contamination)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil && res.Flagged > 0 {
		summary := notify.Summary{
			RequestedBy:   models.IdentityFromContext(ctx).Username,
			Contamination: contamination,
			Total:         res.Total,
			Scored:        res.Scored,
			Flagged:       res.Flagged,
			TopSources:    topSources(res.Anomalies, maxNotifiedSources),
		}
		if err := s.notifier.NotifyAnomalies(ctx, summary); err != nil {
			s.logger.Warn("Failed to send anomaly notification", zap.Error(err))
		}
	}
	return res, nil
}

func topSources(records []models.ScoredRecord, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		if _, ok := seen[r.SourceIP]; ok {
			continue
		}
		seen[r.SourceIP] = struct{}{}
		out = append(out, r.SourceIP)
		if len(out) == limit {
			break
		}
	}
	return out
}
