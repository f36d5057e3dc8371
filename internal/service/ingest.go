package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ipdr-dashboard/internal/enrichment"
	"ipdr-dashboard/internal/ingest"
	"ipdr-dashboard/internal/metrics"
	"ipdr-dashboard/internal/models"
	"ipdr-dashboard/internal/pipeline"
	"ipdr-dashboard/internal/repository"
)

var (
	ErrInvalidFile = errors.New("invalid upload file")
	ErrPersistence = errors.New("failed to save data to the database")
)

// PreviewRows is the number of processed rows echoed back to the caller.
const PreviewRows = 5

// IngestResult describes one persisted upload.
type IngestResult struct {
	Upload  models.Upload    `json:"upload"`
	Users   int              `json:"users"`
	Stats   enrichment.Stats `json:"stats"`
	Preview []models.IPDRLog `json:"preview"`
}

type IngestService interface {
	Ingest(ctx context.Context, fileName string, r io.Reader, mapping ingest.ColumnMapping) (*IngestResult, error)
}

type ingestService struct {
	pipeline *pipeline.Pipeline
	logs     repository.IPDRLogRepository
	uploads  repository.UploadRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewIngestService(p *pipeline.Pipeline, logs repository.IPDRLogRepository, uploads repository.UploadRepository, m *metrics.Metrics, logger *zap.Logger) IngestService {
	return &ingestService{pipeline: p, logs: logs, uploads: uploads, metrics: m, logger: logger}
}

// Ingest reads, enriches and appends one file. A missing column returns
// *ingest.MissingColumnsError and nothing is written.
func (s *ingestService) Ingest(ctx context.Context, fileName string, r io.Reader, mapping ingest.ColumnMapping) (*IngestResult, error) {
	identity := models.IdentityFromContext(ctx)

	table, err := ingest.ReadTable(r)
	if err != nil {
		s.metrics.Upload("invalid", 0)
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	res, err := s.pipeline.Process(ctx, table, mapping)
	if err != nil {
		var missing *ingest.MissingColumnsError
		if errors.As(err, &missing) {
			s.metrics.Upload("invalid", 0)
			s.logger.Info("Upload rejected", zap.String("file", fileName), zap.Strings("missing", missing.Columns))
			return nil, err
		}
		s.metrics.Upload("failed", 0)
		return nil, err
	}

	if err := s.logs.AppendLogs(ctx, res.Logs); err != nil {
		s.metrics.Upload("failed", 0)
		s.logger.Error("Failed to save data to the database", zap.String("file", fileName), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	upload := models.Upload{
		ID:         uuid.NewString(),
		FileName:   fileName,
		UploadedBy: identity.Username,
		RowCount:   len(res.Logs),
		CreatedAt:  time.Now().UTC(),
	}
	// The rows are already committed; a ledger failure is only logged.
	if err := s.uploads.Create(ctx, &upload); err != nil {
		s.logger.Warn("Failed to record upload", zap.String("upload_id", upload.ID), zap.Error(err))
	}

	s.metrics.Upload("ok", len(res.Logs))
	s.logger.Info("Upload processed",
		zap.String("upload_id", upload.ID),
		zap.String("file", fileName),
		zap.String("user", identity.Username),
		zap.Int("rows", len(res.Logs)),
		zap.Int("geo_calls", res.Stats.GeoCalls),
		zap.Int("name_calls", res.Stats.NameCalls),
	)

	preview := res.Logs
	if len(preview) > PreviewRows {
		preview = preview[:PreviewRows]
	}
	return &IngestResult{Upload: upload, Users: res.Users, Stats: res.Stats, Preview: preview}, nil
}
