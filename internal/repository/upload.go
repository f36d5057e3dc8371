package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ipdr-dashboard/internal/models"
)

// UploadRepository is the ledger of processed files.
type UploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	List(ctx context.Context, limit int) ([]models.Upload, error)
}

type uploadRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewUploadRepository(db *sqlx.DB, logger *zap.Logger) UploadRepository {
	return &uploadRepository{db: db, logger: logger}
}

func (r *uploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	upload.CreatedAt = upload.CreatedAt.UTC()
	query := `INSERT INTO ipdr_uploads (id, file_name, uploaded_by, row_count, created_at)
		VALUES (:id, :file_name, :uploaded_by, :row_count, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, upload); err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

// List returns the most recent uploads first.
func (r *uploadRepository) List(ctx context.Context, limit int) ([]models.Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	uploads := []models.Upload{}
	query := r.db.Rebind(`SELECT id, file_name, uploaded_by, row_count, created_at FROM ipdr_uploads ORDER BY created_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &uploads, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return uploads, nil
}
