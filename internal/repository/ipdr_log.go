package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"ipdr-dashboard/internal/models"
)

// SearchFilter is a conjunctive filter over ipdr_logs. Empty strings and nil
// dates are ignored; strings match as substrings.
type SearchFilter struct {
	User     string     `json:"user"`
	Domain   string     `json:"domain"`
	SourceIP string     `json:"source_ip"`
	DestIP   string     `json:"dest_ip"`
	Start    *time.Time `json:"start"`
	End      *time.Time `json:"end"`
}

type IPDRLogRepository interface {
	AppendLogs(ctx context.Context, logs []models.IPDRLog) error
	Search(ctx context.Context, f SearchFilter) ([]models.IPDRLog, error)
	GetAll(ctx context.Context) ([]models.IPDRLog, error)
	DateBounds(ctx context.Context) (first, last *time.Time, err error)
	Count(ctx context.Context) (int, error)
}

type ipdrLogRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewIPDRLogRepository(db *sqlx.DB, logger *zap.Logger) IPDRLogRepository {
	return &ipdrLogRepository{db: db, logger: logger}
}

var (
	selectLogs = `SELECT ` + strings.Join(models.IPDRLogColumns, ", ") + ` FROM ipdr_logs`
	insertLogs = `INSERT INTO ipdr_logs (` + strings.Join(models.IPDRLogColumns, ", ") +
		`) VALUES (:` + strings.Join(models.IPDRLogColumns, ", :") + `)`
)

// AppendLogs validates every record and inserts them in one transaction.
// Nothing is written if any record is invalid or any insert fails.
func (r *ipdrLogRepository) AppendLogs(ctx context.Context, logs []models.IPDRLog) error {
	for i := range logs {
		if err := logs[i].Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		if logs[i].SessionStartTime != nil {
			utc := logs[i].SessionStartTime.UTC()
			logs[i].SessionStartTime = &utc
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, insertLogs)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range logs {
		if _, err := stmt.ExecContext(ctx, &logs[i]); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Info("Appended IPDR logs", zap.Int("rows", len(logs)))
	return nil
}

func (r *ipdrLogRepository) Search(ctx context.Context, f SearchFilter) ([]models.IPDRLog, error) {
	var (
		conds []string
		args  []interface{}
	)
	like := func(column, value string) {
		if value == "" {
			return
		}
		conds = append(conds, column+" LIKE ?")
		args = append(args, "%"+value+"%")
	}
	like("user_number", f.User)
	like("destination_domain", f.Domain)
	like("source_ip", f.SourceIP)
	like("destination_ip", f.DestIP)

	// The end date is inclusive, so the bound is the start of the next day.
	switch {
	case f.Start != nil && f.End != nil:
		conds = append(conds, "session_start_time BETWEEN ? AND ?")
		args = append(args, f.Start.UTC(), f.End.UTC().AddDate(0, 0, 1))
	case f.Start != nil:
		conds = append(conds, "session_start_time >= ?")
		args = append(args, f.Start.UTC())
	case f.End != nil:
		conds = append(conds, "session_start_time <= ?")
		args = append(args, f.End.UTC().AddDate(0, 0, 1))
	}

	query := selectLogs
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	logs := []models.IPDRLog{}
	if err := r.db.SelectContext(ctx, &logs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to search ipdr logs: %w", err)
	}
	return logs, nil
}

func (r *ipdrLogRepository) GetAll(ctx context.Context) ([]models.IPDRLog, error) {
	return r.Search(ctx, SearchFilter{})
}

// DateBounds returns the earliest and latest session start, or nils when
// no row has a start time.
func (r *ipdrLogRepository) DateBounds(ctx context.Context) (*time.Time, *time.Time, error) {
	bound := func(order string) (*time.Time, error) {
		var t time.Time
		query := `SELECT session_start_time FROM ipdr_logs WHERE session_start_time IS NOT NULL ORDER BY session_start_time ` + order + ` LIMIT 1`
		err := r.db.GetContext(ctx, &t, query)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read date bounds: %w", err)
		}
		t = t.UTC()
		return &t, nil
	}

	first, err := bound("ASC")
	if err != nil {
		return nil, nil, err
	}
	last, err := bound("DESC")
	if err != nil {
		return nil, nil, err
	}
	return first, last, nil
}

func (r *ipdrLogRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM ipdr_logs`)
	if err != nil {
		return 0, err
	}
	return count, nil
}
