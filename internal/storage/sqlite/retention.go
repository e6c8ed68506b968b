package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"workhours/internal/platform/retention"
)

var _ retention.Purger = (*RetentionStore)(nil)

type RetentionStore struct {
	db *sql.DB
}

func (s *RetentionStore) Purge(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	var query string
	switch category {
	case retention.CategoryIdempotency:
		query = "DELETE FROM idempotency_keys WHERE julianday(created_at) < julianday(?)"
	case retention.CategoryJobRuns:
		query = "DELETE FROM job_runs WHERE finished_at IS NOT NULL AND julianday(finished_at) < julianday(?)"
	case retention.CategoryAudit:
		query = "DELETE FROM audit_events WHERE julianday(created_at) < julianday(?)"
	default:
		return 0, fmt.Errorf("unknown retention category %q", category)
	}
	res, err := s.db.ExecContext(ctx, query, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
