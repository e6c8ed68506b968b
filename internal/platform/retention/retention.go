package retention

import (
	"context"
	"fmt"
	"time"

	"workhours/internal/platform/querier"
)

const (
	CategoryIdempotency = "idempotency"
	CategoryJobRuns     = "job_runs"
	CategoryAudit       = "audit"
)

// Purger deletes the rows of one category created before cutoff.
type Purger interface {
	Purge(ctx context.Context, category string, cutoff time.Time) (int64, error)
}

// Policy holds the maximum age per category. Zero keeps rows forever.
type Policy struct {
	Idempotency time.Duration
	JobRuns     time.Duration
	Audit       time.Duration
}

type Result struct {
	Cutoffs map[string]time.Time `json:"cutoffs"`
	Deleted map[string]int64     `json:"deleted"`
}

// Apply purges every category with a positive max age. It stops at the first
// failure and reports what was deleted up to that point.
func Apply(ctx context.Context, purger Purger, policy Policy, now time.Time) (Result, error) {
	res := Result{Cutoffs: map[string]time.Time{}, Deleted: map[string]int64{}}
	for _, item := range []struct {
		category string
		maxAge   time.Duration
	}{
		{CategoryIdempotency, policy.Idempotency},
		{CategoryJobRuns, policy.JobRuns},
		{CategoryAudit, policy.Audit},
	} {
		if item.maxAge <= 0 {
			continue
		}
		cutoff := now.Add(-item.maxAge)
		n, err := purger.Purge(ctx, item.category, cutoff)
		res.Cutoffs[item.category] = cutoff
		res.Deleted[item.category] = n
		if err != nil {
			return res, fmt.Errorf("purge %s: %w", item.category, err)
		}
	}
	return res, nil
}

type PGPurger struct {
	DB querier.Querier
}

func (p PGPurger) Purge(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	switch category {
	case CategoryIdempotency:
		tag, err := p.DB.Exec(ctx, "DELETE FROM idempotency_keys WHERE created_at < $1", cutoff)
		return tag.RowsAffected(), err
	case CategoryJobRuns:
		tag, err := p.DB.Exec(ctx, `
      DELETE FROM job_runs
      WHERE completed_at IS NOT NULL AND completed_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	case CategoryAudit:
		tag, err := p.DB.Exec(ctx, "DELETE FROM audit_events WHERE created_at < $1", cutoff)
		return tag.RowsAffected(), err
	default:
		return 0, fmt.Errorf("unknown retention category %q", category)
	}
}
