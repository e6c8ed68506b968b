package ledger

import (
	"context"
	"time"
)

// RawRecord is a stored row before its projects value is decoded.
type RawRecord struct {
	ID          int64
	Projects    []byte
	HoursWorked float64
	Description string
}

// StoreAPI persists ledger records. Update and DeleteVersion are conditional
// on the version read and report ErrConflict when the row changed since;
// Create reports ErrConflict when a record for the same employee and date
// exists.
type StoreAPI interface {
	FindByEmployeeDate(ctx context.Context, employeeID string, date time.Time) (Record, bool, error)
	FindByID(ctx context.Context, id int64) (Record, bool, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteVersion(ctx context.Context, id int64, version int) error
	DeleteAll(ctx context.Context) (int64, error)
	ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]Record, error)
	CountByEmployee(ctx context.Context, employeeID string) (int, error)
	ListAll(ctx context.Context) ([]Record, error)
	ListBetween(ctx context.Context, start, end time.Time) ([]Record, error)
	ListRaw(ctx context.Context) ([]RawRecord, error)
	RewriteProjects(ctx context.Context, id int64, projects []byte, hours float64, description string) error
}

type EmployeeDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
	TouchLastLogged(ctx context.Context, id string, at time.Time) error
}
