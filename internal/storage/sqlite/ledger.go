package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"workhours/internal/domain/ledger"
	"workhours/internal/platform/clock"
)

var _ ledger.StoreAPI = (*LedgerStore)(nil)

type LedgerStore struct {
	db *sql.DB
}

const selectRecord = `
    SELECT w.id, w.employee_id,
           COALESCE(NULLIF(e.full_name, ''), e.name, w.employee_id),
           w.date, COALESCE(w.projects, ''), w.hours_worked,
           COALESCE(w.description, ''), COALESCE(w.signature, ''),
           w.version, w.created_at, w.updated_at
    FROM work_hours w
    LEFT JOIN employees e ON e.id = w.employee_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (ledger.Record, error) {
	var rec ledger.Record
	var date, projects, created, updated string
	if err := row.Scan(&rec.ID, &rec.EmployeeID, &rec.EmployeeName, &date, &projects, &rec.HoursWorked,
		&rec.Description, &rec.Signature, &rec.Version, &created, &updated); err != nil {
		return ledger.Record{}, err
	}
	var err error
	if rec.Date, err = time.Parse(dateLayout, date); err != nil {
		return ledger.Record{}, fmt.Errorf("record %d: bad date %q: %w", rec.ID, date, err)
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return ledger.Record{}, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return ledger.Record{}, err
	}
	rec.Projects = ledger.DecodeStored(rec.ID, []byte(projects))
	return rec, nil
}

func (s *LedgerStore) findOne(ctx context.Context, where string, args ...any) (ledger.Record, bool, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord+" WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, false, nil
	}
	if err != nil {
		return ledger.Record{}, false, err
	}
	return rec, true, nil
}

func (s *LedgerStore) FindByEmployeeDate(ctx context.Context, employeeID string, date time.Time) (ledger.Record, bool, error) {
	return s.findOne(ctx, "w.employee_id = ? AND w.date = ?", employeeID, clock.DateOnly(date).Format(dateLayout))
}

func (s *LedgerStore) FindByID(ctx context.Context, id int64) (ledger.Record, bool, error) {
	return s.findOne(ctx, "w.id = ?", id)
}

func (s *LedgerStore) Create(ctx context.Context, rec ledger.Record) (ledger.Record, error) {
	now := time.Now().UTC()
	var signature any
	if rec.Signature != "" {
		signature = rec.Signature
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO work_hours (employee_id, date, projects, hours_worked, description, signature, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, rec.EmployeeID, clock.DateOnly(rec.Date).Format(dateLayout), string(ledger.EncodeProjects(rec.Projects)),
		rec.HoursWorked, rec.Description, signature, formatTime(now), formatTime(now))
	if isUniqueViolation(err) {
		return ledger.Record{}, ledger.ErrConflict
	}
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to insert work hours: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return ledger.Record{}, err
	}
	rec.Date = clock.DateOnly(rec.Date)
	rec.Version = 1
	rec.CreatedAt, rec.UpdatedAt = now, now
	return rec, nil
}

func (s *LedgerStore) Update(ctx context.Context, rec ledger.Record) (ledger.Record, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_hours
		SET projects = ?, hours_worked = ?, description = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(ledger.EncodeProjects(rec.Projects)), rec.HoursWorked, rec.Description, formatTime(now), rec.ID, rec.Version)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to update work hours: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Record{}, err
	}
	if n == 0 {
		return ledger.Record{}, ledger.ErrConflict
	}
	rec.Version++
	rec.UpdatedAt = now
	return rec, nil
}

func (s *LedgerStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM work_hours WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *LedgerStore) DeleteVersion(ctx context.Context, id int64, version int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM work_hours WHERE id = ? AND version = ?", id, version)
	if err != nil {
		return fmt.Errorf("failed to delete work hours: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrConflict
	}
	return nil
}

func (s *LedgerStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM work_hours")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *LedgerStore) list(ctx context.Context, query string, args ...any) ([]ledger.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *LedgerStore) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]ledger.Record, error) {
	return s.list(ctx, selectRecord+`
    WHERE w.employee_id = ?
    ORDER BY w.date DESC, w.id DESC
    LIMIT ? OFFSET ?`, employeeID, limit, offset)
}

func (s *LedgerStore) CountByEmployee(ctx context.Context, employeeID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM work_hours WHERE employee_id = ?", employeeID).Scan(&total)
	return total, err
}

func (s *LedgerStore) ListAll(ctx context.Context) ([]ledger.Record, error) {
	return s.list(ctx, selectRecord+" ORDER BY w.employee_id ASC, w.date DESC, w.id DESC")
}

func (s *LedgerStore) ListBetween(ctx context.Context, start, end time.Time) ([]ledger.Record, error) {
	return s.list(ctx, selectRecord+`
    WHERE w.date BETWEEN ? AND ?
    ORDER BY w.employee_id ASC, w.date ASC, w.id ASC`,
		clock.DateOnly(start).Format(dateLayout), clock.DateOnly(end).Format(dateLayout))
}

func (s *LedgerStore) ListRaw(ctx context.Context) ([]ledger.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, COALESCE(projects, ''), hours_worked, COALESCE(description, '') FROM work_hours ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.RawRecord
	for rows.Next() {
		var raw ledger.RawRecord
		var projects string
		if err := rows.Scan(&raw.ID, &projects, &raw.HoursWorked, &raw.Description); err != nil {
			return nil, err
		}
		raw.Projects = []byte(projects)
		out = append(out, raw)
	}
	return out, rows.Err()
}

func (s *LedgerStore) RewriteProjects(ctx context.Context, id int64, projects []byte, hours float64, description string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE work_hours
		SET projects = ?, hours_worked = ?, description = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, string(projects), hours, description, formatTime(time.Now()), id)
	return err
}

// InsertRaw stores a row with a projects value exactly as given. It exists for
// importing rows from the old system, whose encodings vary.
func (s *LedgerStore) InsertRaw(ctx context.Context, employeeID string, date time.Time, projects string, hours float64, description string) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO work_hours (employee_id, date, projects, hours_worked, description, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`, employeeID, clock.DateOnly(date).Format(dateLayout), projects, hours, description, now, now)
	if isUniqueViolation(err) {
		return 0, ledger.ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
