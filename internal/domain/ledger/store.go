package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"workhours/internal/platform/clock"
	"workhours/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const selectRecord = `
    SELECT w.id, w.employee_id,
           COALESCE(NULLIF(e.full_name, ''), e.name, w.employee_id),
           w.date, COALESCE(w.projects, ''), w.hours_worked,
           COALESCE(w.description, ''), COALESCE(w.signature, ''),
           w.version, w.created_at, w.updated_at
    FROM work_hours w
    LEFT JOIN employees e ON e.id = w.employee_id`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var projects string
	if err := row.Scan(&rec.ID, &rec.EmployeeID, &rec.EmployeeName, &rec.Date, &projects, &rec.HoursWorked,
		&rec.Description, &rec.Signature, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Date = clock.DateOnly(rec.Date)
	rec.Projects = DecodeStored(rec.ID, []byte(projects))
	return rec, nil
}

func (s *Store) findOne(ctx context.Context, where string, args ...any) (Record, bool, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, selectRecord+" WHERE "+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *Store) FindByEmployeeDate(ctx context.Context, employeeID string, date time.Time) (Record, bool, error) {
	return s.findOne(ctx, "w.employee_id = $1 AND w.date = $2", employeeID, clock.DateOnly(date))
}

func (s *Store) FindByID(ctx context.Context, id int64) (Record, bool, error) {
	return s.findOne(ctx, "w.id = $1", id)
}

func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	var signature *string
	if rec.Signature != "" {
		signature = &rec.Signature
	}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO work_hours (employee_id, date, projects, hours_worked, description, signature)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id, version, created_at, updated_at
  `, rec.EmployeeID, clock.DateOnly(rec.Date), string(EncodeProjects(rec.Projects)), rec.HoursWorked, rec.Description, signature,
	).Scan(&rec.ID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Record{}, ErrConflict
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, rec Record) (Record, error) {
	err := s.DB.QueryRow(ctx, `
    UPDATE work_hours
    SET projects = $1, hours_worked = $2, description = $3, version = version + 1, updated_at = now()
    WHERE id = $4 AND version = $5
    RETURNING version, updated_at
  `, string(EncodeProjects(rec.Projects)), rec.HoursWorked, rec.Description, rec.ID, rec.Version,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrConflict
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM work_hours WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteVersion(ctx context.Context, id int64, version int) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM work_hours WHERE id = $1 AND version = $2", id, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM work_hours")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]Record, error) {
	return s.list(ctx, selectRecord+`
    WHERE w.employee_id = $1
    ORDER BY w.date DESC, w.id DESC
    LIMIT $2 OFFSET $3`, employeeID, limit, offset)
}

func (s *Store) CountByEmployee(ctx context.Context, employeeID string) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM work_hours WHERE employee_id = $1", employeeID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	return s.list(ctx, selectRecord+" ORDER BY w.employee_id ASC, w.date DESC, w.id DESC")
}

func (s *Store) ListBetween(ctx context.Context, start, end time.Time) ([]Record, error) {
	return s.list(ctx, selectRecord+`
    WHERE w.date BETWEEN $1 AND $2
    ORDER BY w.employee_id ASC, w.date ASC, w.id ASC`, clock.DateOnly(start), clock.DateOnly(end))
}

func (s *Store) ListRaw(ctx context.Context) ([]RawRecord, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, COALESCE(projects, ''), hours_worked, COALESCE(description, '') FROM work_hours ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawRecord
	for rows.Next() {
		var raw RawRecord
		var projects string
		if err := rows.Scan(&raw.ID, &projects, &raw.HoursWorked, &raw.Description); err != nil {
			return nil, err
		}
		raw.Projects = []byte(projects)
		out = append(out, raw)
	}
	return out, rows.Err()
}

func (s *Store) RewriteProjects(ctx context.Context, id int64, projects []byte, hours float64, description string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE work_hours
    SET projects = $1, hours_worked = $2, description = $3, version = version + 1, updated_at = now()
    WHERE id = $4
  `, string(projects), hours, description, id)
	return err
}
