package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"workhours/internal/domain/auth"
	"workhours/internal/platform/jobs"
)

var (
	_ auth.UserStore = (*UserStore)(nil)
	_ jobs.RunStore  = (*JobRunStore)(nil)
	_ jobs.RunReader = (*JobRunStore)(nil)
)

type UserStore struct {
	db *sql.DB
}

func (s *UserStore) FindUser(ctx context.Context, username string) (auth.User, bool, error) {
	var out auth.User
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, COALESCE(employee_id, username), mfa_enabled, mfa_secret_enc
		FROM users
		WHERE username = ?
	`, username).Scan(&out.Username, &out.PasswordHash, &out.Role, &out.EmployeeID, &out.MFAEnabled, &out.MFASecret)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, fmt.Errorf("failed to get user: %w", err)
	}
	return out, true, nil
}

func (s *UserStore) CreateUser(ctx context.Context, user auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, employee_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.Username, user.PasswordHash, user.Role, user.EmployeeID, formatTime(time.Now()))
	if isUniqueViolation(err) {
		return auth.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *UserStore) SetMFA(ctx context.Context, username string, secret []byte, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET mfa_secret_enc = ?, mfa_enabled = ? WHERE username = ?",
		secret, enabled, username)
	if err != nil {
		return fmt.Errorf("failed to update mfa: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrMFANotSetUp
	}
	return nil
}

type JobRunStore struct {
	db *sql.DB
}

func (s *JobRunStore) Start(ctx context.Context, jobType string) (string, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO job_runs (job_type, status, started_at) VALUES (?, ?, ?)",
		jobType, jobs.StatusRunning, formatTime(time.Now()))
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *JobRunStore) Finish(ctx context.Context, id, status string, details []byte) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE job_runs SET status = ?, details = ?, finished_at = ? WHERE id = ?",
		status, string(details), formatTime(time.Now()), id)
	return err
}

func (s *JobRunStore) CountRuns(ctx context.Context, filter jobs.RunFilter) (int, error) {
	query, args := jobRunQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *JobRunStore) ListRuns(ctx context.Context, filter jobs.RunFilter, limit, offset int) ([]jobs.Run, error) {
	query, args := jobRunQuery(jobRunColumns, filter)
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []jobs.Run
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *JobRunStore) RunByID(ctx context.Context, id string) (jobs.Run, error) {
	run, err := scanJobRun(s.db.QueryRowContext(ctx, jobRunColumns+" FROM job_runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Run{}, jobs.ErrRunNotFound
	}
	return run, err
}

const jobRunColumns = "SELECT id, job_type, status, details, started_at, finished_at"

func jobRunQuery(prefix string, filter jobs.RunFilter) (string, []any) {
	query := prefix + " FROM job_runs WHERE 1=1"
	var args []any
	if value := strings.TrimSpace(filter.JobType); value != "" {
		query += " AND job_type = ?"
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND status = ?"
		args = append(args, value)
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		query += " AND julianday(started_at) >= julianday(?)"
		args = append(args, formatTime(*filter.StartedFrom))
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		query += " AND julianday(started_at) <= julianday(?)"
		args = append(args, formatTime(*filter.StartedTo))
	}
	return query, args
}

func scanJobRun(row scanner) (jobs.Run, error) {
	var (
		id        int64
		run       jobs.Run
		details   sql.NullString
		startedAt string
		finished  sql.NullString
	)
	if err := row.Scan(&id, &run.JobType, &run.Status, &details, &startedAt, &finished); err != nil {
		return jobs.Run{}, err
	}
	run.ID = strconv.FormatInt(id, 10)
	run.Details = jobs.DecodeDetails([]byte(details.String))
	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return jobs.Run{}, fmt.Errorf("job run %d: %w", id, err)
	}
	if run.CompletedAt, err = parseNullTime(finished); err != nil {
		return jobs.Run{}, fmt.Errorf("job run %d: %w", id, err)
	}
	return run, nil
}
