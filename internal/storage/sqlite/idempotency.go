package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"workhours/internal/platform/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

type IdempotencyStore struct {
	db *sql.DB
}

// pendingStatus marks a claimed key whose handler has not finished.
const pendingStatus = 0

func (s *IdempotencyStore) Claim(ctx context.Context, actorID, endpoint, key, requestHash string) (idempotency.Response, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (actor_id, key, endpoint, request_hash, status_code, response_json, created_at)
		VALUES (?, ?, ?, ?, ?, '{}', ?)
		ON CONFLICT (actor_id, key, endpoint) DO NOTHING
	`, actorID, key, endpoint, requestHash, pendingStatus, formatTime(time.Now()))
	if err != nil {
		return idempotency.Response{}, false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return idempotency.Response{}, false, err
	} else if n == 1 {
		return idempotency.Response{}, false, nil
	}

	var storedHash string
	var body string
	var out idempotency.Response
	err = s.db.QueryRowContext(ctx, `
		SELECT request_hash, status_code, response_json
		FROM idempotency_keys
		WHERE actor_id = ? AND key = ? AND endpoint = ?
	`, actorID, key, endpoint).Scan(&storedHash, &out.Status, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return idempotency.Response{}, false, idempotency.ErrInProgress
	}
	if err != nil {
		return idempotency.Response{}, false, err
	}
	if storedHash != requestHash {
		return idempotency.Response{}, false, idempotency.ErrConflict
	}
	if out.Status == pendingStatus {
		return idempotency.Response{}, false, idempotency.ErrInProgress
	}
	out.Body = []byte(body)
	return out, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, actorID, endpoint, key, requestHash string, resp idempotency.Response) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (actor_id, key, endpoint, request_hash, status_code, response_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (actor_id, key, endpoint)
		DO UPDATE SET response_json = excluded.response_json, status_code = excluded.status_code
		WHERE idempotency_keys.request_hash = excluded.request_hash
	`, actorID, key, endpoint, requestHash, resp.Status, string(resp.Body), formatTime(time.Now()))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return idempotency.ErrConflict
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, actorID, endpoint, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		WHERE actor_id = ? AND key = ? AND endpoint = ? AND status_code = ?
	`, actorID, key, endpoint, pendingStatus)
	return err
}
