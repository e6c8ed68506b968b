package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"

	"workhours/internal/platform/querier"
)

var (
	ErrConflict   = errors.New("idempotency key conflicts with existing request")
	ErrInProgress = errors.New("idempotency key is still being processed")
)

// Response is the stored outcome replayed for a repeated key.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Store remembers responses per (actor, endpoint, key).
//
// Claim reserves an unused key and returns found=false; the caller must then
// Save or Release it. A key that already holds a response returns it with
// found=true. A key held by a request still running reports ErrInProgress,
// and a key used with a different request body reports ErrConflict.
type Store interface {
	Claim(ctx context.Context, actorID, endpoint, key, requestHash string) (Response, bool, error)
	Save(ctx context.Context, actorID, endpoint, key, requestHash string, resp Response) error
	Release(ctx context.Context, actorID, endpoint, key string) error
}

// pendingStatus marks a claimed key whose response is not known yet.
const pendingStatus = 0

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type PGStore struct {
	db querier.Querier
}

func NewPGStore(db querier.Querier) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Claim(ctx context.Context, actorID, endpoint, key, requestHash string) (Response, bool, error) {
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (actor_id, key, endpoint, request_hash, status_code, response_json)
    VALUES ($1, $2, $3, $4, $5, '{}')
    ON CONFLICT (actor_id, key, endpoint) DO NOTHING
  `, actorID, key, endpoint, requestHash, pendingStatus)
	if err != nil {
		return Response{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return Response{}, false, nil
	}

	var storedHash string
	var out Response
	err = s.db.QueryRow(ctx, `
    SELECT request_hash, status_code, response_json
    FROM idempotency_keys
    WHERE actor_id = $1 AND key = $2 AND endpoint = $3
  `, actorID, key, endpoint).Scan(&storedHash, &out.Status, &out.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		// released between the insert and the read
		return Response{}, false, ErrInProgress
	}
	if err != nil {
		return Response{}, false, err
	}
	return settle(storedHash, requestHash, out)
}

func (s *PGStore) Save(ctx context.Context, actorID, endpoint, key, requestHash string, resp Response) error {
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (actor_id, key, endpoint, request_hash, status_code, response_json)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (actor_id, key, endpoint)
    DO UPDATE SET response_json = EXCLUDED.response_json, status_code = EXCLUDED.status_code
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
  `, actorID, key, endpoint, requestHash, resp.Status, resp.Body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PGStore) Release(ctx context.Context, actorID, endpoint, key string) error {
	_, err := s.db.Exec(ctx, `
    DELETE FROM idempotency_keys
    WHERE actor_id = $1 AND key = $2 AND endpoint = $3 AND status_code = $4
  `, actorID, key, endpoint, pendingStatus)
	return err
}

func settle(storedHash, requestHash string, stored Response) (Response, bool, error) {
	if storedHash != requestHash {
		return Response{}, false, ErrConflict
	}
	if stored.Status == pendingStatus {
		return Response{}, false, ErrInProgress
	}
	return stored, true, nil
}

// Memory is a process-local Store for tests and single-node development.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	hash string
	resp Response
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]memoryEntry{}}
}

func memoryID(actorID, endpoint, key string) string {
	return actorID + "\x00" + endpoint + "\x00" + key
}

func (m *Memory) Claim(_ context.Context, actorID, endpoint, key, requestHash string) (Response, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := memoryID(actorID, endpoint, key)
	entry, ok := m.entries[id]
	if !ok {
		m.entries[id] = memoryEntry{hash: requestHash, resp: Response{Status: pendingStatus}}
		return Response{}, false, nil
	}
	return settle(entry.hash, requestHash, entry.resp)
}

func (m *Memory) Save(_ context.Context, actorID, endpoint, key, requestHash string, resp Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := memoryID(actorID, endpoint, key)
	if entry, ok := m.entries[id]; ok && entry.hash != requestHash {
		return ErrConflict
	}
	m.entries[id] = memoryEntry{hash: requestHash, resp: resp}
	return nil
}

func (m *Memory) Release(_ context.Context, actorID, endpoint, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := memoryID(actorID, endpoint, key)
	if entry, ok := m.entries[id]; ok && entry.resp.Status == pendingStatus {
		delete(m.entries, id)
	}
	return nil
}
