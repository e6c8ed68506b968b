package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"workhours/internal/domain/audit"
	"workhours/internal/requestctx"
)

var _ audit.Recorder = (*AuditStore)(nil)

type AuditStore struct {
	db *sql.DB
}

func (s *AuditStore) Record(ctx context.Context, entry audit.Entry) error {
	before, err := optionalJSON(entry.Before)
	if err != nil {
		return err
	}
	after, err := optionalJSON(entry.After)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (actor_id, action, entity_type, entity_id, before_json, after_json, request_id, ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, before, after,
		requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx), formatTime(time.Now()))
	return err
}

func (s *AuditStore) Count(ctx context.Context, filter audit.Filter) (int, error) {
	query, args := auditQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *AuditStore) List(ctx context.Context, filter audit.Filter, limit, offset int) ([]audit.Event, error) {
	query, args := auditQuery(`SELECT id, actor_id, action, entity_type, entity_id,
		COALESCE(request_id, ''), COALESCE(ip, ''), created_at, before_json, after_json`, filter)
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var evt audit.Event
		var createdAt string
		var before, after sql.NullString
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &createdAt, &before, &after); err != nil {
			return nil, err
		}
		if evt.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("audit event %d: %w", evt.ID, err)
		}
		if before.Valid {
			evt.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			evt.After = json.RawMessage(after.String)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func auditQuery(prefix string, filter audit.Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE 1=1"
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += " AND " + column + " = ?"
	}
	add("action", filter.Action)
	add("entity_type", filter.EntityType)
	add("entity_id", filter.EntityID)
	add("actor_id", filter.ActorID)
	return query, args
}

func optionalJSON(value any) (sql.NullString, error) {
	if value == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}
