package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"workhours/internal/platform/idempotency"
	"workhours/internal/transport/http/api"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// Idempotent replays the stored response when a request repeats an
// Idempotency-Key with the same body, and rejects a reused key with a
// different body. The key is claimed before the handler runs, so a repeat
// arriving while the first is in flight gets 409. Requests without the
// header, or without an identity, pass through. Only successful responses are
// remembered; anything else releases the key.
func Idempotent(store idempotency.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			user, ok := GetUser(r.Context())
			if store == nil || key == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}
			reqID := GetRequestID(r.Context())
			if len(key) > 200 {
				api.Fail(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key is too long", reqID)
				return
			}

			raw, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_body", "unable to read request body", reqID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			endpoint := r.Method + " " + normalizedAPIPath(r.URL.Path)
			hash := idempotency.RequestHash(raw)
			stored, found, err := store.Claim(r.Context(), user.Username, endpoint, key, hash)
			if errors.Is(err, idempotency.ErrConflict) {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", reqID)
				return
			}
			if errors.Is(err, idempotency.ErrInProgress) {
				api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is still running", reqID)
				return
			}
			if err != nil {
				slog.Error("idempotency lookup failed", "err", err, "requestId", reqID)
				api.Fail(w, http.StatusInternalServerError, "internal_error", "internal error", reqID)
				return
			}
			if found {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replay", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			saved := false
			defer func() {
				if saved {
					return
				}
				if err := store.Release(context.WithoutCancel(r.Context()), user.Username, endpoint, key); err != nil {
					slog.Warn("idempotency release failed", "err", err, "requestId", reqID)
				}
			}()

			capture := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			if capture.status < 200 || capture.status >= 300 {
				return
			}
			resp := idempotency.Response{Status: capture.status, Body: capture.body.Bytes()}
			if err := store.Save(r.Context(), user.Username, endpoint, key, hash, resp); err != nil {
				slog.Warn("idempotency save failed", "err", err, "requestId", reqID)
				return
			}
			saved = true
		})
	}
}
