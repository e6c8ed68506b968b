package middleware

import (
	"context"
	"net/http"
	"strings"

	"workhours/internal/domain/auth"
	"workhours/internal/domain/ledger"
)

// SessionCookie carries the same JWT as the Authorization header for the
// browser client.
const SessionCookie = "session"

type ctxKey string

const ctxKeyUser ctxKey = "user"

// Auth attaches the identity from a valid bearer token or session cookie.
// Requests without one pass through anonymous; RequireAuth rejects them.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie(SessionCookie); err == nil {
					token = cookie.Value
				}
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUser(r.Context(), auth.UserContext{
				Username:   claims.Username,
				EmployeeID: claims.EmployeeID,
				Role:       claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// Actor is the ledger view of the request identity; anonymous requests get
// the zero Actor, which no policy check accepts.
func Actor(ctx context.Context) ledger.Actor {
	user, ok := GetUser(ctx)
	if !ok {
		return ledger.Actor{}
	}
	return ledger.ActorFrom(user)
}
