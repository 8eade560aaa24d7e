package http

import (
	"context"
	"net/http"

	"budgetly/internal/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// requireAuth rejects requests without a valid bearer token and stores the
// token's user ID in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			UnauthorizedError(msgUnauthorized).Write(w)
			return
		}
		userID, err := s.tokens.Parse(raw)
		if err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Token rejected", log.FieldError, err)
			UnauthorizedError("token is not valid").Write(w)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user of the request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// mustUserID is for handlers behind requireAuth.
func mustUserID(r *http.Request) int64 {
	id, _ := UserID(r.Context())
	return id
}
