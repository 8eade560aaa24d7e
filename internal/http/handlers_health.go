package http

import (
	"context"
	"net/http"
	"time"

	"budgetly/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	if s.store == nil {
		checks["store"] = "not configured"
	} else if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
		s.logger.WarnContext(ctx, "Readiness check failed", "check", "store", log.FieldError, err)
	} else {
		checks["store"] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}
