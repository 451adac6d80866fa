package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint, including reachability of
// the store and cache.
type HealthHandler struct {
	store  Pinger
	cache  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. store and cache may be nil;
// their checks are then skipped.
func NewHealthHandler(store, cache Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		cache:  cache,
		logger: logHandler(logger, "health"),
	}
}

// HealthCheck handles GET /healthz. Dependency failures degrade the
// response to 503 with per-dependency detail.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "store ping failed", slog.String("error", err.Error()))
			deps["store"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			deps["store"] = "ok"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "cache ping failed", slog.String("error", err.Error()))
			deps["cache"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			deps["cache"] = "ok"
		}
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	writeJSON(w, status, body)
}
