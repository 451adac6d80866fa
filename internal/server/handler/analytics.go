package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/service"
)

// AnalyticsService defines the methods the analytics handler requires.
type AnalyticsService interface {
	SnapshotPosition(ctx context.Context, id string) (domain.RiskSnapshot, error)
	ListSnapshots(ctx context.Context, positionID string, opts domain.ListOpts) ([]domain.RiskSnapshot, error)
	SystemMetrics(ctx context.Context) (service.SystemMetrics, error)
}

// AnalyticsHandler serves risk snapshot and system metrics endpoints.
type AnalyticsHandler struct {
	analytics AnalyticsService
	logger    *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(analytics AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logHandler(logger, "analytics"),
	}
}

// Snapshot handles POST /api/analytics/snapshots/{id}.
func (h *AnalyticsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	snap, err := h.analytics.SnapshotPosition(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSnapshotResponse(snap))
}

// listSnapshotsResponse wraps the snapshot list response.
type listSnapshotsResponse struct {
	Snapshots []snapshotResponse `json:"snapshots"`
}

// ListSnapshots handles GET /api/analytics/snapshots/{id}.
func (h *AnalyticsHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	snaps, err := h.analytics.ListSnapshots(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]snapshotResponse, len(snaps))
	for i, snap := range snaps {
		out[i] = toSnapshotResponse(snap)
	}
	writeJSON(w, http.StatusOK, listSnapshotsResponse{Snapshots: out})
}

// System handles GET /api/analytics/system.
func (h *AnalyticsHandler) System(w http.ResponseWriter, r *http.Request) {
	m, err := h.analytics.SystemMetrics(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "system metrics failed",
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSystemMetricsResponse(m))
}
