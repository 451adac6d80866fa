package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/cdpguard/internal/monitor"
)

// MonitorController defines the control surface the monitor handler needs.
type MonitorController interface {
	Start(ctx context.Context) error
	Stop() error
	Status() monitor.Status
}

// MonitorHandler serves the monitoring loop control endpoints.
type MonitorHandler struct {
	monitor MonitorController
	logger  *slog.Logger
}

// NewMonitorHandler creates a MonitorHandler.
func NewMonitorHandler(m MonitorController, logger *slog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor: m,
		logger:  logHandler(logger, "monitor"),
	}
}

// Start handles POST /api/monitor/start. Starting an already running
// monitor is a conflict.
func (h *MonitorHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Start(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonitorStatusResponse(h.monitor.Status()))
}

// Stop handles POST /api/monitor/stop. Stopping an idle monitor is a
// conflict.
func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Stop(); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonitorStatusResponse(h.monitor.Status()))
}

// Status handles GET /api/monitor/status.
func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toMonitorStatusResponse(h.monitor.Status()))
}
