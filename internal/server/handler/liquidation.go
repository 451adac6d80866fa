package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// LiquidationService defines the methods the liquidation handler requires.
type LiquidationService interface {
	Simulate(ctx context.Context, id string) (domain.LiquidationResult, error)
	Execute(ctx context.Context, id string) (domain.LiquidationResult, error)
	ListRecent(ctx context.Context, limit int) ([]domain.LiquidationResult, error)
}

// LiquidationHandler serves liquidation simulate/execute endpoints.
type LiquidationHandler struct {
	liquidations LiquidationService
	logger       *slog.Logger
}

// NewLiquidationHandler creates a LiquidationHandler.
func NewLiquidationHandler(liquidations LiquidationService, logger *slog.Logger) *LiquidationHandler {
	return &LiquidationHandler{
		liquidations: liquidations,
		logger:       logHandler(logger, "liquidation"),
	}
}

// Simulate handles POST /api/liquidations/{id}/simulate.
func (h *LiquidationHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	res, err := h.liquidations.Simulate(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLiquidationResponse(res))
}

// Execute handles POST /api/liquidations/{id}/execute.
func (h *LiquidationHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	res, err := h.liquidations.Execute(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "execute liquidation failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLiquidationResponse(res))
}

// listLiquidationsResponse wraps the recent liquidations response.
type listLiquidationsResponse struct {
	Liquidations []liquidationResponse `json:"liquidations"`
}

// List handles GET /api/liquidations.
func (h *LiquidationHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	results, err := h.liquidations.ListRecent(r.Context(), opts.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listLiquidationsResponse{Liquidations: toLiquidationResponses(results)})
}
