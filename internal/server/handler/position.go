package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/service"
)

// PositionService defines the methods the position handler requires.
type PositionService interface {
	Create(ctx context.Context, in service.CreatePositionInput) (domain.Position, error)
	Get(ctx context.Context, id string) (domain.Position, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error)
	EvaluateHealth(ctx context.Context, id string) (domain.HealthAssessment, error)
}

// PositionHandler serves position CRUD and health endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logHandler(logger, "position"),
	}
}

// createPositionRequest is the request body for creating a position.
// Amounts accept JSON strings or numbers.
type createPositionRequest struct {
	ID               string          `json:"id"`
	OwnerAddress     string          `json:"owner_address"`
	CollateralSymbol string          `json:"collateral_symbol"`
	CollateralAmount decimal.Decimal `json:"collateral_amount"`
	DebtSymbol       string          `json:"debt_symbol"`
	DebtAmount       decimal.Decimal `json:"debt_amount"`
}

func (req createPositionRequest) toInput() service.CreatePositionInput {
	return service.CreatePositionInput{
		ID:               req.ID,
		OwnerAddress:     req.OwnerAddress,
		CollateralSymbol: req.CollateralSymbol,
		CollateralAmount: req.CollateralAmount,
		DebtSymbol:       req.DebtSymbol,
		DebtAmount:       req.DebtAmount,
	}
}

// Create handles POST /api/positions.
func (h *PositionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pos, err := h.positions.Create(r.Context(), req.toInput())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create position failed",
			slog.String("position_id", req.ID),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPositionResponse(pos))
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []positionResponse `json:"positions"`
}

// List handles GET /api/positions.
func (h *PositionHandler) List(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list positions failed",
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: toPositionResponses(positions)})
}

// Get handles GET /api/positions/{id}.
func (h *PositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	pos, err := h.positions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionResponse(pos))
}

// Health handles GET /api/positions/{id}/health.
func (h *PositionHandler) Health(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	assessment, err := h.positions.EvaluateHealth(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toHealthResponse(assessment))
}
