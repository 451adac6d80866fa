package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/cdpguard/internal/service"
)

// BatchPositionService defines the batch-create surface the handler needs.
type BatchPositionService interface {
	BatchCreate(ctx context.Context, inputs []service.CreatePositionInput) ([]service.BatchCreateItem, error)
}

// BatchLiquidationService defines the batch simulate/execute surface the
// handler needs.
type BatchLiquidationService interface {
	BatchSimulate(ctx context.Context, ids []string) ([]service.BatchLiquidationItem, error)
	BatchExecute(ctx context.Context, ids []string) ([]service.BatchLiquidationItem, error)
}

// BatchHandler serves the batch endpoints. Every batch response preserves
// input order and count, reporting per-item errors inline.
type BatchHandler struct {
	positions    BatchPositionService
	liquidations BatchLiquidationService
	logger       *slog.Logger
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(positions BatchPositionService, liquidations BatchLiquidationService, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		positions:    positions,
		liquidations: liquidations,
		logger:       logHandler(logger, "batch"),
	}
}

type batchCreateRequest struct {
	Positions []createPositionRequest `json:"positions"`
}

type batchResponse struct {
	Items []batchItemResponse `json:"items"`
}

// CreatePositions handles POST /api/batch/positions.
func (h *BatchHandler) CreatePositions(w http.ResponseWriter, r *http.Request) {
	var req batchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inputs := make([]service.CreatePositionInput, len(req.Positions))
	for i, p := range req.Positions {
		inputs[i] = p.toInput()
	}

	items, err := h.positions.BatchCreate(r.Context(), inputs)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]batchItemResponse, len(items))
	for i, item := range items {
		out[i] = batchItemResponse{Index: item.Index, PositionID: item.PositionID}
		if item.Err != nil {
			out[i].Error = item.Err.Error()
			continue
		}
		resp := toPositionResponse(*item.Position)
		out[i].Position = &resp
	}
	writeJSON(w, http.StatusOK, batchResponse{Items: out})
}

type batchIDsRequest struct {
	PositionIDs []string `json:"position_ids"`
}

// Simulate handles POST /api/batch/simulate.
func (h *BatchHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	h.runLiquidationBatch(w, r, h.liquidations.BatchSimulate)
}

// Execute handles POST /api/batch/execute.
func (h *BatchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	h.runLiquidationBatch(w, r, h.liquidations.BatchExecute)
}

func (h *BatchHandler) runLiquidationBatch(
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context, []string) ([]service.BatchLiquidationItem, error),
) {
	var req batchIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := run(r.Context(), req.PositionIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]batchItemResponse, len(items))
	for i, item := range items {
		out[i] = batchItemResponse{Index: item.Index, PositionID: item.PositionID}
		if item.Err != nil {
			out[i].Error = item.Err.Error()
			continue
		}
		resp := toLiquidationResponse(*item.Result)
		out[i].Liquidation = &resp
	}
	writeJSON(w, http.StatusOK, batchResponse{Items: out})
}
