package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// IndexerService defines the methods the events handler requires.
type IndexerService interface {
	IndexRange(ctx context.Context, from, to uint64) (int, error)
	ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.ChainEvent, error)
	MaxIndexedBlock(ctx context.Context) (uint64, error)
}

// EventsHandler serves the simulated chain-event indexer endpoints.
type EventsHandler struct {
	indexer IndexerService
	logger  *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(indexer IndexerService, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		indexer: indexer,
		logger:  logHandler(logger, "events"),
	}
}

type indexRangeRequest struct {
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`
}

type indexRangeResponse struct {
	FromBlock     uint64 `json:"from_block"`
	ToBlock       uint64 `json:"to_block"`
	BlocksIndexed int    `json:"blocks_indexed"`
}

// Index handles POST /api/events/index.
func (h *EventsHandler) Index(w http.ResponseWriter, r *http.Request) {
	var req indexRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.indexer.IndexRange(r.Context(), req.FromBlock, req.ToBlock)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, indexRangeResponse{
		FromBlock:     req.FromBlock,
		ToBlock:       req.ToBlock,
		BlocksIndexed: n,
	})
}

// listEventsResponse wraps the event list response. MaxBlock is the highest
// block number indexed so far, 0 when nothing has been indexed yet.
type listEventsResponse struct {
	Events   []chainEventResponse `json:"events"`
	MaxBlock uint64               `json:"max_block"`
}

// List handles GET /api/events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.indexer.ListEvents(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	maxBlock, err := h.indexer.MaxIndexedBlock(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]chainEventResponse, len(events))
	for i, ev := range events {
		out[i] = toChainEventResponse(ev)
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Events: out, MaxBlock: maxBlock})
}
