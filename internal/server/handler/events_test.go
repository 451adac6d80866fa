package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

type stubIndexer struct {
	indexFn func(context.Context, uint64, uint64) (int, error)
	listFn  func(context.Context, domain.ListOpts) ([]domain.ChainEvent, error)
	maxFn   func(context.Context) (uint64, error)
}

func (s *stubIndexer) IndexRange(ctx context.Context, from, to uint64) (int, error) {
	return s.indexFn(ctx, from, to)
}

func (s *stubIndexer) ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.ChainEvent, error) {
	return s.listFn(ctx, opts)
}

func (s *stubIndexer) MaxIndexedBlock(ctx context.Context) (uint64, error) {
	return s.maxFn(ctx)
}

func newEventsMux(svc *stubIndexer) *http.ServeMux {
	h := NewEventsHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events/index", h.Index)
	mux.HandleFunc("GET /api/events", h.List)
	return mux
}

func TestEventsHandlerIndexRange(t *testing.T) {
	var gotFrom, gotTo uint64
	svc := &stubIndexer{
		indexFn: func(_ context.Context, from, to uint64) (int, error) {
			gotFrom, gotTo = from, to
			return int(to - from + 1), nil
		},
	}
	mux := newEventsMux(svc)

	body := `{"from_block": 100, "to_block": 104}`
	req := httptest.NewRequest(http.MethodPost, "/api/events/index", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if gotFrom != 100 || gotTo != 104 {
		t.Errorf("range = [%d, %d], want [100, 104]", gotFrom, gotTo)
	}
	var resp indexRangeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BlocksIndexed != 5 {
		t.Errorf("blocks_indexed = %d, want 5", resp.BlocksIndexed)
	}
}

func TestEventsHandlerIndexInvalidRange(t *testing.T) {
	svc := &stubIndexer{
		indexFn: func(context.Context, uint64, uint64) (int, error) {
			return 0, domain.ErrValidation
		},
	}
	mux := newEventsMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/events/index", strings.NewReader(`{"from_block": 9, "to_block": 1}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEventsHandlerListReportsMaxBlock(t *testing.T) {
	svc := &stubIndexer{
		listFn: func(context.Context, domain.ListOpts) ([]domain.ChainEvent, error) {
			return []domain.ChainEvent{
				{ID: 1, BlockNumber: 103, TxHash: "0xabc", Kind: "block.indexed", CreatedAt: time.Now().UTC()},
				{ID: 2, BlockNumber: 104, TxHash: "0xdef", Kind: "block.indexed", CreatedAt: time.Now().UTC()},
			}, nil
		},
		maxFn: func(context.Context) (uint64, error) { return 104, nil },
	}
	mux := newEventsMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp listEventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Errorf("got %d events, want 2", len(resp.Events))
	}
	if resp.MaxBlock != 104 {
		t.Errorf("max_block = %d, want 104", resp.MaxBlock)
	}
}

func TestEventsHandlerListEmpty(t *testing.T) {
	svc := &stubIndexer{
		listFn: func(context.Context, domain.ListOpts) ([]domain.ChainEvent, error) {
			return nil, nil
		},
		maxFn: func(context.Context) (uint64, error) { return 0, nil },
	}
	mux := newEventsMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp listEventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MaxBlock != 0 || len(resp.Events) != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
}
