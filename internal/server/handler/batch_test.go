package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/service"
)

type stubBatchService struct {
	createFn   func(context.Context, []service.CreatePositionInput) ([]service.BatchCreateItem, error)
	simulateFn func(context.Context, []string) ([]service.BatchLiquidationItem, error)
	executeFn  func(context.Context, []string) ([]service.BatchLiquidationItem, error)
}

func (s *stubBatchService) BatchCreate(ctx context.Context, inputs []service.CreatePositionInput) ([]service.BatchCreateItem, error) {
	return s.createFn(ctx, inputs)
}

func (s *stubBatchService) BatchSimulate(ctx context.Context, ids []string) ([]service.BatchLiquidationItem, error) {
	return s.simulateFn(ctx, ids)
}

func (s *stubBatchService) BatchExecute(ctx context.Context, ids []string) ([]service.BatchLiquidationItem, error) {
	return s.executeFn(ctx, ids)
}

func newBatchMux(svc *stubBatchService) *http.ServeMux {
	h := NewBatchHandler(svc, svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/batch/positions", h.CreatePositions)
	mux.HandleFunc("POST /api/batch/simulate", h.Simulate)
	mux.HandleFunc("POST /api/batch/execute", h.Execute)
	return mux
}

func TestBatchHandlerSimulateMixedResults(t *testing.T) {
	svc := &stubBatchService{
		simulateFn: func(_ context.Context, ids []string) ([]service.BatchLiquidationItem, error) {
			items := make([]service.BatchLiquidationItem, len(ids))
			for i, id := range ids {
				items[i] = service.BatchLiquidationItem{Index: i, PositionID: id}
				if id == "missing" {
					items[i].Err = domain.ErrNotFound
					continue
				}
				res := sampleResult(id, domain.LiquidationStatusLiquidated)
				items[i].Result = &res
			}
			return items, nil
		},
	}
	mux := newBatchMux(svc)

	body := `{"position_ids": ["pos-1", "missing", "pos-3"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/batch/simulate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(resp.Items))
	}
	for i, item := range resp.Items {
		if item.Index != i {
			t.Errorf("item %d has index %d", i, item.Index)
		}
	}
	if resp.Items[0].Liquidation == nil || resp.Items[0].Error != "" {
		t.Errorf("item 0 should carry a result: %+v", resp.Items[0])
	}
	if resp.Items[1].Error == "" || resp.Items[1].Liquidation != nil {
		t.Errorf("item 1 should carry an error: %+v", resp.Items[1])
	}
}

func TestBatchHandlerOverLimit(t *testing.T) {
	svc := &stubBatchService{
		executeFn: func(context.Context, []string) ([]service.BatchLiquidationItem, error) {
			return nil, domain.ErrValidation
		},
	}
	mux := newBatchMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/batch/execute", strings.NewReader(`{"position_ids": ["a"]}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBatchHandlerCreatePositions(t *testing.T) {
	svc := &stubBatchService{
		createFn: func(_ context.Context, inputs []service.CreatePositionInput) ([]service.BatchCreateItem, error) {
			items := make([]service.BatchCreateItem, len(inputs))
			for i, in := range inputs {
				pos := samplePosition(in.ID)
				items[i] = service.BatchCreateItem{Index: i, PositionID: in.ID, Position: &pos}
			}
			return items, nil
		},
	}
	mux := newBatchMux(svc)

	body := `{"positions": [
		{"id": "b-1", "owner_address": "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		 "collateral_symbol": "ETH", "collateral_amount": "10",
		 "debt_symbol": "USDC", "debt_amount": "17000"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/batch/positions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Position == nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}
