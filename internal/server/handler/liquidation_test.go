package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

type stubLiquidationService struct {
	simulateFn func(context.Context, string) (domain.LiquidationResult, error)
	executeFn  func(context.Context, string) (domain.LiquidationResult, error)
	listFn     func(context.Context, int) ([]domain.LiquidationResult, error)
}

func (s *stubLiquidationService) Simulate(ctx context.Context, id string) (domain.LiquidationResult, error) {
	return s.simulateFn(ctx, id)
}

func (s *stubLiquidationService) Execute(ctx context.Context, id string) (domain.LiquidationResult, error) {
	return s.executeFn(ctx, id)
}

func (s *stubLiquidationService) ListRecent(ctx context.Context, limit int) ([]domain.LiquidationResult, error) {
	return s.listFn(ctx, limit)
}

func sampleResult(id string, status domain.LiquidationStatus) domain.LiquidationResult {
	return domain.LiquidationResult{
		PositionID:       id,
		CollateralSeized: decimal.RequireFromString("8.925"),
		DebtRepaid:       decimal.NewFromInt(17000),
		Bonus:            decimal.RequireFromString("0.425"),
		CollateralPrice:  decimal.NewFromInt(2000),
		DebtPrice:        decimal.NewFromInt(1),
		HealthFactor:     decimal.RequireFromString("0.97058824"),
		Status:           status,
		TxHash:           "0xabc",
		ExecutedAt:       time.Now().UTC(),
	}
}

func newLiquidationMux(svc LiquidationService) *http.ServeMux {
	h := NewLiquidationHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/liquidations/{id}/simulate", h.Simulate)
	mux.HandleFunc("POST /api/liquidations/{id}/execute", h.Execute)
	mux.HandleFunc("GET /api/liquidations", h.List)
	return mux
}

func TestLiquidationHandlerSimulate(t *testing.T) {
	svc := &stubLiquidationService{
		simulateFn: func(_ context.Context, id string) (domain.LiquidationResult, error) {
			return sampleResult(id, domain.LiquidationStatusLiquidated), nil
		},
	}
	mux := newLiquidationMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/liquidations/pos-1/simulate", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp liquidationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CollateralSeized != "8.925" || resp.Status != "liquidated" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestLiquidationHandlerExecuteNotLiquidatable(t *testing.T) {
	svc := &stubLiquidationService{
		executeFn: func(context.Context, string) (domain.LiquidationResult, error) {
			return domain.LiquidationResult{}, domain.ErrNotLiquidatable
		},
	}
	mux := newLiquidationMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/liquidations/pos-1/execute", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestLiquidationHandlerExecuteConflict(t *testing.T) {
	svc := &stubLiquidationService{
		executeFn: func(context.Context, string) (domain.LiquidationResult, error) {
			return domain.LiquidationResult{}, domain.ErrLockHeld
		},
	}
	mux := newLiquidationMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/liquidations/pos-1/execute", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestLiquidationHandlerList(t *testing.T) {
	svc := &stubLiquidationService{
		listFn: func(_ context.Context, limit int) ([]domain.LiquidationResult, error) {
			return []domain.LiquidationResult{sampleResult("pos-1", domain.LiquidationStatusLiquidated)}, nil
		},
	}
	mux := newLiquidationMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/liquidations", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp listLiquidationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Liquidations) != 1 {
		t.Errorf("got %d liquidations, want 1", len(resp.Liquidations))
	}
}
