package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubPositionService struct {
	createFn func(context.Context, service.CreatePositionInput) (domain.Position, error)
	getFn    func(context.Context, string) (domain.Position, error)
	listFn   func(context.Context, domain.ListOpts) ([]domain.Position, error)
	healthFn func(context.Context, string) (domain.HealthAssessment, error)
}

func (s *stubPositionService) Create(ctx context.Context, in service.CreatePositionInput) (domain.Position, error) {
	return s.createFn(ctx, in)
}

func (s *stubPositionService) Get(ctx context.Context, id string) (domain.Position, error) {
	return s.getFn(ctx, id)
}

func (s *stubPositionService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	return s.listFn(ctx, opts)
}

func (s *stubPositionService) EvaluateHealth(ctx context.Context, id string) (domain.HealthAssessment, error) {
	return s.healthFn(ctx, id)
}

func samplePosition(id string) domain.Position {
	return domain.Position{
		ID:               id,
		OwnerAddress:     "0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		CollateralSymbol: "ETH",
		CollateralAmount: decimal.NewFromInt(10),
		DebtSymbol:       "USDC",
		DebtAmount:       decimal.NewFromInt(17000),
		Status:           domain.PositionStatusOpen,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
}

func newPositionMux(svc PositionService) *http.ServeMux {
	h := NewPositionHandler(svc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/positions", h.Create)
	mux.HandleFunc("GET /api/positions", h.List)
	mux.HandleFunc("GET /api/positions/{id}", h.Get)
	mux.HandleFunc("GET /api/positions/{id}/health", h.Health)
	return mux
}

func TestPositionHandlerCreate(t *testing.T) {
	svc := &stubPositionService{
		createFn: func(_ context.Context, in service.CreatePositionInput) (domain.Position, error) {
			return samplePosition(in.ID), nil
		},
	}
	mux := newPositionMux(svc)

	body := `{
		"id": "pos-1",
		"owner_address": "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		"collateral_symbol": "ETH",
		"collateral_amount": "10",
		"debt_symbol": "USDC",
		"debt_amount": 17000
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/positions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp positionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "pos-1" || resp.CollateralAmount != "10" || resp.DebtAmount != "17000" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestPositionHandlerCreateBadBody(t *testing.T) {
	mux := newPositionMux(&stubPositionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/positions", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPositionHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"unknown symbol", domain.ErrUnknownSymbol, http.StatusBadRequest},
		{"duplicate", domain.ErrAlreadyExists, http.StatusConflict},
		{"store down", domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{
			"unreachable store wrapped by the driver",
			fmt.Errorf("postgres: create position p1: %w: dial tcp 127.0.0.1:1: connection refused", domain.ErrStoreUnavailable),
			http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubPositionService{
				createFn: func(context.Context, service.CreatePositionInput) (domain.Position, error) {
					return domain.Position{}, tt.err
				},
			}
			mux := newPositionMux(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/positions", strings.NewReader(`{"id":"x"}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body missing error field")
			}
		})
	}
}

func TestPositionHandlerGetNotFound(t *testing.T) {
	svc := &stubPositionService{
		getFn: func(context.Context, string) (domain.Position, error) {
			return domain.Position{}, domain.ErrNotFound
		},
	}
	mux := newPositionMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/positions/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPositionHandlerListPagination(t *testing.T) {
	var gotOpts domain.ListOpts
	svc := &stubPositionService{
		listFn: func(_ context.Context, opts domain.ListOpts) ([]domain.Position, error) {
			gotOpts = opts
			return []domain.Position{samplePosition("pos-1")}, nil
		},
	}
	mux := newPositionMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/positions?limit=9999&offset=20", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotOpts.Limit != 500 {
		t.Errorf("limit = %d, want capped to 500", gotOpts.Limit)
	}
	if gotOpts.Offset != 20 {
		t.Errorf("offset = %d, want 20", gotOpts.Offset)
	}
}

func TestPositionHandlerHealth(t *testing.T) {
	svc := &stubPositionService{
		healthFn: func(_ context.Context, id string) (domain.HealthAssessment, error) {
			return domain.HealthAssessment{
				PositionID:      id,
				CollateralValue: decimal.NewFromInt(20000),
				DebtValue:       decimal.NewFromInt(17000),
				HealthFactor:    decimal.RequireFromString("0.97058824"),
				Liquidatable:    true,
				EvaluatedAt:     time.Now().UTC(),
			}, nil
		},
	}
	mux := newPositionMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/positions/pos-1/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.HealthFactor != "0.97058824" || !resp.Liquidatable {
		t.Errorf("unexpected response: %+v", resp)
	}
}
