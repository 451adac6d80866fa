package handler

import (
	"time"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/monitor"
	"github.com/alanyoungcy/cdpguard/internal/service"
)

// Response DTOs. Domain structs carry no JSON tags; the wire shape is
// defined here. Decimal fields are rendered as strings to preserve
// precision.

type positionResponse struct {
	ID               string `json:"id"`
	OwnerAddress     string `json:"owner_address"`
	CollateralSymbol string `json:"collateral_symbol"`
	CollateralAmount string `json:"collateral_amount"`
	DebtSymbol       string `json:"debt_symbol"`
	DebtAmount       string `json:"debt_amount"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func toPositionResponse(pos domain.Position) positionResponse {
	return positionResponse{
		ID:               pos.ID,
		OwnerAddress:     pos.OwnerAddress,
		CollateralSymbol: pos.CollateralSymbol,
		CollateralAmount: pos.CollateralAmount.String(),
		DebtSymbol:       pos.DebtSymbol,
		DebtAmount:       pos.DebtAmount.String(),
		Status:           string(pos.Status),
		CreatedAt:        pos.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        pos.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toPositionResponses(positions []domain.Position) []positionResponse {
	out := make([]positionResponse, len(positions))
	for i, pos := range positions {
		out[i] = toPositionResponse(pos)
	}
	return out
}

type healthResponse struct {
	PositionID      string `json:"position_id"`
	CollateralValue string `json:"collateral_value"`
	DebtValue       string `json:"debt_value"`
	HealthFactor    string `json:"health_factor"`
	Liquidatable    bool   `json:"liquidatable"`
	EvaluatedAt     string `json:"evaluated_at"`
}

func toHealthResponse(a domain.HealthAssessment) healthResponse {
	return healthResponse{
		PositionID:      a.PositionID,
		CollateralValue: a.CollateralValue.String(),
		DebtValue:       a.DebtValue.String(),
		HealthFactor:    a.HealthFactor.String(),
		Liquidatable:    a.Liquidatable,
		EvaluatedAt:     a.EvaluatedAt.UTC().Format(time.RFC3339),
	}
}

type liquidationResponse struct {
	PositionID       string `json:"position_id"`
	CollateralSeized string `json:"collateral_seized"`
	DebtRepaid       string `json:"debt_repaid"`
	Bonus            string `json:"bonus"`
	CollateralPrice  string `json:"collateral_price"`
	DebtPrice        string `json:"debt_price"`
	HealthFactor     string `json:"health_factor"`
	Status           string `json:"status"`
	TxHash           string `json:"tx_hash,omitempty"`
	ExecutedAt       string `json:"executed_at"`
}

func toLiquidationResponse(res domain.LiquidationResult) liquidationResponse {
	return liquidationResponse{
		PositionID:       res.PositionID,
		CollateralSeized: res.CollateralSeized.String(),
		DebtRepaid:       res.DebtRepaid.String(),
		Bonus:            res.Bonus.String(),
		CollateralPrice:  res.CollateralPrice.String(),
		DebtPrice:        res.DebtPrice.String(),
		HealthFactor:     res.HealthFactor.String(),
		Status:           string(res.Status),
		TxHash:           res.TxHash,
		ExecutedAt:       res.ExecutedAt.UTC().Format(time.RFC3339),
	}
}

func toLiquidationResponses(results []domain.LiquidationResult) []liquidationResponse {
	out := make([]liquidationResponse, len(results))
	for i, res := range results {
		out[i] = toLiquidationResponse(res)
	}
	return out
}

type snapshotResponse struct {
	ID              int64  `json:"id"`
	PositionID      string `json:"position_id"`
	HealthFactor    string `json:"health_factor"`
	CollateralValue string `json:"collateral_value"`
	DebtValue       string `json:"debt_value"`
	Liquidatable    bool   `json:"liquidatable"`
	CreatedAt       string `json:"created_at"`
}

func toSnapshotResponse(snap domain.RiskSnapshot) snapshotResponse {
	return snapshotResponse{
		ID:              snap.ID,
		PositionID:      snap.PositionID,
		HealthFactor:    snap.HealthFactor.String(),
		CollateralValue: snap.CollateralValue.String(),
		DebtValue:       snap.DebtValue.String(),
		Liquidatable:    snap.Liquidatable,
		CreatedAt:       snap.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type systemMetricsResponse struct {
	TotalPositions       int64  `json:"total_positions"`
	OpenPositions        int    `json:"open_positions"`
	LiquidatableCount    int    `json:"liquidatable_count"`
	SafeCount            int    `json:"safe_count"`
	WarningCount         int    `json:"warning_count"`
	CriticalCount        int    `json:"critical_count"`
	AverageHealthFactor  string `json:"average_health_factor"`
	TotalCollateralValue string `json:"total_collateral_value"`
	TotalDebtValue       string `json:"total_debt_value"`
}

func toSystemMetricsResponse(m service.SystemMetrics) systemMetricsResponse {
	return systemMetricsResponse{
		TotalPositions:       m.TotalPositions,
		OpenPositions:        m.OpenPositions,
		LiquidatableCount:    m.LiquidatableCount,
		SafeCount:            m.SafeCount,
		WarningCount:         m.WarningCount,
		CriticalCount:        m.CriticalCount,
		AverageHealthFactor:  m.AverageHealthFactor.String(),
		TotalCollateralValue: m.TotalCollateralValue.String(),
		TotalDebtValue:       m.TotalDebtValue.String(),
	}
}

type chainEventResponse struct {
	ID          int64          `json:"id"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      string         `json:"tx_hash"`
	Kind        string         `json:"kind"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   string         `json:"created_at"`
}

func toChainEventResponse(ev domain.ChainEvent) chainEventResponse {
	return chainEventResponse{
		ID:          ev.ID,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
		Kind:        ev.Kind,
		Payload:     ev.Payload,
		CreatedAt:   ev.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type monitorStatusResponse struct {
	Running           bool   `json:"running"`
	StartedAt         string `json:"started_at,omitempty"`
	LastTick          string `json:"last_tick,omitempty"`
	TicksCompleted    int64  `json:"ticks_completed"`
	PositionsChecked  int64  `json:"positions_checked"`
	LiquidatableFound int64  `json:"liquidatable_found"`
}

func toMonitorStatusResponse(st monitor.Status) monitorStatusResponse {
	out := monitorStatusResponse{
		Running:           st.Running,
		TicksCompleted:    st.TicksCompleted,
		PositionsChecked:  st.PositionsChecked,
		LiquidatableFound: st.LiquidatableFound,
	}
	if !st.StartedAt.IsZero() {
		out.StartedAt = st.StartedAt.UTC().Format(time.RFC3339)
	}
	if !st.LastTick.IsZero() {
		out.LastTick = st.LastTick.UTC().Format(time.RFC3339)
	}
	return out
}

// batchItemResponse is the shared per-item wire shape for batch
// endpoints: exactly one of the payload and error fields is set.
type batchItemResponse struct {
	Index       int                  `json:"index"`
	PositionID  string               `json:"position_id"`
	Position    *positionResponse    `json:"position,omitempty"`
	Liquidation *liquidationResponse `json:"liquidation,omitempty"`
	Error       string               `json:"error,omitempty"`
}
