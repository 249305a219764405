package handlers

import (
	"context"
	"time"

	"github.com/aloglu/centsible/internal/diag"
	"github.com/aloglu/centsible/internal/fx"
	"github.com/aloglu/centsible/internal/models"
)

// DiagnosticsHandler handles check history and FX endpoints.
type DiagnosticsHandler struct {
	log   *diag.Log
	rates *fx.Table
}

// GetDiagnosticsInput represents a diagnostics query.
type GetDiagnosticsInput struct {
	Limit  int  `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum records to return"`
	Failed bool `query:"failed" doc:"Only return failed checks"`
}

// GetDiagnosticsOutput represents the diagnostics response.
type GetDiagnosticsOutput struct {
	Body struct {
		Checks []models.CheckRecord `json:"checks" doc:"Check records, newest first"`
		Count  int                  `json:"count" doc:"Number of records returned"`
	}
}

// GetDiagnostics returns recent check records, newest first.
func (h *DiagnosticsHandler) GetDiagnostics(ctx context.Context, input *GetDiagnosticsInput) (*GetDiagnosticsOutput, error) {
	out := &GetDiagnosticsOutput{}
	out.Body.Checks = h.log.Recent(input.Limit, input.Failed)
	out.Body.Count = len(out.Body.Checks)
	return out, nil
}

// GetRatesOutput represents the FX rates response.
type GetRatesOutput struct {
	Body struct {
		Base        string             `json:"base" doc:"Base currency"`
		Rates       map[string]float64 `json:"rates" doc:"Units of each currency per USD"`
		LastRefresh *time.Time         `json:"lastRefresh,omitempty" doc:"When the table last refreshed; absent before the first success"`
	}
}

// GetRates returns the cached FX table.
func (h *DiagnosticsHandler) GetRates(ctx context.Context, input *struct{}) (*GetRatesOutput, error) {
	out := &GetRatesOutput{}
	out.Body.Base = "USD"
	out.Body.Rates = h.rates.Rates()
	if last := h.rates.LastRefresh(); !last.IsZero() {
		out.Body.LastRefresh = &last
	}
	return out, nil
}
