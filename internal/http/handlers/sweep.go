package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aloglu/centsible/internal/scheduler"
)

// SweepHandler handles sweep control endpoints.
type SweepHandler struct {
	sweeps SweepController
}

// TriggerSweepOutput represents the manual sweep response.
type TriggerSweepOutput struct {
	Body struct {
		Started bool `json:"started" doc:"Whether a sweep was started"`
	}
}

// TriggerSweep starts a sweep unless one is already running.
func (h *SweepHandler) TriggerSweep(ctx context.Context, input *struct{}) (*TriggerSweepOutput, error) {
	if !h.sweeps.TriggerSweep() {
		return nil, huma.Error409Conflict("a sweep is already running")
	}
	out := &TriggerSweepOutput{}
	out.Body.Started = true
	return out, nil
}

// SweepStatusOutput represents the sweep status response.
type SweepStatusOutput struct {
	Body scheduler.Status
}

// SweepStatus reports whether a sweep is running, the item being checked
// and when the next scheduled sweep is due.
func (h *SweepHandler) SweepStatus(ctx context.Context, input *struct{}) (*SweepStatusOutput, error) {
	return &SweepStatusOutput{Body: h.sweeps.Status()}, nil
}
