// Package handlers contains the HTTP handlers for the tracker API.
package handlers

import (
	"context"

	"github.com/aloglu/centsible/internal/diag"
	"github.com/aloglu/centsible/internal/fx"
	"github.com/aloglu/centsible/internal/scheduler"
	"github.com/aloglu/centsible/internal/settings"
	"github.com/aloglu/centsible/internal/tracker"
	"github.com/aloglu/centsible/internal/version"
)

// SweepController is the slice of the scheduler the API drives.
type SweepController interface {
	TriggerSweep() bool
	Status() scheduler.Status
}

// Handlers aggregates the per-concern handlers for route registration.
type Handlers struct {
	Items    *ItemsHandler
	Sweep    *SweepHandler
	Settings *SettingsHandler
	Diag     *DiagnosticsHandler
}

// New wires the handlers against the running services.
func New(tr *tracker.Tracker, svc *settings.Service, sweeps SweepController, log *diag.Log, rates *fx.Table) *Handlers {
	return &Handlers{
		Items:    &ItemsHandler{tracker: tr, rates: rates},
		Sweep:    &SweepHandler{sweeps: sweeps},
		Settings: &SettingsHandler{settings: svc, tracker: tr},
		Diag:     &DiagnosticsHandler{log: log, rates: rates},
	}
}

// HealthzOutput represents the liveness probe response.
type HealthzOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Healthz reports process liveness.
func Healthz(ctx context.Context, input *struct{}) (*HealthzOutput, error) {
	out := &HealthzOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// VersionOutput represents the version probe response.
type VersionOutput struct {
	Body version.Info
}

// Version reports build information.
func Version(ctx context.Context, input *struct{}) (*VersionOutput, error) {
	return &VersionOutput{Body: version.Get()}, nil
}
