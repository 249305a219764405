package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Register wires every operation onto the API. Probe endpoints stay out of
// the OpenAPI document.
func Register(api huma.API, h *Handlers) {
	huma.Register(api, huma.Operation{
		Method: http.MethodGet,
		Path:   "/healthz",
		Hidden: true,
	}, Healthz)
	huma.Register(api, huma.Operation{
		Method: http.MethodGet,
		Path:   "/version",
		Hidden: true,
	}, Version)

	// --- Items ---
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/v1/items",
		Summary:     "List tracked items",
		Tags:        []string{"Items"},
		OperationID: "listItems",
	}, h.Items.ListItems)
	huma.Register(api, huma.Operation{
		Method:        http.MethodPost,
		Path:          "/api/v1/items",
		Summary:       "Track a new item",
		Tags:          []string{"Items"},
		OperationID:   "createItem",
		DefaultStatus: http.StatusCreated,
	}, h.Items.CreateItem)
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/v1/items/{id}",
		Summary:     "Get a tracked item",
		Tags:        []string{"Items"},
		OperationID: "getItem",
	}, h.Items.GetItem)
	huma.Register(api, huma.Operation{
		Method:      http.MethodPut,
		Path:        "/api/v1/items/{id}",
		Summary:     "Update a tracked item",
		Tags:        []string{"Items"},
		OperationID: "updateItem",
	}, h.Items.UpdateItem)
	huma.Register(api, huma.Operation{
		Method:      http.MethodDelete,
		Path:        "/api/v1/items/{id}",
		Summary:     "Stop tracking an item",
		Tags:        []string{"Items"},
		OperationID: "deleteItem",
	}, h.Items.DeleteItem)

	// --- Sweep ---
	huma.Register(api, huma.Operation{
		Method:        http.MethodPost,
		Path:          "/api/v1/sweep",
		Summary:       "Start a sweep now",
		Tags:          []string{"Sweep"},
		OperationID:   "triggerSweep",
		DefaultStatus: http.StatusAccepted,
	}, h.Sweep.TriggerSweep)
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/v1/sweep/status",
		Summary:     "Get sweep status",
		Tags:        []string{"Sweep"},
		OperationID: "sweepStatus",
	}, h.Sweep.SweepStatus)

	// --- Settings ---
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/v1/settings",
		Summary:     "Get settings",
		Tags:        []string{"Settings"},
		OperationID: "getSettings",
	}, h.Settings.GetSettings)
	huma.Register(api, huma.Operation{
		Method:      http.MethodPut,
		Path:        "/api/v1/settings/webhooks",
		Summary:     "Set notification sinks",
		Tags:        []string{"Settings"},
		OperationID: "updateWebhooks",
	}, h.Settings.UpdateWebhooks)
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/v1/settings/alert-rules",
		Summary:     "Get alert rules",
		Tags:        []string{"Settings"},
		OperationID: "getAlertRules",
	}, h.Settings.GetAlertRules)
	huma.Register(api, huma.Operation{
		Method:      http.MethodPut,
		Path:        "/api/v1/settings/alert-rules",
		Summary:     "Set alert rules",
		Tags:        []string{"Settings"},
		OperationID: "updateAlertRules",
	}, h.Settings.UpdateAlertRules)

	// --- Lists ---
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/v1/lists",
		Summary:     "List item lists",
		Tags:        []string{"Lists"},
		OperationID: "listLists",
	}, h.Settings.ListLists)
	huma.Register(api, huma.Operation{
		Method:        http.MethodPost,
		Path:          "/api/v1/lists",
		Summary:       "Create a list",
		Tags:          []string{"Lists"},
		OperationID:   "createList",
		DefaultStatus: http.StatusCreated,
	}, h.Settings.CreateList)
	huma.Register(api, huma.Operation{
		Method:      http.MethodPut,
		Path:        "/api/v1/lists/{id}",
		Summary:     "Rename a list",
		Tags:        []string{"Lists"},
		OperationID: "renameList",
	}, h.Settings.RenameList)
	huma.Register(api, huma.Operation{
		Method:      http.MethodDelete,
		Path:        "/api/v1/lists/{id}",
		Summary:     "Delete a list",
		Tags:        []string{"Lists"},
		OperationID: "deleteList",
	}, h.Settings.DeleteList)

	// --- Diagnostics ---
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/v1/diagnostics",
		Summary:     "Get recent check records",
		Tags:        []string{"Diagnostics"},
		OperationID: "getDiagnostics",
	}, h.Diag.GetDiagnostics)
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/v1/fx",
		Summary:     "Get FX rates",
		Tags:        []string{"Diagnostics"},
		OperationID: "getRates",
	}, h.Diag.GetRates)
}
