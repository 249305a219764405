package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aloglu/centsible/internal/models"
	"github.com/aloglu/centsible/internal/settings"
	"github.com/aloglu/centsible/internal/tracker"
)

// SettingsHandler handles settings, alert-rule and list endpoints.
type SettingsHandler struct {
	settings *settings.Service
	tracker  *tracker.Tracker
}

// SettingsOutput represents the settings response.
type SettingsOutput struct {
	Body models.Settings
}

// GetSettings returns the full settings blob.
func (h *SettingsHandler) GetSettings(ctx context.Context, input *struct{}) (*SettingsOutput, error) {
	return &SettingsOutput{Body: h.settings.Get()}, nil
}

// UpdateWebhooksInput represents a notification sink update. The body
// replaces all three fields; an empty value disables that sink.
type UpdateWebhooksInput struct {
	Body struct {
		DiscordWebhook  string `json:"discordWebhook,omitempty" doc:"Discord-compatible webhook URL"`
		TelegramWebhook string `json:"telegramWebhook,omitempty" doc:"Telegram bot token, or a full bot URL for self-hosted gateways"`
		TelegramChatID  string `json:"telegramChatId,omitempty" doc:"Telegram chat ID"`
	}
}

// UpdateWebhooks replaces the notification sink configuration.
func (h *SettingsHandler) UpdateWebhooks(ctx context.Context, input *UpdateWebhooksInput) (*SettingsOutput, error) {
	s, err := h.settings.SetWebhooks(input.Body.DiscordWebhook, input.Body.TelegramWebhook, input.Body.TelegramChatID)
	if err != nil {
		return nil, mapSettingsError(err)
	}
	return &SettingsOutput{Body: s}, nil
}

// AlertRulesOutput represents the alert rules response.
type AlertRulesOutput struct {
	Body models.AlertRules
}

// GetAlertRules returns the alert configuration.
func (h *SettingsHandler) GetAlertRules(ctx context.Context, input *struct{}) (*AlertRulesOutput, error) {
	return &AlertRulesOutput{Body: h.settings.AlertRules()}, nil
}

// UpdateAlertRulesInput represents an alert rules update. The body replaces
// the whole rule set.
type UpdateAlertRulesInput struct {
	Body struct {
		TargetHitEnabled       bool    `json:"targetHitEnabled" doc:"Alert when the price reaches an item's target"`
		PriceDropEnabled       bool    `json:"priceDropEnabled" doc:"Alert on any price decrease"`
		PriceDrop24hEnabled    bool    `json:"priceDrop24hEnabled" doc:"Alert on steep drops against the price roughly 24h ago"`
		PriceDrop24hPercent    float64 `json:"priceDrop24hPercent" minimum:"0" maximum:"100" doc:"Drop percentage that counts as steep"`
		AllTimeLowEnabled      bool    `json:"allTimeLowEnabled" doc:"Alert when the price falls below every recorded point"`
		LowConfidenceEnabled   bool    `json:"lowConfidenceEnabled" doc:"Alert when extraction confidence is low"`
		LowConfidenceThreshold int     `json:"lowConfidenceThreshold" minimum:"0" maximum:"100" doc:"Confidence below this counts as low"`
		StaleEnabled           bool    `json:"staleEnabled" doc:"Alert when checks keep failing"`
		StaleHours             int     `json:"staleHours" minimum:"1" doc:"Hours without a successful check before an item is stale"`
		NotifyCooldownMinutes  int     `json:"notifyCooldownMinutes" minimum:"0" doc:"Minimum minutes between repeats of the same alert per item"`
	}
}

// UpdateAlertRules replaces the alert configuration.
func (h *SettingsHandler) UpdateAlertRules(ctx context.Context, input *UpdateAlertRulesInput) (*AlertRulesOutput, error) {
	rules, err := h.settings.SetAlertRules(models.AlertRules{
		TargetHitEnabled:       input.Body.TargetHitEnabled,
		PriceDropEnabled:       input.Body.PriceDropEnabled,
		PriceDrop24hEnabled:    input.Body.PriceDrop24hEnabled,
		PriceDrop24hPercent:    input.Body.PriceDrop24hPercent,
		AllTimeLowEnabled:      input.Body.AllTimeLowEnabled,
		LowConfidenceEnabled:   input.Body.LowConfidenceEnabled,
		LowConfidenceThreshold: input.Body.LowConfidenceThreshold,
		StaleEnabled:           input.Body.StaleEnabled,
		StaleHours:             input.Body.StaleHours,
		NotifyCooldownMinutes:  input.Body.NotifyCooldownMinutes,
	})
	if err != nil {
		return nil, mapSettingsError(err)
	}
	return &AlertRulesOutput{Body: rules}, nil
}

// ListsOutput represents the list collection response.
type ListsOutput struct {
	Body struct {
		Lists []models.List `json:"lists" doc:"Known lists, default first"`
	}
}

// ListLists returns the known lists.
func (h *SettingsHandler) ListLists(ctx context.Context, input *struct{}) (*ListsOutput, error) {
	out := &ListsOutput{}
	out.Body.Lists = h.settings.Lists()
	return out, nil
}

// CreateListInput represents a create list request.
type CreateListInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" doc:"Display name for the list"`
	}
}

// ListOutput represents a single list response.
type ListOutput struct {
	Body models.List
}

// CreateList adds a new list.
func (h *SettingsHandler) CreateList(ctx context.Context, input *CreateListInput) (*ListOutput, error) {
	l, err := h.settings.AddList(input.Body.Name)
	if err != nil {
		return nil, mapSettingsError(err)
	}
	return &ListOutput{Body: l}, nil
}

// RenameListInput represents a rename list request.
type RenameListInput struct {
	ID   string `path:"id" doc:"List ID"`
	Body struct {
		Name string `json:"name" minLength:"1" doc:"New display name"`
	}
}

// RenameList renames a list.
func (h *SettingsHandler) RenameList(ctx context.Context, input *RenameListInput) (*ListOutput, error) {
	l, err := h.settings.RenameList(input.ID, input.Body.Name)
	if err != nil {
		return nil, mapSettingsError(err)
	}
	return &ListOutput{Body: l}, nil
}

// DeleteListInput represents a delete list request.
type DeleteListInput struct {
	ID string `path:"id" doc:"List ID"`
}

// DeleteListOutput represents a delete list response.
type DeleteListOutput struct {
	Body struct {
		Success    bool `json:"success" doc:"Whether deletion was successful"`
		Reassigned int  `json:"reassigned" doc:"Items moved to the default list"`
	}
}

// DeleteList removes a list and moves its items to the default list. The
// default list cannot be deleted.
func (h *SettingsHandler) DeleteList(ctx context.Context, input *DeleteListInput) (*DeleteListOutput, error) {
	if err := h.settings.DeleteList(input.ID); err != nil {
		return nil, mapSettingsError(err)
	}
	moved, err := h.tracker.ReassignList(input.ID, models.DefaultListID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to reassign items: " + err.Error())
	}
	out := &DeleteListOutput{}
	out.Body.Success = true
	out.Body.Reassigned = moved
	return out, nil
}
