package handlers

import (
	"context"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aloglu/centsible/internal/fx"
	"github.com/aloglu/centsible/internal/models"
	"github.com/aloglu/centsible/internal/tracker"
)

// ItemsHandler handles tracked-item endpoints.
type ItemsHandler struct {
	tracker *tracker.Tracker
	rates   *fx.Table
}

// ItemBody is the user-editable part of an item in create and update
// requests. Updates replace all of these fields at once.
type ItemBody struct {
	URL         string   `json:"url" minLength:"1" doc:"Product page URL"`
	Name        string   `json:"name,omitempty" doc:"Display name; defaults to the URL hostname"`
	Selector    string   `json:"selector,omitempty" doc:"CSS selector pinning the price element"`
	TargetPrice *float64 `json:"targetPrice,omitempty" exclusiveMinimum:"0" doc:"Alert when the price reaches this value"`
	ListID      string   `json:"listId,omitempty" doc:"List the item belongs to; defaults to the default list"`
}

// ListItemsInput represents the item collection request.
type ListItemsInput struct {
	Sort string `query:"sort" enum:"added,priceUsd" default:"added" doc:"Item order: insertion order, or current price converted to USD ascending"`
}

// ListItemsOutput represents the item collection response.
type ListItemsOutput struct {
	Body struct {
		Items []models.Item `json:"items" doc:"Tracked items in the requested order"`
		Count int           `json:"count" doc:"Number of items"`
	}
}

// ListItems returns every tracked item. The priceUsd sort compares items
// across currencies through the FX table; unpriced items sort last.
func (h *ItemsHandler) ListItems(ctx context.Context, input *ListItemsInput) (*ListItemsOutput, error) {
	items := h.tracker.Items()
	if input != nil && input.Sort == "priceUsd" {
		sort.SliceStable(items, func(i, j int) bool {
			a, aok := h.usdValue(items[i])
			b, bok := h.usdValue(items[j])
			if aok != bok {
				return aok
			}
			return a < b
		})
	}
	out := &ListItemsOutput{}
	out.Body.Items = items
	out.Body.Count = len(items)
	return out, nil
}

// usdValue converts an item's current price for cross-currency ordering.
// Missing rates pass the amount through, which keeps the order stable.
func (h *ItemsHandler) usdValue(it models.Item) (float64, bool) {
	if it.CurrentPrice == nil {
		return 0, false
	}
	return h.rates.ToUSD(*it.CurrentPrice, it.Currency), true
}

// GetItemInput represents a single item request.
type GetItemInput struct {
	ID string `path:"id" doc:"Item ID"`
}

// ItemOutput represents a single item response.
type ItemOutput struct {
	Body models.Item
}

// GetItem returns one tracked item.
func (h *ItemsHandler) GetItem(ctx context.Context, input *GetItemInput) (*ItemOutput, error) {
	it, ok := h.tracker.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("item not found")
	}
	return &ItemOutput{Body: it}, nil
}

// CreateItemInput represents a create item request.
type CreateItemInput struct {
	Body ItemBody
}

// CreateItem registers a new item after validating its URL. The first sweep
// after creation fills in the observed fields.
func (h *ItemsHandler) CreateItem(ctx context.Context, input *CreateItemInput) (*ItemOutput, error) {
	it, err := h.tracker.Add(ctx, editFromBody(input.Body))
	if err != nil {
		return nil, mapItemError(err)
	}
	return &ItemOutput{Body: it}, nil
}

// UpdateItemInput represents an update item request.
type UpdateItemInput struct {
	ID   string `path:"id" doc:"Item ID"`
	Body ItemBody
}

// UpdateItem replaces the editable fields of an item. Changing the URL
// resets the observed price trail.
func (h *ItemsHandler) UpdateItem(ctx context.Context, input *UpdateItemInput) (*ItemOutput, error) {
	it, err := h.tracker.Update(ctx, input.ID, editFromBody(input.Body))
	if err != nil {
		return nil, mapItemError(err)
	}
	return &ItemOutput{Body: it}, nil
}

// DeleteItemInput represents a delete item request.
type DeleteItemInput struct {
	ID string `path:"id" doc:"Item ID"`
}

// DeleteItemOutput represents a delete item response.
type DeleteItemOutput struct {
	Body struct {
		Success bool `json:"success" doc:"Whether deletion was successful"`
	}
}

// DeleteItem removes an item from tracking.
func (h *ItemsHandler) DeleteItem(ctx context.Context, input *DeleteItemInput) (*DeleteItemOutput, error) {
	if err := h.tracker.Delete(input.ID); err != nil {
		return nil, mapItemError(err)
	}
	out := &DeleteItemOutput{}
	out.Body.Success = true
	return out, nil
}

func editFromBody(b ItemBody) tracker.ItemEdit {
	return tracker.ItemEdit{
		Name:        b.Name,
		URL:         b.URL,
		Selector:    b.Selector,
		TargetPrice: b.TargetPrice,
		ListID:      b.ListID,
	}
}
