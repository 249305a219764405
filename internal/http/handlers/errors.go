package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aloglu/centsible/internal/settings"
	"github.com/aloglu/centsible/internal/tracker"
	"github.com/aloglu/centsible/internal/urlguard"
)

// mapItemError translates tracker and URL guard errors into HTTP errors.
// Guard refusals are client errors; the same URL will never be accepted on
// retry.
func mapItemError(err error) error {
	if kind := urlguard.KindOf(err); kind != "" {
		switch kind {
		case urlguard.KindInvalidURL, urlguard.KindSchemeForbidden:
			return huma.Error400BadRequest(err.Error())
		default:
			return huma.Error422UnprocessableEntity(err.Error())
		}
	}
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		return huma.Error404NotFound("item not found")
	case errors.Is(err, tracker.ErrEmptyURL), errors.Is(err, tracker.ErrInvalidTarget):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("failed to save item: " + err.Error())
}

// mapSettingsError translates settings service errors into HTTP errors.
func mapSettingsError(err error) error {
	switch {
	case errors.Is(err, settings.ErrListNotFound):
		return huma.Error404NotFound("list not found")
	case errors.Is(err, settings.ErrDefaultList):
		return huma.Error422UnprocessableEntity("the default list cannot be deleted")
	case errors.Is(err, settings.ErrEmptyListName):
		return huma.Error422UnprocessableEntity("list name is required")
	}
	return huma.Error500InternalServerError("failed to save settings: " + err.Error())
}
