// Package settings owns the persisted configuration blob: notification
// endpoints, item lists, and alert rules.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/aloglu/centsible/internal/models"
	"github.com/aloglu/centsible/internal/store"
)

var (
	ErrListNotFound  = errors.New("settings: list not found")
	ErrDefaultList   = errors.New("settings: the default list cannot be deleted")
	ErrEmptyListName = errors.New("settings: list name is required")
)

// Service serializes access to the settings blob and persists every change.
type Service struct {
	store  *store.Store
	logger *slog.Logger

	mu      sync.Mutex
	current models.Settings
}

// New loads persisted settings or seeds the defaults.
func New(st *store.Store, logger *slog.Logger) (*Service, error) {
	s := &Service{
		store:  st,
		logger: logger.With("component", "settings"),
	}

	var loaded models.Settings
	err := st.Load(store.SettingsFile, &loaded)
	switch {
	case errors.Is(err, store.ErrNotFound):
		loaded = models.DefaultSettings()
		s.logger.Info("seeding default settings")
	case err != nil:
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	if loaded.AlertRules == (models.AlertRules{}) {
		loaded.AlertRules = models.DefaultAlertRules()
	}
	ensureDefaultList(&loaded)
	s.current = loaded

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func ensureDefaultList(s *models.Settings) {
	for _, l := range s.Lists {
		if l.ID == models.DefaultListID {
			return
		}
	}
	s.Lists = append([]models.List{{ID: models.DefaultListID, Name: "Default"}}, s.Lists...)
}

// Get returns a copy of the current settings.
func (s *Service) Get() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// AlertRules returns the current alert rule set.
func (s *Service) AlertRules() models.AlertRules {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.AlertRules
}

// SetWebhooks replaces the notification endpoints.
func (s *Service) SetWebhooks(discord, telegramWebhook, telegramChatID string) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.DiscordWebhook = strings.TrimSpace(discord)
	s.current.TelegramWebhook = strings.TrimSpace(telegramWebhook)
	s.current.TelegramChatID = strings.TrimSpace(telegramChatID)
	if err := s.persistLocked(); err != nil {
		return models.Settings{}, err
	}
	s.logger.Info("notification endpoints updated",
		"discord", s.current.DiscordWebhook != "",
		"telegram", s.current.TelegramWebhook != "")
	return s.copyLocked(), nil
}

// SetAlertRules replaces the alert rule set.
func (s *Service) SetAlertRules(rules models.AlertRules) (models.AlertRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.AlertRules = rules
	if err := s.persistLocked(); err != nil {
		return models.AlertRules{}, err
	}
	s.logger.Info("alert rules updated", "cooldownMinutes", rules.NotifyCooldownMinutes)
	return s.current.AlertRules, nil
}

// Lists returns the current lists in order.
func (s *Service) Lists() []models.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.List, len(s.current.Lists))
	copy(out, s.current.Lists)
	return out
}

// AddList creates a new list.
func (s *Service) AddList(name string) (models.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.List{}, ErrEmptyListName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := models.List{ID: strings.ToLower(ulid.Make().String()), Name: name}
	s.current.Lists = append(s.current.Lists, l)
	if err := s.persistLocked(); err != nil {
		return models.List{}, err
	}
	s.logger.Info("list added", "id", l.ID, "name", l.Name)
	return l, nil
}

// RenameList updates a list's display name.
func (s *Service) RenameList(id, name string) (models.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.List{}, ErrEmptyListName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.current.Lists {
		if s.current.Lists[i].ID == id {
			s.current.Lists[i].Name = name
			if err := s.persistLocked(); err != nil {
				return models.List{}, err
			}
			return s.current.Lists[i], nil
		}
	}
	return models.List{}, ErrListNotFound
}

// DeleteList removes a list. The default list is protected; the caller is
// responsible for reassigning the deleted list's items.
func (s *Service) DeleteList(id string) error {
	if id == models.DefaultListID {
		return ErrDefaultList
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.current.Lists {
		if s.current.Lists[i].ID == id {
			s.current.Lists = append(s.current.Lists[:i], s.current.Lists[i+1:]...)
			if err := s.persistLocked(); err != nil {
				return err
			}
			s.logger.Info("list deleted", "id", id)
			return nil
		}
	}
	return ErrListNotFound
}

func (s *Service) copyLocked() models.Settings {
	out := s.current
	out.Lists = make([]models.List, len(s.current.Lists))
	copy(out.Lists, s.current.Lists)
	return out
}

func (s *Service) persistLocked() error {
	if err := s.store.Save(store.SettingsFile, s.current); err != nil {
		s.logger.Error("saving settings failed", "error", err)
		return err
	}
	return nil
}
