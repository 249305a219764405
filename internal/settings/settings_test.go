package settings

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aloglu/centsible/internal/models"
	"github.com/aloglu/centsible/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	svc, err := New(st, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, st
}

func TestSeedsDefaults(t *testing.T) {
	svc, st := newTestService(t)

	got := svc.Get()
	if len(got.Lists) != 1 || got.Lists[0].ID != models.DefaultListID {
		t.Errorf("Lists = %+v, want only the default list", got.Lists)
	}
	if got.AlertRules != models.DefaultAlertRules() {
		t.Errorf("AlertRules = %+v, want defaults", got.AlertRules)
	}

	var onDisk models.Settings
	if err := st.Load(store.SettingsFile, &onDisk); err != nil {
		t.Fatalf("settings not persisted on seed: %v", err)
	}
}

func TestSetWebhooksRoundTrip(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.SetWebhooks(" https://discord.com/api/webhooks/1/t ", "12345:AA", "777")
	if err != nil {
		t.Fatalf("SetWebhooks() error = %v", err)
	}

	reloaded, err := New(st, testLogger())
	if err != nil {
		t.Fatalf("reload New() error = %v", err)
	}
	got := reloaded.Get()
	if got.DiscordWebhook != "https://discord.com/api/webhooks/1/t" {
		t.Errorf("DiscordWebhook = %q, want trimmed value", got.DiscordWebhook)
	}
	if got.TelegramWebhook != "12345:AA" || got.TelegramChatID != "777" {
		t.Errorf("telegram settings = %q/%q", got.TelegramWebhook, got.TelegramChatID)
	}
}

func TestSetAlertRules(t *testing.T) {
	svc, _ := newTestService(t)

	rules := models.DefaultAlertRules()
	rules.PriceDrop24hPercent = 10
	rules.NotifyCooldownMinutes = 60

	got, err := svc.SetAlertRules(rules)
	if err != nil {
		t.Fatalf("SetAlertRules() error = %v", err)
	}
	if got.PriceDrop24hPercent != 10 || got.NotifyCooldownMinutes != 60 {
		t.Errorf("rules = %+v", got)
	}
	if svc.AlertRules() != rules {
		t.Errorf("AlertRules() = %+v, want %+v", svc.AlertRules(), rules)
	}
}

func TestListLifecycle(t *testing.T) {
	svc, _ := newTestService(t)

	l, err := svc.AddList("Wishlist")
	if err != nil {
		t.Fatalf("AddList() error = %v", err)
	}
	if l.ID == "" || l.ID == models.DefaultListID {
		t.Errorf("AddList() id = %q", l.ID)
	}

	renamed, err := svc.RenameList(l.ID, "Gifts")
	if err != nil {
		t.Fatalf("RenameList() error = %v", err)
	}
	if renamed.Name != "Gifts" {
		t.Errorf("renamed.Name = %q", renamed.Name)
	}

	if err := svc.DeleteList(l.ID); err != nil {
		t.Fatalf("DeleteList() error = %v", err)
	}
	if got := svc.Lists(); len(got) != 1 {
		t.Errorf("Lists() = %+v, want only default left", got)
	}
}

func TestListValidation(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.AddList("  "); !errors.Is(err, ErrEmptyListName) {
		t.Errorf("AddList(blank) error = %v, want ErrEmptyListName", err)
	}
	if err := svc.DeleteList(models.DefaultListID); !errors.Is(err, ErrDefaultList) {
		t.Errorf("DeleteList(default) error = %v, want ErrDefaultList", err)
	}
	if err := svc.DeleteList("missing"); !errors.Is(err, ErrListNotFound) {
		t.Errorf("DeleteList(missing) error = %v, want ErrListNotFound", err)
	}
	if _, err := svc.RenameList("missing", "X"); !errors.Is(err, ErrListNotFound) {
		t.Errorf("RenameList(missing) error = %v, want ErrListNotFound", err)
	}
}
