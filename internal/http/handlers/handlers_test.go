package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aloglu/centsible/internal/diag"
	"github.com/aloglu/centsible/internal/fx"
	"github.com/aloglu/centsible/internal/models"
	"github.com/aloglu/centsible/internal/scheduler"
	"github.com/aloglu/centsible/internal/settings"
	"github.com/aloglu/centsible/internal/store"
	"github.com/aloglu/centsible/internal/tracker"
	"github.com/aloglu/centsible/internal/urlguard"
)

type publicResolver struct{}

func (publicResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	return []net.IPAddr{{IP: net.ParseIP("93.184.216.34")}}, nil
}

type fixedRates map[string]float64

func (f fixedRates) Rate(ccy string) (float64, bool) {
	r, ok := f[ccy]
	return r, ok
}

type stubSweeps struct {
	busy   bool
	status scheduler.Status
	calls  int
}

func (s *stubSweeps) TriggerSweep() bool {
	s.calls++
	return !s.busy
}

func (s *stubSweeps) Status() scheduler.Status { return s.status }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	handlers *Handlers
	sweeps   *stubSweeps
	diag     *diag.Log
	tracker  *tracker.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testLogger()

	st, err := store.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	guard := urlguard.New(nil).WithResolver(publicResolver{})
	tr, err := tracker.New(st, guard, fixedRates{"USD": 1}, logger)
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	svc, err := settings.New(st, logger)
	if err != nil {
		t.Fatalf("settings.New: %v", err)
	}
	log := diag.NewLog(10)
	sweeps := &stubSweeps{}
	rates := fx.New("http://127.0.0.1:0/latest", time.Second, logger)

	return &fixture{
		handlers: New(tr, svc, sweeps, log, rates),
		sweeps:   sweeps,
		diag:     log,
		tracker:  tr,
	}
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", want)
	}
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %v carries no HTTP status", err)
	}
	if se.GetStatus() != want {
		t.Fatalf("status = %d, want %d (%v)", se.GetStatus(), want, err)
	}
}

func createItem(t *testing.T, h *Handlers, body ItemBody) models.Item {
	t.Helper()
	out, err := h.Items.CreateItem(context.Background(), &CreateItemInput{Body: body})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return out.Body
}

// ========================================
// Item Tests
// ========================================

func TestCreateItemDefaults(t *testing.T) {
	f := newFixture(t)

	it := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/widget"})
	if it.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if it.Name != "shop.example" {
		t.Errorf("Name = %q, want %q", it.Name, "shop.example")
	}
	if it.ListID != models.DefaultListID {
		t.Errorf("ListID = %q, want %q", it.ListID, models.DefaultListID)
	}
	if it.Currency != "USD" {
		t.Errorf("Currency = %q, want %q", it.Currency, "USD")
	}
	if it.StockStatus != models.StockUnknown {
		t.Errorf("StockStatus = %q, want %q", it.StockStatus, models.StockUnknown)
	}
}

func TestCreateItemRefusedURL(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"forbidden scheme", "ftp://shop.example/widget", 400},
		{"missing host", "https:///widget", 400},
		{"localhost", "http://localhost/widget", 422},
		{"private address", "http://10.0.0.5/widget", 422},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.handlers.Items.CreateItem(context.Background(), &CreateItemInput{Body: ItemBody{URL: tt.url}})
			assertStatus(t, err, tt.want)
		})
	}
}

func TestGetItem(t *testing.T) {
	f := newFixture(t)
	it := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/widget", Name: "Widget"})

	out, err := f.handlers.Items.GetItem(context.Background(), &GetItemInput{ID: it.ID})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if out.Body.Name != "Widget" {
		t.Errorf("Name = %q, want %q", out.Body.Name, "Widget")
	}

	_, err = f.handlers.Items.GetItem(context.Background(), &GetItemInput{ID: "missing"})
	assertStatus(t, err, 404)
}

func TestListItemsKeepsInsertionOrder(t *testing.T) {
	f := newFixture(t)
	first := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/a"})
	second := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/b"})

	out, err := f.handlers.Items.ListItems(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if out.Body.Count != 2 || len(out.Body.Items) != 2 {
		t.Fatalf("Count = %d, len = %d, want 2", out.Body.Count, len(out.Body.Items))
	}
	if out.Body.Items[0].ID != first.ID || out.Body.Items[1].ID != second.ID {
		t.Errorf("order = [%s, %s], want [%s, %s]",
			out.Body.Items[0].ID, out.Body.Items[1].ID, first.ID, second.ID)
	}
}

func TestListItemsSortedByUSDPrice(t *testing.T) {
	f := newFixture(t)
	eur := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/eur"})
	usd := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/usd"})
	bare := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/new"})

	now := time.Now()
	applyPrice(t, f.tracker, eur.ID, 92, "EUR", now) // 100 USD at the seeded 0.92 rate
	applyPrice(t, f.tracker, usd.ID, 50, "USD", now)

	out, err := f.handlers.Items.ListItems(context.Background(), &ListItemsInput{Sort: "priceUsd"})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(out.Body.Items) != 3 {
		t.Fatalf("len = %d, want 3", len(out.Body.Items))
	}
	got := []string{out.Body.Items[0].ID, out.Body.Items[1].ID, out.Body.Items[2].ID}
	want := []string{usd.ID, eur.ID, bare.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v (cheapest in USD first, unpriced last)", got, want)
		}
	}
}

func applyPrice(t *testing.T, tr *tracker.Tracker, id string, price float64, currency string, now time.Time) {
	t.Helper()
	if _, err := tr.ApplyCheck(id, tracker.Observation{
		Price:       &price,
		Currency:    currency,
		StockStatus: models.StockInStock,
	}, now); err != nil {
		t.Fatalf("ApplyCheck(%s): %v", id, err)
	}
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t)
	it := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/widget", Name: "Widget"})

	target := 99.0
	out, err := f.handlers.Items.UpdateItem(context.Background(), &UpdateItemInput{
		ID: it.ID,
		Body: ItemBody{
			URL:         it.URL,
			Name:        "Renamed",
			TargetPrice: &target,
		},
	})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if out.Body.Name != "Renamed" {
		t.Errorf("Name = %q, want %q", out.Body.Name, "Renamed")
	}
	if out.Body.TargetPrice == nil || *out.Body.TargetPrice != 99 {
		t.Errorf("TargetPrice = %v, want 99", out.Body.TargetPrice)
	}

	_, err = f.handlers.Items.UpdateItem(context.Background(), &UpdateItemInput{
		ID:   "missing",
		Body: ItemBody{URL: "https://shop.example/widget"},
	})
	assertStatus(t, err, 404)
}

func TestDeleteItem(t *testing.T) {
	f := newFixture(t)
	it := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/widget"})

	out, err := f.handlers.Items.DeleteItem(context.Background(), &DeleteItemInput{ID: it.ID})
	if err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if !out.Body.Success {
		t.Error("expected Success")
	}

	_, err = f.handlers.Items.DeleteItem(context.Background(), &DeleteItemInput{ID: it.ID})
	assertStatus(t, err, 404)
}

// ========================================
// Sweep Tests
// ========================================

func TestTriggerSweep(t *testing.T) {
	f := newFixture(t)

	out, err := f.handlers.Sweep.TriggerSweep(context.Background(), nil)
	if err != nil {
		t.Fatalf("TriggerSweep: %v", err)
	}
	if !out.Body.Started {
		t.Error("expected Started")
	}
	if f.sweeps.calls != 1 {
		t.Errorf("scheduler calls = %d, want 1", f.sweeps.calls)
	}
}

func TestTriggerSweepBusy(t *testing.T) {
	f := newFixture(t)
	f.sweeps.busy = true

	_, err := f.handlers.Sweep.TriggerSweep(context.Background(), nil)
	assertStatus(t, err, 409)
}

func TestSweepStatus(t *testing.T) {
	f := newFixture(t)
	f.sweeps.status = scheduler.Status{Sweeping: true, CurrentItemID: "abc"}

	out, err := f.handlers.Sweep.SweepStatus(context.Background(), nil)
	if err != nil {
		t.Fatalf("SweepStatus: %v", err)
	}
	if !out.Body.Sweeping {
		t.Error("expected Sweeping")
	}
	if out.Body.CurrentItemID != "abc" {
		t.Errorf("CurrentItemID = %q, want %q", out.Body.CurrentItemID, "abc")
	}
}

// ========================================
// Settings Tests
// ========================================

func TestUpdateWebhooks(t *testing.T) {
	f := newFixture(t)

	input := &UpdateWebhooksInput{}
	input.Body.DiscordWebhook = "https://discord.com/api/webhooks/1/abc"
	input.Body.TelegramWebhook = "123:token"
	input.Body.TelegramChatID = "42"

	out, err := f.handlers.Settings.UpdateWebhooks(context.Background(), input)
	if err != nil {
		t.Fatalf("UpdateWebhooks: %v", err)
	}
	if out.Body.DiscordWebhook != "https://discord.com/api/webhooks/1/abc" {
		t.Errorf("DiscordWebhook = %q", out.Body.DiscordWebhook)
	}

	got, err := f.handlers.Settings.GetSettings(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.Body.TelegramChatID != "42" {
		t.Errorf("TelegramChatID = %q, want %q", got.Body.TelegramChatID, "42")
	}
}

func TestAlertRulesRoundTrip(t *testing.T) {
	f := newFixture(t)

	input := &UpdateAlertRulesInput{}
	input.Body.TargetHitEnabled = true
	input.Body.PriceDrop24hEnabled = true
	input.Body.PriceDrop24hPercent = 10
	input.Body.LowConfidenceThreshold = 40
	input.Body.StaleHours = 6
	input.Body.NotifyCooldownMinutes = 60

	out, err := f.handlers.Settings.UpdateAlertRules(context.Background(), input)
	if err != nil {
		t.Fatalf("UpdateAlertRules: %v", err)
	}
	if out.Body.PriceDrop24hPercent != 10 {
		t.Errorf("PriceDrop24hPercent = %v, want 10", out.Body.PriceDrop24hPercent)
	}
	if out.Body.PriceDropEnabled {
		t.Error("PriceDropEnabled should be replaced with false")
	}

	got, err := f.handlers.Settings.GetAlertRules(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetAlertRules: %v", err)
	}
	if got.Body.NotifyCooldownMinutes != 60 {
		t.Errorf("NotifyCooldownMinutes = %d, want 60", got.Body.NotifyCooldownMinutes)
	}
}

// ========================================
// List Tests
// ========================================

func TestListLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	createInput := &CreateListInput{}
	createInput.Body.Name = "Electronics"
	created, err := f.handlers.Settings.CreateList(ctx, createInput)
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if created.Body.ID == "" || created.Body.Name != "Electronics" {
		t.Fatalf("created = %+v", created.Body)
	}

	lists, err := f.handlers.Settings.ListLists(ctx, nil)
	if err != nil {
		t.Fatalf("ListLists: %v", err)
	}
	if len(lists.Body.Lists) != 2 {
		t.Fatalf("len(lists) = %d, want 2", len(lists.Body.Lists))
	}
	if lists.Body.Lists[0].ID != models.DefaultListID {
		t.Errorf("first list = %q, want default", lists.Body.Lists[0].ID)
	}

	renameInput := &RenameListInput{ID: created.Body.ID}
	renameInput.Body.Name = "Gadgets"
	renamed, err := f.handlers.Settings.RenameList(ctx, renameInput)
	if err != nil {
		t.Fatalf("RenameList: %v", err)
	}
	if renamed.Body.Name != "Gadgets" {
		t.Errorf("Name = %q, want %q", renamed.Body.Name, "Gadgets")
	}
}

func TestDeleteListReassignsItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	createInput := &CreateListInput{}
	createInput.Body.Name = "Electronics"
	list, err := f.handlers.Settings.CreateList(ctx, createInput)
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	it := createItem(t, f.handlers, ItemBody{URL: "https://shop.example/widget", ListID: list.Body.ID})

	out, err := f.handlers.Settings.DeleteList(ctx, &DeleteListInput{ID: list.Body.ID})
	if err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if out.Body.Reassigned != 1 {
		t.Errorf("Reassigned = %d, want 1", out.Body.Reassigned)
	}

	got, err := f.handlers.Items.GetItem(ctx, &GetItemInput{ID: it.ID})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Body.ListID != models.DefaultListID {
		t.Errorf("ListID = %q, want default", got.Body.ListID)
	}
}

func TestDeleteDefaultListRefused(t *testing.T) {
	f := newFixture(t)

	_, err := f.handlers.Settings.DeleteList(context.Background(), &DeleteListInput{ID: models.DefaultListID})
	assertStatus(t, err, 422)

	_, err = f.handlers.Settings.DeleteList(context.Background(), &DeleteListInput{ID: "missing"})
	assertStatus(t, err, 404)
}

// ========================================
// Diagnostics Tests
// ========================================

func TestGetDiagnostics(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.diag.Add(models.CheckRecord{Time: now.Add(-2 * time.Minute), ItemID: "a", OK: true})
	f.diag.Add(models.CheckRecord{Time: now.Add(-time.Minute), ItemID: "b", OK: false, Error: "navigation_failed"})
	f.diag.Add(models.CheckRecord{Time: now, ItemID: "c", OK: true})

	out, err := f.handlers.Diag.GetDiagnostics(context.Background(), &GetDiagnosticsInput{Limit: 2})
	if err != nil {
		t.Fatalf("GetDiagnostics: %v", err)
	}
	if out.Body.Count != 2 {
		t.Fatalf("Count = %d, want 2", out.Body.Count)
	}
	if out.Body.Checks[0].ItemID != "c" {
		t.Errorf("newest record = %q, want %q", out.Body.Checks[0].ItemID, "c")
	}

	failed, err := f.handlers.Diag.GetDiagnostics(context.Background(), &GetDiagnosticsInput{Limit: 10, Failed: true})
	if err != nil {
		t.Fatalf("GetDiagnostics failed-only: %v", err)
	}
	if failed.Body.Count != 1 || failed.Body.Checks[0].ItemID != "b" {
		t.Fatalf("failed-only = %+v", failed.Body.Checks)
	}
}

func TestGetRatesEmptyTable(t *testing.T) {
	f := newFixture(t)

	out, err := f.handlers.Diag.GetRates(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetRates: %v", err)
	}
	if out.Body.Base != "USD" {
		t.Errorf("Base = %q, want USD", out.Body.Base)
	}
	if len(out.Body.Rates) != 0 {
		t.Errorf("Rates = %v, want empty", out.Body.Rates)
	}
	if out.Body.LastRefresh != nil {
		t.Errorf("LastRefresh = %v, want nil", out.Body.LastRefresh)
	}
}

// ========================================
// Probe Tests
// ========================================

func TestHealthz(t *testing.T) {
	out, err := Healthz(context.Background(), nil)
	if err != nil {
		t.Fatalf("Healthz: %v", err)
	}
	if out.Body.Status != "ok" {
		t.Errorf("Status = %q, want %q", out.Body.Status, "ok")
	}
}

func TestVersion(t *testing.T) {
	out, err := Version(context.Background(), nil)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if out.Body.Version == "" || out.Body.GoVersion == "" {
		t.Errorf("incomplete version info: %+v", out.Body)
	}
}
