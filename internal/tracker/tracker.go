// Package tracker owns the tracked-item registry. All mutation, whether
// from the edit API or from the sweep, goes through one Tracker and its
// single lock; everything handed back out is a deep copy.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aloglu/centsible/internal/models"
	"github.com/aloglu/centsible/internal/store"
	"github.com/aloglu/centsible/internal/urlguard"
)

// historyGap is the interval after which a repeated price still earns a new
// history point, so long-stable items keep a visible trail.
const historyGap = 24 * time.Hour

var (
	ErrNotFound      = errors.New("tracker: item not found")
	ErrInvalidTarget = errors.New("tracker: target price must be positive")
	ErrEmptyURL      = errors.New("tracker: url is required")
)

// RateSource resolves USD-relative FX rates. Satisfied by *fx.Table.
type RateSource interface {
	Rate(currency string) (float64, bool)
}

// ItemEdit carries the user-editable fields for create and update.
type ItemEdit struct {
	Name        string
	URL         string
	Selector    string
	TargetPrice *float64
	ListID      string
}

// Observation is the distilled outcome of one successful page check.
type Observation struct {
	Price                *float64
	Currency             string
	ExtractionConfidence int
	SelectorUsed         string
	Source               string
	StockStatus          models.StockStatus
	StockConfidence      int
	StockReason          string
	StockSource          string
}

// CheckApplied reports an item before and after a check was folded in. The
// alert engine compares the two; Before carries the pre-check price and
// history the rules are defined over.
type CheckApplied struct {
	Before models.Item
	After  models.Item
}

// Tracker is the registry of tracked items, kept in insertion order.
type Tracker struct {
	store  *store.Store
	guard  *urlguard.Guard
	rates  RateSource
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	items []*models.Item
	index map[string]*models.Item
}

// New loads persisted items, if any, and returns a ready Tracker.
func New(st *store.Store, guard *urlguard.Guard, rates RateSource, logger *slog.Logger) (*Tracker, error) {
	t := &Tracker{
		store:  st,
		guard:  guard,
		rates:  rates,
		logger: logger.With("component", "tracker"),
		now:    time.Now,
		index:  make(map[string]*models.Item),
	}

	var loaded []models.Item
	err := st.Load(store.ItemsFile, &loaded)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	for i := range loaded {
		it := loaded[i]
		if it.ID == "" || t.index[it.ID] != nil {
			t.logger.Warn("skipping malformed persisted item", "id", it.ID, "url", it.URL)
			continue
		}
		if it.ListID == "" {
			it.ListID = models.DefaultListID
		}
		if it.Currency == "" {
			it.Currency = "USD"
		}
		if it.StockStatus == "" {
			it.StockStatus = models.StockUnknown
		}
		t.items = append(t.items, &it)
		t.index[it.ID] = &it
	}
	t.logger.Info("tracker loaded", "items", len(t.items))
	return t, nil
}

// Count returns the number of tracked items.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// IDs returns item IDs in insertion order. Sweeps iterate this snapshot and
// look each item up again so deletions mid-sweep are honored.
func (t *Tracker) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, len(t.items))
	for i, it := range t.items {
		ids[i] = it.ID
	}
	return ids
}

// Items returns deep copies of all items in insertion order.
func (t *Tracker) Items() []models.Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.Item, len(t.items))
	for i, it := range t.items {
		out[i] = it.Clone()
	}
	return out
}

// Get returns a deep copy of one item.
func (t *Tracker) Get(id string) (models.Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.index[id]
	if !ok {
		return models.Item{}, false
	}
	return it.Clone(), true
}

// Add validates the URL and registers a new item. The item starts with no
// observations; the next sweep fills them in.
func (t *Tracker) Add(ctx context.Context, edit ItemEdit) (models.Item, error) {
	if err := validateEdit(edit); err != nil {
		return models.Item{}, err
	}
	if err := t.guard.Validate(ctx, edit.URL); err != nil {
		return models.Item{}, err
	}

	now := t.now()
	it := &models.Item{
		ID:          ulid.Make().String(),
		URL:         edit.URL,
		Name:        displayName(edit),
		Selector:    edit.Selector,
		TargetPrice: copyFloat(edit.TargetPrice),
		ListID:      listOrDefault(edit.ListID),
		Currency:    "USD",
		StockStatus: models.StockUnknown,
		History:     []models.PricePoint{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	t.mu.Lock()
	t.items = append(t.items, it)
	t.index[it.ID] = it
	out := it.Clone()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Info("item added", "id", out.ID, "url", out.URL, "list", out.ListID)
	return out, t.persist(snap)
}

// Update replaces the user-editable fields of an item. Changing the URL
// re-validates it and resets every observed field, since the old price
// trail belongs to the old page.
func (t *Tracker) Update(ctx context.Context, id string, edit ItemEdit) (models.Item, error) {
	if err := validateEdit(edit); err != nil {
		return models.Item{}, err
	}

	t.mu.Lock()
	it, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return models.Item{}, ErrNotFound
	}
	urlChanged := it.URL != edit.URL
	t.mu.Unlock()

	if urlChanged {
		if err := t.guard.Validate(ctx, edit.URL); err != nil {
			return models.Item{}, err
		}
	}

	t.mu.Lock()
	it, ok = t.index[id]
	if !ok {
		t.mu.Unlock()
		return models.Item{}, ErrNotFound
	}
	if it.URL != edit.URL {
		resetObservations(it)
	}
	it.URL = edit.URL
	it.Name = displayName(edit)
	it.Selector = edit.Selector
	it.TargetPrice = copyFloat(edit.TargetPrice)
	it.ListID = listOrDefault(edit.ListID)
	it.UpdatedAt = t.now()
	out := it.Clone()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Info("item updated", "id", id, "url", out.URL)
	return out, t.persist(snap)
}

// Delete removes an item.
func (t *Tracker) Delete(id string) error {
	t.mu.Lock()
	if _, ok := t.index[id]; !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	delete(t.index, id)
	for i, it := range t.items {
		if it.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			break
		}
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Info("item deleted", "id", id)
	return t.persist(snap)
}

// ReassignList moves every item on the from list to the to list and
// returns how many moved. Used when a list is deleted.
func (t *Tracker) ReassignList(from, to string) (int, error) {
	if to == "" {
		to = models.DefaultListID
	}

	t.mu.Lock()
	moved := 0
	for _, it := range t.items {
		if it.ListID == from {
			it.ListID = to
			it.UpdatedAt = t.now()
			moved++
		}
	}
	var snap []models.Item
	if moved > 0 {
		snap = t.snapshotLocked()
	}
	t.mu.Unlock()

	if moved == 0 {
		return 0, nil
	}
	t.logger.Info("items reassigned", "from", from, "to", to, "count", moved)
	return moved, t.persist(snap)
}

// ApplyCheck folds a successful check into the item and returns before and
// after snapshots for alert evaluation.
//
// Out-of-stock results only refresh lastSeenPrice; currentPrice and history
// keep the last in-stock price. Otherwise a changed price moves
// currentPrice and earns a history point unless the tail of the history
// already holds the same price less than 24h old.
func (t *Tracker) ApplyCheck(id string, obs Observation, now time.Time) (CheckApplied, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.index[id]
	if !ok {
		return CheckApplied{}, ErrNotFound
	}
	before := it.Clone()

	checked := now
	it.LastChecked = &checked
	attempt := now
	it.LastCheckAttempt = &attempt
	it.LastCheckStatus = models.CheckOK
	it.LastCheckError = ""

	it.Currency = currencyOrUSD(obs.Currency)
	it.ExtractionConfidence = obs.ExtractionConfidence
	it.StockStatus = obs.StockStatus
	if it.StockStatus == "" {
		it.StockStatus = models.StockUnknown
	}
	it.StockConfidence = obs.StockConfidence
	it.StockReason = obs.StockReason
	it.StockSource = obs.StockSource

	if obs.StockStatus == models.StockOutOfStock {
		if obs.Price != nil {
			it.LastSeenPrice = copyFloat(obs.Price)
		}
	} else if obs.Price != nil {
		price := *obs.Price
		it.LastSeenPrice = &price
		if it.CurrentPrice == nil || *it.CurrentPrice != price {
			if tailAllowsAppend(it.History, price, now) {
				it.History = append(it.History, models.PricePoint{Date: now, Price: price})
			}
			current := price
			it.CurrentPrice = &current
		}
	}

	it.PriceInUSD = t.toUSD(it.CurrentPrice, it.Currency)
	it.UpdatedAt = now

	return CheckApplied{Before: before, After: it.Clone()}, nil
}

// ApplyCheckFailure records a failed attempt. Observed fields and
// lastChecked stay as they were.
func (t *Tracker) ApplyCheckFailure(id, message string, now time.Time) (CheckApplied, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.index[id]
	if !ok {
		return CheckApplied{}, ErrNotFound
	}
	before := it.Clone()

	attempt := now
	it.LastCheckAttempt = &attempt
	it.LastCheckStatus = models.CheckFail
	it.LastCheckError = message
	it.UpdatedAt = now

	return CheckApplied{Before: before, After: it.Clone()}, nil
}

// RefreshUSD recomputes priceInUSD for every item against the current FX
// table. Called after an FX refresh so displayed conversions stay current.
func (t *Tracker) RefreshUSD() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, it := range t.items {
		it.PriceInUSD = t.toUSD(it.CurrentPrice, it.Currency)
	}
}

// SaveState persists the full item set. The sweep calls this once at the
// end rather than after every item.
func (t *Tracker) SaveState() error {
	t.mu.Lock()
	snap := t.snapshotLocked()
	t.mu.Unlock()
	return t.persist(snap)
}

func (t *Tracker) snapshotLocked() []models.Item {
	snap := make([]models.Item, len(t.items))
	for i, it := range t.items {
		snap[i] = it.Clone()
	}
	return snap
}

func (t *Tracker) persist(snap []models.Item) error {
	if err := t.store.Save(store.ItemsFile, snap); err != nil {
		t.logger.Error("saving items failed", "error", err)
		return err
	}
	return nil
}

func (t *Tracker) toUSD(price *float64, currency string) *float64 {
	if price == nil {
		return nil
	}
	rate, ok := t.rates.Rate(currency)
	if !ok {
		return nil
	}
	usd := *price / rate
	return &usd
}

func tailAllowsAppend(history []models.PricePoint, price float64, now time.Time) bool {
	if len(history) == 0 {
		return true
	}
	last := history[len(history)-1]
	return last.Price != price || now.Sub(last.Date) > historyGap
}

func validateEdit(edit ItemEdit) error {
	if edit.URL == "" {
		return ErrEmptyURL
	}
	if edit.TargetPrice != nil && *edit.TargetPrice <= 0 {
		return ErrInvalidTarget
	}
	return nil
}

func resetObservations(it *models.Item) {
	it.CurrentPrice = nil
	it.Currency = "USD"
	it.PriceInUSD = nil
	it.LastSeenPrice = nil
	it.StockStatus = models.StockUnknown
	it.StockConfidence = 0
	it.StockReason = ""
	it.StockSource = ""
	it.ExtractionConfidence = 0
	it.LastChecked = nil
	it.LastCheckAttempt = nil
	it.LastCheckStatus = ""
	it.LastCheckError = ""
	it.History = []models.PricePoint{}
}

func displayName(edit ItemEdit) string {
	if edit.Name != "" {
		return edit.Name
	}
	if u, err := url.Parse(edit.URL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return edit.URL
}

func listOrDefault(id string) string {
	if id == "" {
		return models.DefaultListID
	}
	return id
}

func currencyOrUSD(ccy string) string {
	if ccy == "" {
		return "USD"
	}
	return ccy
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
