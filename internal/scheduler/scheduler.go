// Package scheduler drives the periodic sweep: it walks tracked items in
// insertion order, runs each through guard, fetch, and extraction, folds
// the outcome into the tracker, and hands the result to the alert engine.
// One sweep runs at a time; manual triggers while one is in flight report
// busy instead of queueing.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aloglu/centsible/internal/alert"
	"github.com/aloglu/centsible/internal/config"
	"github.com/aloglu/centsible/internal/diag"
	"github.com/aloglu/centsible/internal/extract"
	"github.com/aloglu/centsible/internal/fetch"
	"github.com/aloglu/centsible/internal/fx"
	"github.com/aloglu/centsible/internal/models"
	"github.com/aloglu/centsible/internal/store"
	"github.com/aloglu/centsible/internal/tracker"
	"github.com/aloglu/centsible/internal/urlguard"
)

// Notifier delivers alert messages. Satisfied by *notify.Notifier.
type Notifier interface {
	Send(title, body string)
}

// RuleSource supplies the current alert rules. Satisfied by
// *settings.Service.
type RuleSource interface {
	AlertRules() models.AlertRules
}

// Snapshotter uploads state snapshots. Satisfied by *store.Snapshots.
type Snapshotter interface {
	Enabled() bool
	Upload(ctx context.Context) error
}

// Deps collects the scheduler's collaborators. FX and Snapshots may be nil
// when the corresponding job is not wanted.
type Deps struct {
	Config    *config.Config
	Tracker   *tracker.Tracker
	Guard     *urlguard.Guard
	Fetcher   fetch.Fetcher
	Extractor *extract.Extractor
	Alerts    *alert.Engine
	Notifier  Notifier
	Rules     RuleSource
	Diag      *diag.Log
	Store     *store.Store
	FX        *fx.Table
	Snapshots Snapshotter
}

// Status is the sweep state exposed to the API.
type Status struct {
	Sweeping         bool       `json:"sweeping"`
	CurrentItemID    string     `json:"currentItemId,omitempty"`
	LastSweepStart   *time.Time `json:"lastSweepStart,omitempty"`
	LastSweepEnd     *time.Time `json:"lastSweepEnd,omitempty"`
	LastSweepChecked int        `json:"lastSweepChecked"`
	LastSweepFailed  int        `json:"lastSweepFailed"`
	NextSweep        *time.Time `json:"nextSweep,omitempty"`
}

// Scheduler owns the sweep loop and the periodic jobs.
type Scheduler struct {
	deps   Deps
	logger *slog.Logger

	cron       *cron.Cron
	sweepEntry cron.EntryID
	sweeping   atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	mu          sync.Mutex
	currentItem string
	lastStart   time.Time
	lastEnd     time.Time
	lastChecked int
	lastFailed  int
}

func New(deps Deps, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		deps:   deps,
		logger: logger.With("component", "scheduler"),
		cron:   cron.New(),
	}
}

// Start registers the periodic jobs and begins ticking. The passed context
// governs every sweep; cancel it before calling Stop to abort an in-flight
// fetch.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	id, err := s.cron.AddFunc("@every "+s.deps.Config.SweepInterval.String(), func() {
		s.TriggerSweep()
	})
	if err != nil {
		s.logger.Error("registering sweep job failed", "error", err)
	} else {
		s.sweepEntry = id
	}

	if s.deps.FX != nil {
		if _, err := s.cron.AddFunc("@every "+s.deps.Config.FXRefresh.String(), s.refreshFX); err != nil {
			s.logger.Error("registering fx job failed", "error", err)
		}
	}
	if s.deps.Snapshots != nil && s.deps.Snapshots.Enabled() {
		if _, err := s.cron.AddFunc(s.deps.Config.SnapshotSchedule, s.uploadSnapshot); err != nil {
			s.logger.Error("registering snapshot job failed", "error", err, "schedule", s.deps.Config.SnapshotSchedule)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"sweepInterval", s.deps.Config.SweepInterval,
		"checkDelay", s.deps.Config.CheckDelay,
		"items", s.deps.Tracker.Count())

	if s.deps.Config.SweepOnStart {
		s.TriggerSweep()
	}
}

// Stop halts the cron jobs, cancels the in-flight sweep, and waits for it
// to wind down.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// TriggerSweep starts a sweep unless one is already running. Reports
// whether a new sweep was started.
func (s *Scheduler) TriggerSweep() bool {
	if !s.sweeping.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go s.runSweep()
	return true
}

// Sweeping reports whether a sweep is in flight.
func (s *Scheduler) Sweeping() bool {
	return s.sweeping.Load()
}

// CurrentItem returns the id of the item being checked, or empty.
func (s *Scheduler) CurrentItem() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentItem
}

// Status returns a snapshot of the sweep state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		Sweeping:         s.sweeping.Load(),
		CurrentItemID:    s.currentItem,
		LastSweepChecked: s.lastChecked,
		LastSweepFailed:  s.lastFailed,
	}
	if !s.lastStart.IsZero() {
		start := s.lastStart
		st.LastSweepStart = &start
	}
	if !s.lastEnd.IsZero() {
		end := s.lastEnd
		st.LastSweepEnd = &end
	}
	s.mu.Unlock()

	if s.sweepEntry != 0 {
		if next := s.cron.Entry(s.sweepEntry).Next; !next.IsZero() {
			st.NextSweep = &next
		}
	}
	return st
}

func (s *Scheduler) runSweep() {
	defer s.wg.Done()
	defer s.sweeping.Store(false)

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	s.mu.Lock()
	s.lastStart = start
	s.lastChecked = 0
	s.lastFailed = 0
	s.mu.Unlock()

	ids := s.deps.Tracker.IDs()
	s.logger.Info("sweep started", "items", len(ids))

	checked, failed := 0, 0
	for i, id := range ids {
		if ctx.Err() != nil {
			s.logger.Warn("sweep aborted", "remaining", len(ids)-i)
			break
		}

		s.setCurrent(id)
		checked++
		if !s.checkItem(ctx, id) {
			failed++
		}

		if i < len(ids)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(s.deps.Config.CheckDelay):
			}
		}
	}
	s.setCurrent("")

	s.finishSweep()

	end := time.Now()
	s.mu.Lock()
	s.lastEnd = end
	s.lastChecked = checked
	s.lastFailed = failed
	s.mu.Unlock()

	s.logger.Info("sweep finished", "checked", checked, "failed", failed, "duration", end.Sub(start))
}

// finishSweep persists items and diagnostics once per sweep and prunes
// cooldowns for deleted items.
func (s *Scheduler) finishSweep() {
	if err := s.deps.Tracker.SaveState(); err != nil {
		s.logger.Error("persisting items failed", "error", err)
	}
	if err := s.deps.Store.Save(store.DiagnosticsFile, s.deps.Diag.Snapshot()); err != nil {
		s.logger.Error("persisting diagnostics failed", "error", err)
	}
	s.deps.Alerts.Prune(s.deps.Tracker.IDs())
}

// checkItem runs one item through the pipeline. Returns false when the
// check was recorded as failed.
func (s *Scheduler) checkItem(ctx context.Context, id string) bool {
	it, ok := s.deps.Tracker.Get(id)
	if !ok {
		return true
	}
	now := time.Now()

	if err := s.deps.Guard.Validate(ctx, it.URL); err != nil {
		s.logger.Warn("url refused", "item", id, "url", it.URL, "error", err)
		s.recordFailure(it, err.Error(), now)
		return false
	}

	content, err := s.deps.Fetcher.Fetch(ctx, it.URL)
	if err != nil {
		s.logger.Warn("fetch failed", "item", id, "url", it.URL, "kind", fetch.KindOf(err), "error", err)
		s.recordFailure(it, err.Error(), now)
		return false
	}

	res := s.deps.Extractor.Extract(content.HTML, it.Selector, it.URL)

	if res.Price == nil && res.Availability.Status != models.StockOutOfStock {
		s.recordFailure(it, "No price extracted", now)
		return false
	}

	obs := tracker.Observation{
		Price:                res.Price,
		Currency:             res.Currency,
		ExtractionConfidence: res.Confidence,
		SelectorUsed:         res.SelectorUsed,
		Source:               res.Source,
		StockStatus:          res.Availability.Status,
		StockConfidence:      res.Availability.Confidence,
		StockReason:          res.Availability.Reason,
		StockSource:          res.Availability.Source,
	}
	applied, err := s.deps.Tracker.ApplyCheck(id, obs, now)
	if err != nil {
		// Deleted while we were fetching.
		s.logger.Debug("check result dropped", "item", id, "error", err)
		return true
	}

	s.dispatchAlerts(applied, now)

	s.deps.Diag.Add(models.CheckRecord{
		Time:         now,
		ItemID:       it.ID,
		ItemName:     it.Name,
		URL:          it.URL,
		ListID:       it.ListID,
		OK:           true,
		Price:        res.Price,
		Currency:     res.Currency,
		Confidence:   res.Confidence,
		Source:       res.Source,
		SelectorUsed: res.SelectorUsed,
		StockStatus:  res.Availability.Status,
		OutOfStock:   res.Availability.Status == models.StockOutOfStock,
		StockReason:  res.Availability.Reason,
	})
	return true
}

func (s *Scheduler) recordFailure(it models.Item, message string, now time.Time) {
	applied, err := s.deps.Tracker.ApplyCheckFailure(it.ID, message, now)
	if err == nil {
		s.dispatchAlerts(applied, now)
	}

	s.deps.Diag.Add(models.CheckRecord{
		Time:        now,
		ItemID:      it.ID,
		ItemName:    it.Name,
		URL:         it.URL,
		ListID:      it.ListID,
		OK:          false,
		StockStatus: it.StockStatus,
		Error:       message,
	})
}

func (s *Scheduler) dispatchAlerts(applied tracker.CheckApplied, now time.Time) {
	rules := s.deps.Rules.AlertRules()
	for _, ev := range s.deps.Alerts.Evaluate(applied.Before, applied.After, rules, now) {
		s.deps.Notifier.Send(ev.Title, ev.Body)
	}
}

func (s *Scheduler) setCurrent(id string) {
	s.mu.Lock()
	s.currentItem = id
	s.mu.Unlock()
}

func (s *Scheduler) refreshFX() {
	ctx, cancel := context.WithTimeout(contextOrBackground(s.ctx), 30*time.Second)
	defer cancel()

	if err := s.deps.FX.Refresh(ctx); err != nil {
		s.logger.Warn("fx refresh failed", "error", err)
		return
	}
	s.deps.Tracker.RefreshUSD()
}

func (s *Scheduler) uploadSnapshot() {
	ctx, cancel := context.WithTimeout(contextOrBackground(s.ctx), 2*time.Minute)
	defer cancel()

	if err := s.deps.Snapshots.Upload(ctx); err != nil {
		s.logger.Warn("snapshot upload failed", "error", err)
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
