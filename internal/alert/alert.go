// Package alert decides when a check result warrants a notification. Rules
// are evaluated against the item state before and after the check; a keyed
// cooldown map keeps repeat fires of the same rule for the same item apart.
package alert

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/aloglu/centsible/internal/models"
)

// Rule names, used as cooldown keys and diagnostic tags.
type Rule string

const (
	RuleTargetHit     Rule = "target"
	RulePriceDrop     Rule = "price_drop"
	RulePriceDrop24h  Rule = "price_drop_24h"
	RuleAllTimeLow    Rule = "all_time_low"
	RuleLowConfidence Rule = "low_confidence"
	RuleStale         Rule = "stale"
	RuleOutOfStock    Rule = "out_of_stock"
)

// Event is one alert ready for dispatch.
type Event struct {
	Rule     Rule
	ItemID   string
	ItemName string
	Title    string
	Body     string
	At       time.Time
}

type fireKey struct {
	rule   Rule
	itemID string
}

// Engine evaluates alert rules and enforces cooldowns. Cooldown state is
// in memory only and resets on restart.
type Engine struct {
	logger *slog.Logger

	mu        sync.Mutex
	lastFired map[fireKey]time.Time
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger:    logger.With("component", "alert"),
		lastFired: make(map[fireKey]time.Time),
	}
}

// Evaluate runs every rule over a before/after item pair and returns the
// events that survive the cooldown. Price rules read the pre-check price
// and history from before; fail-path rules read the attempt outcome from
// after.
func (e *Engine) Evaluate(before, after models.Item, rules models.AlertRules, now time.Time) []Event {
	candidates := collect(before, after, rules, now)
	if len(candidates) == 0 {
		return nil
	}

	cooldown := time.Duration(rules.NotifyCooldownMinutes) * time.Minute

	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []Event
	for _, ev := range candidates {
		key := fireKey{rule: ev.Rule, itemID: ev.ItemID}
		if last, ok := e.lastFired[key]; ok && cooldown > 0 && now.Sub(last) < cooldown {
			e.logger.Debug("alert suppressed by cooldown", "rule", ev.Rule, "item", ev.ItemID, "since", now.Sub(last))
			continue
		}
		e.lastFired[key] = now
		e.logger.Info("alert fired", "rule", ev.Rule, "item", ev.ItemID, "title", ev.Title)
		fired = append(fired, ev)
	}
	return fired
}

// Prune drops cooldown entries for items that no longer exist.
func (e *Engine) Prune(liveIDs []string) {
	live := make(map[string]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.lastFired {
		if _, ok := live[key.itemID]; !ok {
			delete(e.lastFired, key)
		}
	}
}

func collect(before, after models.Item, rules models.AlertRules, now time.Time) []Event {
	if after.LastCheckStatus == models.CheckFail {
		return staleEvents(after, rules, now)
	}

	var out []Event
	newPrice := after.CurrentPrice
	oldPrice := before.CurrentPrice

	if changed(oldPrice, newPrice) {
		if rules.TargetHitEnabled && after.TargetPrice != nil && oldPrice != nil &&
			*newPrice <= *after.TargetPrice && *oldPrice > *after.TargetPrice {
			out = append(out, event(after, RuleTargetHit, now,
				fmt.Sprintf("🎯 Target hit: %s", after.Name),
				fmt.Sprintf("Now %s, at or below your target of %s.\n%s",
					money(*newPrice, after.Currency), money(*after.TargetPrice, after.Currency), after.URL)))
		}

		if rules.PriceDropEnabled && oldPrice != nil && *newPrice < *oldPrice {
			out = append(out, event(after, RulePriceDrop, now,
				fmt.Sprintf("📉 Price drop: %s", after.Name),
				fmt.Sprintf("%s → %s.\n%s",
					money(*oldPrice, after.Currency), money(*newPrice, after.Currency), after.URL)))
		}

		if rules.PriceDrop24hEnabled && oldPrice != nil && *newPrice < *oldPrice {
			if ref, ok := closestTo(before.History, now.Add(-24*time.Hour)); ok && ref.Price > 0 {
				pct := (ref.Price - *newPrice) / ref.Price * 100
				if pct >= rules.PriceDrop24hPercent {
					out = append(out, event(after, RulePriceDrop24h, now,
						fmt.Sprintf("📉 %s down %s%% in 24h", after.Name, strconv.FormatFloat(pct, 'f', 1, 64)),
						fmt.Sprintf("%s yesterday, %s now.\n%s",
							money(ref.Price, after.Currency), money(*newPrice, after.Currency), after.URL)))
				}
			}
		}

		if rules.AllTimeLowEnabled {
			if low, ok := lowestKnown(before.History, oldPrice); ok && *newPrice < low {
				out = append(out, event(after, RuleAllTimeLow, now,
					fmt.Sprintf("🔥 All-time low: %s", after.Name),
					fmt.Sprintf("Now %s, below the previous low of %s.\n%s",
						money(*newPrice, after.Currency), money(low, after.Currency), after.URL)))
			}
		}
	}

	if rules.LowConfidenceEnabled &&
		after.ExtractionConfidence > 0 && after.ExtractionConfidence < rules.LowConfidenceThreshold {
		out = append(out, event(after, RuleLowConfidence, now,
			fmt.Sprintf("⚠️ Price reading uncertain: %s", after.Name),
			fmt.Sprintf("Extraction confidence is %d. The page may have changed; consider setting a selector.\n%s",
				after.ExtractionConfidence, after.URL)))
	}

	if after.StockStatus == models.StockOutOfStock && before.StockStatus != models.StockOutOfStock {
		out = append(out, event(after, RuleOutOfStock, now,
			fmt.Sprintf("📦 Out of stock: %s", after.Name),
			fmt.Sprintf("%s\n%s", reasonOrDefault(after.StockReason), after.URL)))
	}

	return out
}

func staleEvents(after models.Item, rules models.AlertRules, now time.Time) []Event {
	if !rules.StaleEnabled || after.LastChecked == nil {
		return nil
	}
	age := now.Sub(*after.LastChecked)
	if age <= time.Duration(rules.StaleHours)*time.Hour {
		return nil
	}
	return []Event{event(after, RuleStale, now,
		fmt.Sprintf("⏰ Checks failing: %s", after.Name),
		fmt.Sprintf("No successful check for %dh. Last error: %s\n%s",
			int(age.Hours()), errorOrDefault(after.LastCheckError), after.URL))}
}

func event(it models.Item, rule Rule, now time.Time, title, body string) Event {
	return Event{Rule: rule, ItemID: it.ID, ItemName: it.Name, Title: title, Body: body, At: now}
}

func changed(oldPrice, newPrice *float64) bool {
	switch {
	case newPrice == nil:
		return false
	case oldPrice == nil:
		return true
	default:
		return *oldPrice != *newPrice
	}
}

// closestTo returns the history point nearest the reference time.
func closestTo(history []models.PricePoint, ref time.Time) (models.PricePoint, bool) {
	if len(history) == 0 {
		return models.PricePoint{}, false
	}
	best := history[0]
	bestDist := absDuration(history[0].Date.Sub(ref))
	for _, p := range history[1:] {
		if d := absDuration(p.Date.Sub(ref)); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, true
}

func lowestKnown(history []models.PricePoint, oldPrice *float64) (float64, bool) {
	low := math.Inf(1)
	found := false
	for _, p := range history {
		if p.Price < low {
			low = p.Price
			found = true
		}
	}
	if oldPrice != nil && *oldPrice < low {
		low = *oldPrice
		found = true
	}
	return low, found
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func money(v float64, currency string) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "The page no longer shows it as available."
	}
	return "Page says: " + reason
}

func errorOrDefault(msg string) string {
	if msg == "" {
		return "unknown"
	}
	return msg
}
