package alert

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aloglu/centsible/internal/models"
)

func testEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func floatPtr(v float64) *float64 { return &v }

func baseItem() models.Item {
	return models.Item{
		ID:                   "item-1",
		Name:                 "Widget",
		URL:                  "https://shop.example/widget",
		Currency:             "USD",
		ListID:               models.DefaultListID,
		StockStatus:          models.StockInStock,
		ExtractionConfidence: 90,
		LastCheckStatus:      models.CheckOK,
	}
}

func okPair(oldPrice, newPrice *float64) (models.Item, models.Item) {
	before := baseItem()
	before.CurrentPrice = oldPrice
	after := baseItem()
	after.CurrentPrice = newPrice
	return before, after
}

func has(events []Event, rule Rule) bool {
	for _, ev := range events {
		if ev.Rule == rule {
			return true
		}
	}
	return false
}

func onlyRule(r models.AlertRules, keep Rule) models.AlertRules {
	r.TargetHitEnabled = keep == RuleTargetHit
	r.PriceDropEnabled = keep == RulePriceDrop
	r.PriceDrop24hEnabled = keep == RulePriceDrop24h
	r.AllTimeLowEnabled = keep == RuleAllTimeLow
	r.LowConfidenceEnabled = keep == RuleLowConfidence
	r.StaleEnabled = keep == RuleStale
	return r
}

func TestTargetHitLifecycle(t *testing.T) {
	e := testEngine()
	rules := onlyRule(models.DefaultAlertRules(), RuleTargetHit)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	before, after := okPair(floatPtr(110), floatPtr(99))
	before.TargetPrice = floatPtr(100)
	after.TargetPrice = floatPtr(100)

	events := e.Evaluate(before, after, rules, t0)
	if !has(events, RuleTargetHit) {
		t.Fatalf("crossing below target: events = %+v, want target fire", events)
	}

	// A further slide below the target is not a crossing.
	b2, a2 := okPair(floatPtr(99), floatPtr(98))
	b2.TargetPrice = floatPtr(100)
	a2.TargetPrice = floatPtr(100)
	if events := e.Evaluate(b2, a2, rules, t0.Add(time.Hour)); len(events) != 0 {
		t.Errorf("slide below target: events = %+v, want none", events)
	}

	// Price recovered and crossed again inside the cooldown window.
	b3, a3 := okPair(floatPtr(110), floatPtr(97))
	b3.TargetPrice = floatPtr(100)
	a3.TargetPrice = floatPtr(100)
	if events := e.Evaluate(b3, a3, rules, t0.Add(2*time.Hour)); len(events) != 0 {
		t.Errorf("re-crossing inside cooldown: events = %+v, want suppressed", events)
	}

	// Same crossing once the cooldown has elapsed.
	b4, a4 := okPair(floatPtr(110), floatPtr(96))
	b4.TargetPrice = floatPtr(100)
	a4.TargetPrice = floatPtr(100)
	if events := e.Evaluate(b4, a4, rules, t0.Add(5*time.Hour)); !has(events, RuleTargetHit) {
		t.Errorf("re-crossing after cooldown: events = %+v, want target fire", events)
	}
}

func TestPriceDropCooldownSpacing(t *testing.T) {
	e := testEngine()
	rules := onlyRule(models.DefaultAlertRules(), RulePriceDrop)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var fireTimes []time.Time
	price := 100.0
	for hour := 0; hour <= 5; hour++ {
		now := t0.Add(time.Duration(hour) * time.Hour)
		before, after := okPair(floatPtr(price), floatPtr(price-5))
		price -= 5
		if events := e.Evaluate(before, after, rules, now); has(events, RulePriceDrop) {
			fireTimes = append(fireTimes, now)
		}
	}

	if len(fireTimes) != 2 {
		t.Fatalf("fires = %d (%v), want 2 over six hourly drops", len(fireTimes), fireTimes)
	}
	minGap := time.Duration(rules.NotifyCooldownMinutes) * time.Minute
	if gap := fireTimes[1].Sub(fireTimes[0]); gap < minGap {
		t.Errorf("fire gap = %v, want at least %v", gap, minGap)
	}
}

func TestPriceDrop24h(t *testing.T) {
	rules := onlyRule(models.DefaultAlertRules(), RulePriceDrop24h)
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	history := []models.PricePoint{
		{Date: now.Add(-25 * time.Hour), Price: 200},
		{Date: now.Add(-1 * time.Hour), Price: 198},
	}

	t.Run("fires at threshold", func(t *testing.T) {
		e := testEngine()
		before, after := okPair(floatPtr(198), floatPtr(180))
		before.History = history
		events := e.Evaluate(before, after, rules, now)
		if !has(events, RulePriceDrop24h) {
			t.Errorf("events = %+v, want 24h drop (10%% vs yesterday's 200)", events)
		}
	})

	t.Run("small drop stays quiet", func(t *testing.T) {
		e := testEngine()
		before, after := okPair(floatPtr(198), floatPtr(195))
		before.History = history
		if events := e.Evaluate(before, after, rules, now); len(events) != 0 {
			t.Errorf("events = %+v, want none below percent threshold", events)
		}
	})

	t.Run("no history no fire", func(t *testing.T) {
		e := testEngine()
		before, after := okPair(floatPtr(198), floatPtr(100))
		if events := e.Evaluate(before, after, rules, now); len(events) != 0 {
			t.Errorf("events = %+v, want none without history", events)
		}
	})
}

func TestAllTimeLow(t *testing.T) {
	rules := onlyRule(models.DefaultAlertRules(), RuleAllTimeLow)
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	history := []models.PricePoint{
		{Date: now.Add(-48 * time.Hour), Price: 120},
		{Date: now.Add(-24 * time.Hour), Price: 110},
	}

	t.Run("new low fires", func(t *testing.T) {
		e := testEngine()
		before, after := okPair(floatPtr(110), floatPtr(105))
		before.History = history
		if events := e.Evaluate(before, after, rules, now); !has(events, RuleAllTimeLow) {
			t.Errorf("events = %+v, want all-time low", events)
		}
	})

	t.Run("above previous low stays quiet", func(t *testing.T) {
		e := testEngine()
		before, after := okPair(floatPtr(110), floatPtr(112))
		before.History = history
		if events := e.Evaluate(before, after, rules, now); len(events) != 0 {
			t.Errorf("events = %+v, want none", events)
		}
	})

	t.Run("first observation stays quiet", func(t *testing.T) {
		e := testEngine()
		before, after := okPair(nil, floatPtr(50))
		if events := e.Evaluate(before, after, rules, now); len(events) != 0 {
			t.Errorf("events = %+v, want none on first price", events)
		}
	})
}

func TestLowConfidence(t *testing.T) {
	rules := onlyRule(models.DefaultAlertRules(), RuleLowConfidence)
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		confidence int
		want       bool
	}{
		{"below threshold", 40, true},
		{"zero means no extraction", 0, false},
		{"above threshold", 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine()
			before, after := okPair(floatPtr(100), floatPtr(100))
			after.ExtractionConfidence = tt.confidence
			events := e.Evaluate(before, after, rules, now)
			if got := has(events, RuleLowConfidence); got != tt.want {
				t.Errorf("fired = %v, want %v (events %+v)", got, tt.want, events)
			}
		})
	}
}

func TestStale(t *testing.T) {
	rules := onlyRule(models.DefaultAlertRules(), RuleStale)
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

	mkFail := func(checkedAgo time.Duration) (models.Item, models.Item) {
		before := baseItem()
		after := baseItem()
		after.LastCheckStatus = models.CheckFail
		after.LastCheckError = "navigation_failed: timeout"
		if checkedAgo > 0 {
			checked := now.Add(-checkedAgo)
			before.LastChecked = &checked
			after.LastChecked = &checked
		}
		return before, after
	}

	t.Run("stale after threshold", func(t *testing.T) {
		e := testEngine()
		before, after := mkFail(13 * time.Hour)
		if events := e.Evaluate(before, after, rules, now); !has(events, RuleStale) {
			t.Errorf("events = %+v, want stale", events)
		}
	})

	t.Run("recent enough", func(t *testing.T) {
		e := testEngine()
		before, after := mkFail(11 * time.Hour)
		if events := e.Evaluate(before, after, rules, now); len(events) != 0 {
			t.Errorf("events = %+v, want none", events)
		}
	})

	t.Run("never checked", func(t *testing.T) {
		e := testEngine()
		before, after := mkFail(0)
		if events := e.Evaluate(before, after, rules, now); len(events) != 0 {
			t.Errorf("events = %+v, want none without a last success", events)
		}
	})
}

func TestOutOfStockTransition(t *testing.T) {
	rules := onlyRule(models.DefaultAlertRules(), Rule("none"))
	t0 := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	e := testEngine()

	before := baseItem()
	after := baseItem()
	after.StockStatus = models.StockOutOfStock
	after.StockReason = "out of stock"

	if events := e.Evaluate(before, after, rules, t0); !has(events, RuleOutOfStock) {
		t.Fatalf("transition: events = %+v, want out-of-stock fire even with rules disabled", events)
	}

	// Still out of stock is not a transition.
	b2 := baseItem()
	b2.StockStatus = models.StockOutOfStock
	if events := e.Evaluate(b2, after, rules, t0.Add(time.Hour)); len(events) != 0 {
		t.Errorf("steady out-of-stock: events = %+v, want none", events)
	}

	// Flapped back in and out inside the cooldown.
	if events := e.Evaluate(before, after, rules, t0.Add(2*time.Hour)); len(events) != 0 {
		t.Errorf("flap inside cooldown: events = %+v, want suppressed", events)
	}

	if events := e.Evaluate(before, after, rules, t0.Add(5*time.Hour)); !has(events, RuleOutOfStock) {
		t.Errorf("flap after cooldown: events = %+v, want fire", events)
	}
}

func TestPruneClearsCooldowns(t *testing.T) {
	rules := onlyRule(models.DefaultAlertRules(), RulePriceDrop)
	t0 := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	e := testEngine()

	before, after := okPair(floatPtr(100), floatPtr(90))
	if events := e.Evaluate(before, after, rules, t0); !has(events, RulePriceDrop) {
		t.Fatal("expected initial fire")
	}
	b2, a2 := okPair(floatPtr(90), floatPtr(80))
	if events := e.Evaluate(b2, a2, rules, t0.Add(time.Minute)); len(events) != 0 {
		t.Fatalf("expected cooldown suppression, got %+v", events)
	}

	e.Prune([]string{"other-item"})

	b3, a3 := okPair(floatPtr(80), floatPtr(70))
	if events := e.Evaluate(b3, a3, rules, t0.Add(2*time.Minute)); !has(events, RulePriceDrop) {
		t.Errorf("after prune: events = %+v, want fire", events)
	}
}

func TestUnchangedPriceSkipsPriceRules(t *testing.T) {
	rules := models.DefaultAlertRules()
	now := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	e := testEngine()

	before, after := okPair(floatPtr(99), floatPtr(99))
	before.TargetPrice = floatPtr(100)
	after.TargetPrice = floatPtr(100)
	before.History = []models.PricePoint{{Date: now.Add(-24 * time.Hour), Price: 200}}

	if events := e.Evaluate(before, after, rules, now); len(events) != 0 {
		t.Errorf("events = %+v, want none when the price did not move", events)
	}
}
