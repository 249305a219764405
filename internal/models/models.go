// Package models defines the core data structures for tracked items,
// settings and per-check diagnostics.
package models

import "time"

// StockStatus is the availability verdict for an item.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockUnknown    StockStatus = "unknown"
)

// CheckStatus is the outcome of the most recent check attempt.
type CheckStatus string

const (
	CheckOK   CheckStatus = "ok"
	CheckFail CheckStatus = "fail"
)

// DefaultListID is the grouping tag items fall back to. The default list
// always exists and cannot be deleted.
const DefaultListID = "default"

// PricePoint is one observed price in an item's history.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Item is a tracked product. History dates are non-decreasing; appends are
// gated by the check-application rules in the tracker.
type Item struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Selector    string   `json:"selector,omitempty"`
	TargetPrice *float64 `json:"targetPrice,omitempty"`
	ListID      string   `json:"listId"`

	CurrentPrice  *float64 `json:"currentPrice"`
	Currency      string   `json:"currency"`
	PriceInUSD    *float64 `json:"priceInUSD"`
	LastSeenPrice *float64 `json:"lastSeenPrice,omitempty"`

	StockStatus     StockStatus `json:"stockStatus"`
	StockConfidence int         `json:"stockConfidence"`
	StockReason     string      `json:"stockReason,omitempty"`
	StockSource     string      `json:"stockSource,omitempty"`

	ExtractionConfidence int `json:"extractionConfidence"`

	LastChecked      *time.Time  `json:"lastChecked,omitempty"`
	LastCheckAttempt *time.Time  `json:"lastCheckAttempt,omitempty"`
	LastCheckStatus  CheckStatus `json:"lastCheckStatus,omitempty"`
	LastCheckError   string      `json:"lastCheckError,omitempty"`

	History []PricePoint `json:"history"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy. Mutating the copy never touches the original.
func (i *Item) Clone() Item {
	out := *i
	out.TargetPrice = clonePtr(i.TargetPrice)
	out.CurrentPrice = clonePtr(i.CurrentPrice)
	out.PriceInUSD = clonePtr(i.PriceInUSD)
	out.LastSeenPrice = clonePtr(i.LastSeenPrice)
	out.LastChecked = clonePtr(i.LastChecked)
	out.LastCheckAttempt = clonePtr(i.LastCheckAttempt)
	if i.History != nil {
		out.History = make([]PricePoint, len(i.History))
		copy(out.History, i.History)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// List groups items for display purposes.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlertRules is the global alert configuration.
type AlertRules struct {
	TargetHitEnabled bool `json:"targetHitEnabled"`

	PriceDropEnabled bool `json:"priceDropEnabled"`

	PriceDrop24hEnabled bool    `json:"priceDrop24hEnabled"`
	PriceDrop24hPercent float64 `json:"priceDrop24hPercent"`

	AllTimeLowEnabled bool `json:"allTimeLowEnabled"`

	LowConfidenceEnabled   bool `json:"lowConfidenceEnabled"`
	LowConfidenceThreshold int  `json:"lowConfidenceThreshold"`

	StaleEnabled bool `json:"staleEnabled"`
	StaleHours   int  `json:"staleHours"`

	NotifyCooldownMinutes int `json:"notifyCooldownMinutes"`
}

// DefaultAlertRules returns the rule set new installs start with.
func DefaultAlertRules() AlertRules {
	return AlertRules{
		TargetHitEnabled:       true,
		PriceDropEnabled:       true,
		PriceDrop24hEnabled:    true,
		PriceDrop24hPercent:    5,
		AllTimeLowEnabled:      true,
		LowConfidenceEnabled:   true,
		LowConfidenceThreshold: 55,
		StaleEnabled:           true,
		StaleHours:             12,
		NotifyCooldownMinutes:  240,
	}
}

// Settings is the persisted global configuration blob.
type Settings struct {
	DiscordWebhook  string     `json:"discordWebhook,omitempty"`
	TelegramWebhook string     `json:"telegramWebhook,omitempty"`
	TelegramChatID  string     `json:"telegramChatId,omitempty"`
	Lists           []List     `json:"lists"`
	AlertRules      AlertRules `json:"alertRules"`
}

// DefaultSettings returns settings with the default list and default rules.
func DefaultSettings() Settings {
	return Settings{
		Lists:      []List{{ID: DefaultListID, Name: "Default"}},
		AlertRules: DefaultAlertRules(),
	}
}

// CheckRecord is one diagnostics entry for a check attempt.
type CheckRecord struct {
	Time         time.Time   `json:"time"`
	ItemID       string      `json:"itemId"`
	ItemName     string      `json:"itemName"`
	URL          string      `json:"url"`
	ListID       string      `json:"listId"`
	OK           bool        `json:"ok"`
	Price        *float64    `json:"price,omitempty"`
	Currency     string      `json:"currency,omitempty"`
	Confidence   int         `json:"confidence"`
	Source       string      `json:"source,omitempty"`
	SelectorUsed string      `json:"selectorUsed,omitempty"`
	StockStatus  StockStatus `json:"stockStatus,omitempty"`
	OutOfStock   bool        `json:"outOfStock"`
	StockReason  string      `json:"stockReason,omitempty"`
	Error        string      `json:"error,omitempty"`
}
