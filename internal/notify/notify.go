// Package notify fans alert messages out to the configured sinks: a
// Discord-style webhook, a Telegram bot, and the local desktop notifier.
// Sink failures are logged and never propagate; one bad endpoint must not
// silence the others.
package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/aloglu/centsible/internal/models"
)

const (
	deliverAttempts = 3
	telegramAPIBase = "https://api.telegram.org"
)

// SettingsSource supplies the current notification endpoints. Satisfied by
// *settings.Service.
type SettingsSource interface {
	Get() models.Settings
}

// Notifier delivers alert messages.
type Notifier struct {
	logger    *slog.Logger
	client    *http.Client
	settings  SettingsSource
	proxyBase string
	desktop   bool

	sleep func(time.Duration)
}

// New builds a Notifier. proxyBase, when set, reroutes Discord-style
// webhook calls through a reverse proxy; desktop enables the local
// notification sink.
func New(settings SettingsSource, proxyBase string, desktop bool, logger *slog.Logger) *Notifier {
	return &Notifier{
		logger:    logger.With("component", "notify"),
		client:    &http.Client{Timeout: 15 * time.Second},
		settings:  settings,
		proxyBase: proxyBase,
		desktop:   desktop,
		sleep:     time.Sleep,
	}
}

// Send delivers to every configured sink without blocking the caller.
func (n *Notifier) Send(title, body string) {
	go n.deliverAll(title, body)
}

// SendSync delivers to every configured sink and waits for completion.
func (n *Notifier) SendSync(title, body string) {
	n.deliverAll(title, body)
}

func (n *Notifier) deliverAll(title, body string) {
	s := n.settings.Get()

	var wg sync.WaitGroup
	if n.desktop {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := beeep.Notify(title, body, ""); err != nil {
				n.logger.Warn("desktop notification failed", "error", err)
			}
		}()
	}
	if s.DiscordWebhook != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.sendDiscord(s.DiscordWebhook, title, body)
		}()
	}
	if s.TelegramWebhook != "" && s.TelegramChatID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.sendTelegram(s.TelegramWebhook, s.TelegramChatID, title, body)
		}()
	}
	wg.Wait()
}

func (n *Notifier) sendDiscord(webhook, title, body string) {
	payload := map[string]string{
		"content": "**" + title + "**\n" + body,
	}
	n.deliver("discord", RewriteWebhook(webhook, n.proxyBase), payload)
}

func (n *Notifier) sendTelegram(webhook, chatID, title, body string) {
	payload := map[string]string{
		"chat_id":    chatID,
		"text":       "*" + title + "*\n" + body,
		"parse_mode": "Markdown",
	}
	n.deliver("telegram", TelegramURL(webhook), payload)
}

// deliver posts a JSON payload with retries and exponential backoff.
func (n *Notifier) deliver(sink, url string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("marshaling notification failed", "sink", sink, "error", err)
		return
	}

	for attempt := 0; attempt < deliverAttempts; attempt++ {
		if attempt > 0 {
			n.sleep(time.Duration(attempt*attempt) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			n.logger.Error("building notification request failed", "sink", sink, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Centsible-Notify/1.0")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn("notification delivery failed", "sink", sink, "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.logger.Debug("notification delivered", "sink", sink, "status", resp.StatusCode)
			return
		}
		n.logger.Warn("notification rejected", "sink", sink, "status", resp.StatusCode, "attempt", attempt+1)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return
		}
	}
	n.logger.Error("notification dropped after retries", "sink", sink)
}

// RewriteWebhook reroutes a Discord-style webhook through a proxy base:
// .../api/webhooks/{id}/{token} becomes <base>/webhooks/{id}/{token}.
// Webhooks that do not match the shape pass through untouched.
func RewriteWebhook(webhook, base string) string {
	if base == "" {
		return webhook
	}
	idx := strings.Index(webhook, "/api/webhooks/")
	if idx < 0 {
		return webhook
	}
	return strings.TrimRight(base, "/") + "/webhooks/" + webhook[idx+len("/api/webhooks/"):]
}

// TelegramURL expands a bot token into the sendMessage endpoint. Values
// that are already URLs, such as a self-hosted bot API, pass through.
func TelegramURL(tokenOrURL string) string {
	if strings.HasPrefix(tokenOrURL, "http://") || strings.HasPrefix(tokenOrURL, "https://") {
		return tokenOrURL
	}
	return telegramAPIBase + "/bot" + tokenOrURL + "/sendMessage"
}
