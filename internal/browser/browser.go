// Package browser owns the headless Chromium instance used for dynamic
// page fetches. The browser is a single shared resource behind a mutex;
// concurrent fetches are bounded by a page-slot semaphore, and a lost
// browser session is relaunched on the next use.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/sync/semaphore"

	"github.com/aloglu/centsible/internal/config"
)

// ErrPoolClosed is returned when the pool has been shut down.
var ErrPoolClosed = errors.New("browser pool is closed")

// ErrUnavailable wraps launch and connect failures, so callers can tell a
// browser that cannot run apart from a page that failed to navigate.
var ErrUnavailable = errors.New("browser unavailable")

const closeGrace = 5 * time.Second

// userAgents is rotated across pages so repeated checks do not present a
// single fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0",
}

// Pool is the single owned browser. It launches lazily on first use and is
// safe for concurrent use; PageSlots bounds how many pages are open at once.
type Pool struct {
	mu      sync.Mutex
	browser *rod.Browser
	closed  bool

	slots       *semaphore.Weighted
	execPath    string
	navTimeout  time.Duration
	settleDelay time.Duration
	uaIndex     atomic.Uint64
	logger      *slog.Logger
}

func NewPool(cfg *config.Config, logger *slog.Logger) *Pool {
	return &Pool{
		slots:       semaphore.NewWeighted(int64(cfg.PageSlots)),
		execPath:    cfg.BrowserExecutable,
		navTimeout:  cfg.NavTimeout,
		settleDelay: cfg.SettleDelay,
		logger:      logger.With("component", "browser"),
	}
}

// WithPage runs fn against a fresh stealth page, bounded by a page slot.
// The page is closed afterwards; a session-loss error discards the owned
// browser so the next call relaunches.
func (p *Pool) WithPage(ctx context.Context, fn func(page *rod.Page) error) error {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.slots.Release(1)

	b, err := p.ensureBrowser()
	if err != nil {
		return err
	}

	page, err := p.newPage(b)
	if err != nil {
		p.noteFailure(err)
		return err
	}
	defer page.Close()

	if err := fn(page); err != nil {
		p.noteFailure(err)
		return err
	}
	return nil
}

// HTML navigates to pageURL, waits for load plus a settle delay so client
// rendered prices appear, and returns the document HTML.
func (p *Pool) HTML(ctx context.Context, pageURL string) (string, error) {
	var html string
	err := p.WithPage(ctx, func(page *rod.Page) error {
		page = page.Context(ctx)

		router := page.HijackRequests()
		blockHeavyResources(router)
		go router.Run()
		defer func() { _ = router.Stop() }()

		if err := page.Timeout(p.navTimeout).Navigate(pageURL); err != nil {
			return fmt.Errorf("navigate %s: %w", pageURL, err)
		}
		if err := page.Timeout(p.navTimeout).WaitLoad(); err != nil {
			if SessionDead(err) {
				return err
			}
			// some pages never fire load; the settle delay still gives
			// scripts a chance to render
			p.logger.Debug("load wait incomplete", "url", pageURL, "error", err)
		}
		select {
		case <-time.After(p.settleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}

		h, err := page.HTML()
		if err != nil {
			return fmt.Errorf("read html: %w", err)
		}
		html = h
		return nil
	})
	return html, err
}

// blockHeavyResources fails image, stylesheet, font and media requests so a
// product page costs a fraction of its normal bandwidth.
func blockHeavyResources(router *rod.HijackRouter) {
	_ = router.Add("*", "", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeStylesheet,
			proto.NetworkResourceTypeFont,
			proto.NetworkResourceTypeMedia:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})
}

func (p *Pool) newPage(b *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	ua := userAgents[p.uaIndex.Add(1)%uint64(len(userAgents))]
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("set user agent: %w", err)
	}
	return page, nil
}

func (p *Pool) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if p.browser != nil {
		return p.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")
	if p.execPath != "" {
		l = l.Bin(p.execPath)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch: %v", ErrUnavailable, err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrUnavailable, err)
	}

	p.browser = b
	p.logger.Info("browser launched", "executable", p.execPath)
	return b, nil
}

// noteFailure discards the owned browser when an error indicates the
// session itself died, so the next call relaunches instead of failing the
// same way forever.
func (p *Pool) noteFailure(err error) {
	if !SessionDead(err) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser == nil {
		return
	}
	p.logger.Warn("browser session lost, discarding", "error", err)
	_ = p.browser.Close()
	p.browser = nil
}

// Close shuts the browser down, waiting up to a short grace period.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	b := p.browser
	p.browser = nil
	p.mu.Unlock()

	if b == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		_ = b.Close()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("browser closed")
	case <-time.After(closeGrace):
		p.logger.Warn("browser close timed out")
	}
}

// sessionDeadMarkers are substrings of errors rod surfaces once the CDP
// connection or target is gone.
var sessionDeadMarkers = []string{
	"websocket",
	"use of closed network connection",
	"connection reset",
	"connection refused",
	"session closed",
	"target closed",
	"browser has been closed",
	"invalid target",
	"cdp connection",
}

// SessionDead reports whether err means the browser process or connection
// is gone rather than the page merely misbehaving.
func SessionDead(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range sessionDeadMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
