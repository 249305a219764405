package fetch

import (
	"context"
	"log/slog"
	"strings"
)

// minUsableHTML is the smallest document that plausibly carries a product
// page. Anything shorter is almost certainly a challenge stub or an empty
// SPA shell that needs a real browser to render.
const minUsableHTML = 600

var challengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"cf-browser-verification",
	"__cf_chl",
	"attention required",
	"enable javascript and cookies",
	"captcha-delivery",
	"hcaptcha",
	"recaptcha",
	"perimeterx",
	"px-captcha",
	"datadome",
	"incapsula",
	"_incapsula_",
	"request unsuccessful",
}

var emptyShellMarkers = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
}

// Client picks a fetch strategy per request. In auto mode the browser
// renders the page so client-side prices hydrate before capture; the
// static fetcher only steps in when the browser itself cannot run.
type Client struct {
	mode    string
	static  Fetcher
	browser Fetcher
	logger  *slog.Logger
}

func NewClient(mode string, static, browser Fetcher, logger *slog.Logger) *Client {
	return &Client{
		mode:    mode,
		static:  static,
		browser: browser,
		logger:  logger.With("component", "fetch"),
	}
}

func (c *Client) Mode() string { return c.mode }

func (c *Client) Fetch(ctx context.Context, pageURL string) (Content, error) {
	switch c.mode {
	case ModeStatic:
		return c.static.Fetch(ctx, pageURL)
	case ModeBrowser:
		return c.browser.Fetch(ctx, pageURL)
	default:
		return c.fetchAuto(ctx, pageURL)
	}
}

func (c *Client) fetchAuto(ctx context.Context, pageURL string) (Content, error) {
	content, err := c.browser.Fetch(ctx, pageURL)
	if err == nil {
		return content, nil
	}
	// Navigation failures and timeouts stand; only a browser that cannot
	// run at all hands the page to the static fetcher.
	if KindOf(err) != KindBrowserCrashed {
		return Content{}, err
	}
	c.logger.Warn("browser unavailable, falling back to static fetch", "url", pageURL, "error", err)

	content, serr := c.static.Fetch(ctx, pageURL)
	if serr != nil {
		return Content{}, serr
	}
	if NeedsBrowser(content.HTML) {
		c.logger.Warn("static fallback looks blocked or unrendered", "url", pageURL, "bytes", len(content.HTML))
	}
	return content, nil
}

// NeedsBrowser reports whether a statically fetched document looks like it
// needs JavaScript rendering to reach the real page content.
func NeedsBrowser(html string) bool {
	trimmed := strings.TrimSpace(html)
	if len(trimmed) < minUsableHTML {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, marker := range emptyShellMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
