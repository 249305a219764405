package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aloglu/centsible/internal/browser"
)

// Browser renders pages through the shared headless browser pool.
type Browser struct {
	pool   *browser.Pool
	logger *slog.Logger
}

func NewBrowser(pool *browser.Pool, logger *slog.Logger) *Browser {
	return &Browser{pool: pool, logger: logger.With("component", "fetch.browser")}
}

func (b *Browser) Mode() string { return ModeBrowser }

func (b *Browser) Fetch(ctx context.Context, pageURL string) (Content, error) {
	html, err := b.pool.HTML(ctx, pageURL)
	if err != nil {
		return Content{}, &Error{Kind: classifyBrowser(err), URL: pageURL, Err: err}
	}
	return Content{
		URL:        pageURL,
		HTML:       html,
		StatusCode: http.StatusOK,
		FetchedAt:  time.Now(),
		Mode:       ModeBrowser,
	}, nil
}

func classifyBrowser(err error) Kind {
	switch {
	case errors.Is(err, browser.ErrUnavailable), errors.Is(err, browser.ErrPoolClosed), browser.SessionDead(err):
		return KindBrowserCrashed
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(strings.ToLower(err.Error()), "timeout"):
		return KindTimeout
	default:
		return KindNavigationFailed
	}
}
