package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const staticUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Static fetches pages with a plain HTTP client. Collectors are created per
// request: colly caches visited URLs per collector and a tracker re-visits
// the same URL every sweep.
type Static struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewStatic(timeout time.Duration, logger *slog.Logger) *Static {
	return &Static{timeout: timeout, logger: logger.With("component", "fetch.static")}
}

func (s *Static) Mode() string { return ModeStatic }

func (s *Static) Fetch(ctx context.Context, pageURL string) (Content, error) {
	c := colly.NewCollector(
		colly.UserAgent(staticUserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var content Content
	c.OnResponse(func(r *colly.Response) {
		content = Content{
			URL:        r.Request.URL.String(),
			HTML:       string(r.Body),
			StatusCode: r.StatusCode,
			FetchedAt:  time.Now(),
			Mode:       ModeStatic,
		}
	})

	if err := ctx.Err(); err != nil {
		return Content{}, &Error{Kind: KindTimeout, URL: pageURL, Err: err}
	}
	if err := c.Visit(pageURL); err != nil {
		return Content{}, &Error{Kind: classifyStatic(err), URL: pageURL, Err: err}
	}
	c.Wait()

	if content.HTML == "" {
		return Content{}, &Error{Kind: KindNavigationFailed, URL: pageURL, Err: errors.New("empty response body")}
	}
	return content, nil
}

// classifyStatic maps transport errors onto diagnostic kinds.
func classifyStatic(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return KindTimeout
	}
	if strings.Contains(err.Error(), "Client.Timeout") {
		return KindTimeout
	}
	return KindNavigationFailed
}
