// Package fetch retrieves product pages. A browser fetcher renders pages
// through the shared headless pool so client-side prices appear; a
// colly-backed static fetcher covers plain HTTP. The Client picks between
// them according to the configured mode; auto renders with the browser and
// falls back to static only when the browser cannot run.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fetch modes, matching the FETCH_MODE configuration values.
const (
	ModeAuto    = "auto"
	ModeBrowser = "browser"
	ModeStatic  = "static"
)

// Kind tags a fetch failure for diagnostics.
type Kind string

const (
	KindTimeout          Kind = "fetch_timeout"
	KindBrowserCrashed   Kind = "browser_crashed"
	KindNavigationFailed Kind = "navigation_failed"
)

// Error is a classified fetch failure.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s fetching %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, or empty if err is not a
// fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Content is one fetched page.
type Content struct {
	URL        string
	HTML       string
	StatusCode int
	FetchedAt  time.Time
	Mode       string
}

// Fetcher retrieves page HTML. Implementations classify their failures as
// *Error so diagnostics can record the kind.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (Content, error)
	Mode() string
}
