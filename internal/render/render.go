// Package render loads listing pages and exposes their elements to the
// extractor. Two renderers exist: a headless browser driven over the Chrome
// DevTools protocol and a plain HTTP fetcher for sites that render server
// side.
package render

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"sjsage522/harvester/helpers"
	herrors "sjsage522/harvester/pkg/errors"
)

// Element is one node of a rendered page
type Element interface {
	// Attr returns the value of an attribute and whether it is present
	Attr(name string) (string, bool)

	// Text returns the trimmed text content
	Text() string

	// Find returns the first descendant matching selector
	Find(selector string) (Element, bool)
}

// Renderer loads one page at a time. Navigate errors are classified as
// render_timeout, render_failure or rate_limit.
type Renderer interface {
	// Navigate loads url, giving up after timeout
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// FindAll returns the elements of the current page matching selector,
	// in document order
	FindAll(selector string) ([]Element, error)

	// Close releases the renderer
	Close() error
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// classify maps a navigation error onto the harvest error taxonomy
func classify(rawURL string, err error) error {
	host := hostOf(rawURL)

	var statusErr *helpers.StatusError
	if errors.As(err, &statusErr) && statusErr.RateLimited() {
		return herrors.New(herrors.ErrorTypeRateLimit, host, statusErr.Error(), err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return herrors.NewRenderTimeout(host, rawURL, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return herrors.NewRenderTimeout(host, rawURL, err)
	}

	return herrors.NewRenderFailure(host, "failed to load "+rawURL, err)
}
