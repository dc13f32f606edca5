package render

import (
	"context"
	"net/http"
	"time"

	"sjsage522/harvester/helpers"
	"sjsage522/harvester/logger"
	herrors "sjsage522/harvester/pkg/errors"
)

// HTTPRenderer fetches pages with a plain GET and parses the markup as
// served. It does not run scripts.
type HTTPRenderer struct {
	client    *http.Client
	userAgent string
	doc       *Document
	log       *logger.Logger
}

// NewHTTPRenderer creates an HTTP renderer. A nil client uses a default one.
func NewHTTPRenderer(client *http.Client, userAgent string) *HTTPRenderer {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPRenderer{
		client:    client,
		userAgent: userAgent,
		log:       logger.ForRenderer().WithStr("renderer", "http"),
	}
}

// Navigate fetches url and keeps the parsed page for FindAll
func (r *HTTPRenderer) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	r.doc = nil

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := helpers.Fetch(ctx, r.client, url, r.userAgent)
	if err != nil {
		return classify(url, err)
	}

	doc, err := Parse(body)
	if err != nil {
		return herrors.NewRenderFailure(hostOf(url), "failed to parse "+url, err)
	}

	r.doc = doc
	r.log.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Msg("Page loaded")
	return nil
}

// FindAll returns the elements of the last loaded page matching selector
func (r *HTTPRenderer) FindAll(selector string) ([]Element, error) {
	if r.doc == nil {
		return nil, herrors.NewRenderFailure("", "no page loaded", nil)
	}
	return r.doc.FindAll(selector), nil
}

// Close drops the current page
func (r *HTTPRenderer) Close() error {
	r.doc = nil
	r.client.CloseIdleConnections()
	return nil
}
