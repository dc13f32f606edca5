package render

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"sjsage522/harvester/logger"
	herrors "sjsage522/harvester/pkg/errors"
)

// Fixed browser window size
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// BrowserRenderer drives one stealth tab of a headless Chrome. After each
// navigation the DOM is snapshotted and queried offline.
type BrowserRenderer struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	doc      *Document
	log      *logger.Logger
}

// NewBrowserRenderer connects to the Chrome at controlURL, or launches a
// local headless Chrome when controlURL is empty.
func NewBrowserRenderer(controlURL, userAgent string) (*BrowserRenderer, error) {
	log := logger.ForRenderer().WithStr("renderer", "browser")
	r := &BrowserRenderer{log: log}

	wsURL := controlURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("window-size", "1920,1080")

		u, err := l.Launch()
		if err != nil {
			return nil, herrors.NewRenderFailure("", "failed to launch chrome", err)
		}
		wsURL = u
		r.launcher = l
		log.Info().Str("url", wsURL).Msg("Launched local chrome")
	} else {
		log.Info().Str("url", wsURL).Msg("Connecting to remote chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		r.cleanupLauncher()
		return nil, herrors.NewRenderFailure("", "failed to connect to chrome", err)
	}
	r.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		r.Close()
		return nil, herrors.NewRenderFailure("", "failed to open tab", err)
	}
	r.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             ViewportWidth,
		Height:            ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to set viewport")
	}
	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			log.Warn().Err(err).Msg("Failed to set user agent")
		}
	}

	return r, nil
}

// Navigate loads url in the tab, waits for the load event and snapshots the DOM
func (r *BrowserRenderer) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	r.doc = nil
	if r.page == nil {
		return herrors.NewRenderFailure(hostOf(url), "browser is closed", nil)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	page := r.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return classify(url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return classify(url, err)
	}

	res, err := page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return classify(url, err)
	}

	doc, err := ParseString(res.Value.Str())
	if err != nil {
		return herrors.NewRenderFailure(hostOf(url), "failed to parse "+url, err)
	}
	r.doc = doc

	r.log.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Msg("Page rendered")
	return nil
}

// FindAll queries the last DOM snapshot
func (r *BrowserRenderer) FindAll(selector string) ([]Element, error) {
	if r.doc == nil {
		return nil, herrors.NewRenderFailure("", "no page loaded", nil)
	}
	return r.doc.FindAll(selector), nil
}

// Close closes the tab, the browser connection and any launched process
func (r *BrowserRenderer) Close() error {
	var firstErr error
	if r.page != nil {
		if err := r.page.Close(); err != nil {
			firstErr = err
		}
		r.page = nil
	}
	if r.browser != nil {
		if err := r.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.browser = nil
	}
	r.cleanupLauncher()
	r.doc = nil
	return firstErr
}

func (r *BrowserRenderer) cleanupLauncher() {
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
}
