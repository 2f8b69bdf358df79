// Package browser attaches to an already-running Chrome via the remote debugging
// endpoint and locates the LinkedIn jobs tab. The browser session, including login,
// belongs to the user; nothing is launched or closed here beyond the driver itself.
package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/playwright-community/playwright-go"
)

// ErrNoJobsTab returned when no LinkedIn jobs tab found in the attached browser,
// callers prompt the user to open one and retry
var ErrNoJobsTab = errors.New("no linkedin jobs tab found")

// Params defines how to attach to the browser
type Params struct {
	DebugURL    string        // remote debugging endpoint, like http://localhost:9222
	PageTimeout time.Duration // default timeout for page operations
}

// Client wraps the playwright driver and the attached browser
type Client struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	params  Params
}

// Connect starts the playwright driver and attaches to the browser over CDP.
// The driver is installed on first use, browser binaries are never downloaded.
func Connect(params Params) (*Client, error) {
	if params.DebugURL == "" {
		params.DebugURL = "http://localhost:9222"
	}
	if params.PageTimeout == 0 {
		params.PageTimeout = 5 * time.Second
	}

	if err := playwright.Install(&playwright.RunOptions{SkipInstallBrowsers: true}); err != nil {
		return nil, fmt.Errorf("failed to install playwright driver: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	log.Printf("[INFO] connecting to browser on %s", params.DebugURL)
	browser, err := pw.Chromium.ConnectOverCDP(params.DebugURL)
	if err != nil {
		_ = pw.Stop()
		if hint := debugPortHint(); hint != "" {
			return nil, fmt.Errorf("can't connect to %s (%s): %w", params.DebugURL, hint, err)
		}
		return nil, fmt.Errorf("can't connect to %s: %w", params.DebugURL, err)
	}

	return &Client{pw: pw, browser: browser, params: params}, nil
}

// JobsPage finds the LinkedIn jobs tab among all contexts and pages,
// brings it to front and sets the default timeout. Returns ErrNoJobsTab if missing.
func (c *Client) JobsPage() (playwright.Page, error) {
	for _, bctx := range c.browser.Contexts() {
		for _, page := range bctx.Pages() {
			if !IsJobsURL(page.URL()) {
				continue
			}
			if err := page.BringToFront(); err != nil {
				return nil, fmt.Errorf("can't bring jobs tab to front: %w", err)
			}
			page.SetDefaultTimeout(float64(c.params.PageTimeout.Milliseconds()))
			log.Printf("[INFO] attached to jobs tab %s", page.URL())
			return page, nil
		}
	}
	return nil, ErrNoJobsTab
}

// Close stops the driver, the user's browser stays running
func (c *Client) Close() {
	if err := c.pw.Stop(); err != nil {
		log.Printf("[WARN] failed to stop playwright driver, %v", err)
	}
}

// IsJobsURL reports if the url points to the LinkedIn jobs area
func IsJobsURL(url string) bool {
	return strings.Contains(url, "linkedin.com/jobs")
}
