// Package browser recognizes browsers and reads the active tab, either over
// the Chrome DevTools protocol or from the window title.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// ErrNoTab is returned when the browser exposes no page targets.
var ErrNoTab = errors.New("no browser tab")

// Tab is the state of the active browser tab.
type Tab struct {
	URL   string
	Title string
}

// Locator reports the active tab given the foreground window title.
type Locator interface {
	ActiveTab(ctx context.Context, windowTitle string) (Tab, error)
}

var browserApps = []string{
	"google chrome", "chrome", "chromium", "chromium-browser",
	"firefox", "safari", "microsoft edge", "msedge", "brave browser", "brave",
	"opera", "vivaldi", "arc",
}

var titleSuffixes = []string{
	" - Google Chrome", " - Chromium", " — Mozilla Firefox", " - Mozilla Firefox",
	" - Microsoft\u200b Edge", " - Microsoft Edge", " - Brave", " - Opera", " - Vivaldi",
}

// IsBrowser reports whether app names a recognized browser.
func IsBrowser(app string) bool {
	name := strings.ToLower(strings.TrimSpace(app))
	name = strings.TrimSuffix(name, ".exe")
	for _, b := range browserApps {
		if name == b {
			return true
		}
	}
	return false
}

// PageTitle strips the browser's own suffix from a window title.
func PageTitle(windowTitle string) string {
	t := strings.TrimSpace(windowTitle)
	for _, s := range titleSuffixes {
		if strings.HasSuffix(t, s) {
			return strings.TrimSpace(strings.TrimSuffix(t, s))
		}
	}
	return t
}

// TitleLocator derives the tab from the window title alone. URLs are not
// visible this way.
type TitleLocator struct{}

// ActiveTab returns the page title encoded in the window title.
func (TitleLocator) ActiveTab(_ context.Context, windowTitle string) (Tab, error) {
	title := PageTitle(windowTitle)
	if title == "" || title == event.Unknown {
		return Tab{}, ErrNoTab
	}
	return Tab{Title: title}, nil
}

// DevTools reads tabs from a browser started with --remote-debugging-port.
// The connection is attached lazily and re-established after failures.
type DevTools struct {
	debugURL string

	mu      sync.Mutex
	browser *rod.Browser
	cancel  context.CancelFunc
}

// NewDevTools returns a locator for the given debug endpoint, such as
// "http://127.0.0.1:9222" or a bare port.
func NewDevTools(debugURL string) *DevTools {
	return &DevTools{debugURL: debugURL}
}

// Ping verifies that the endpoint resolves to a DevTools websocket.
func (d *DevTools) Ping() error {
	if _, err := launcher.ResolveURL(d.debugURL); err != nil {
		return fmt.Errorf("resolve devtools endpoint: %w", err)
	}
	return nil
}

func (d *DevTools) connect() (*rod.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browser != nil {
		return d.browser, nil
	}
	ws, err := launcher.ResolveURL(d.debugURL)
	if err != nil {
		return nil, fmt.Errorf("resolve devtools endpoint: %w", err)
	}
	// The connection lives until Close; cancelling drops the websocket
	// without closing the user's browser.
	connCtx, cancel := context.WithCancel(context.Background())
	b := rod.New().ControlURL(ws).Context(connCtx)
	if err := b.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("connect devtools: %w", err)
	}
	d.browser, d.cancel = b, cancel
	return b, nil
}

func (d *DevTools) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.browser, d.cancel = nil, nil
}

// ActiveTab returns the page whose title matches the window title, else the
// first page target.
func (d *DevTools) ActiveTab(ctx context.Context, windowTitle string) (Tab, error) {
	b, err := d.connect()
	if err != nil {
		return Tab{}, err
	}
	pages, err := b.Context(ctx).Pages()
	if err != nil {
		d.reset()
		return Tab{}, fmt.Errorf("list pages: %w", err)
	}

	want := PageTitle(windowTitle)
	var tabs []Tab
	for _, p := range pages {
		info, err := p.Info()
		if err != nil || info.Type != "page" {
			continue
		}
		tab := Tab{URL: info.URL, Title: info.Title}
		if want != "" && tab.Title == want {
			return tab, nil
		}
		tabs = append(tabs, tab)
	}
	return chooseTab(tabs)
}

func chooseTab(tabs []Tab) (Tab, error) {
	if len(tabs) == 0 {
		return Tab{}, ErrNoTab
	}
	return tabs[0], nil
}

// Close drops the DevTools connection.
func (d *DevTools) Close() {
	d.reset()
}
