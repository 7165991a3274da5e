package capture

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/pkg/appprobe"
	"github.com/offlinefirst/activity-recorder/pkg/browser"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// Spreadsheets reports the active cell while a spreadsheet application is
// focused. Only changes are emitted.
type Spreadsheets struct {
	probe    appprobe.Spreadsheet
	interval time.Duration
	env      Env
}

// NewSpreadsheets returns a spreadsheet source polling probe at interval.
func NewSpreadsheets(probe appprobe.Spreadsheet, interval time.Duration, env Env) *Spreadsheets {
	return &Spreadsheets{probe: probe, interval: orDefault(interval), env: env.withDefaults()}
}

func (s *Spreadsheets) Name() string { return "spreadsheet" }

func (s *Spreadsheets) Modalities() []event.Modality {
	return []event.Modality{event.ModalitySpreadsheetCell}
}

func (s *Spreadsheets) Requires() []capability.Name {
	return []capability.Name{capability.ActiveWindow, capability.Spreadsheet}
}

func (s *Spreadsheets) Run(ctx context.Context, emit Emitter) error {
	var last changed[event.SpreadsheetCell]
	return s.env.poll(ctx, s.Name(), s.interval, func(now time.Time) error {
		app, title := s.env.Resolver.Resolve(ctx)
		if !isSpreadsheet(app) {
			return nil
		}
		cell, err := s.probe.ActiveCell(ctx)
		switch {
		case errors.Is(err, appprobe.ErrNoWorkbook):
			return nil
		case errors.Is(err, appprobe.ErrUnsupported):
			return unavailable(capability.Spreadsheet, err)
		case err != nil:
			return err
		}
		if !last.Update(cell) {
			return nil
		}
		return s.env.emitAs(ctx, emit, now, app, title, cell)
	})
}

// Browsing reports navigation of the active browser tab. The locator is
// consulted first; when it fails the window title alone is used.
type Browsing struct {
	locator  browser.Locator
	interval time.Duration
	env      Env
}

// NewBrowsing returns a browser navigation source. A nil locator reads
// the window title only.
func NewBrowsing(locator browser.Locator, interval time.Duration, env Env) *Browsing {
	return &Browsing{locator: locator, interval: orDefault(interval), env: env.withDefaults()}
}

func (b *Browsing) Name() string { return "browser" }

func (b *Browsing) Modalities() []event.Modality { return []event.Modality{event.ModalityBrowserNav} }

func (b *Browsing) Requires() []capability.Name {
	return []capability.Name{capability.ActiveWindow}
}

func (b *Browsing) Run(ctx context.Context, emit Emitter) error {
	var last changed[browser.Tab]
	return b.env.poll(ctx, b.Name(), b.interval, func(now time.Time) error {
		app, title := b.env.Resolver.Resolve(ctx)
		if !browser.IsBrowser(app) {
			return nil
		}
		tab, err := b.activeTab(ctx, title)
		if errors.Is(err, browser.ErrNoTab) {
			return nil
		}
		if err != nil {
			return err
		}
		if !last.Update(tab) {
			return nil
		}
		return b.env.emitAs(ctx, emit, now, app, title, event.BrowserNav{URL: tab.URL, Title: tab.Title})
	})
}

func (b *Browsing) activeTab(ctx context.Context, title string) (browser.Tab, error) {
	if b.locator != nil {
		tab, err := b.locator.ActiveTab(ctx, title)
		if err == nil {
			return tab, nil
		}
		if ctx.Err() != nil {
			return browser.Tab{}, ctx.Err()
		}
		b.env.Logger.Debug("devtools lookup failed, using window title", zap.Error(err))
	}
	return browser.TitleLocator{}.ActiveTab(ctx, title)
}

// Documents reports the document open in a viewer application.
type Documents struct {
	interval time.Duration
	env      Env
}

// NewDocuments returns a document-viewer source.
func NewDocuments(interval time.Duration, env Env) *Documents {
	return &Documents{interval: orDefault(interval), env: env.withDefaults()}
}

func (d *Documents) Name() string { return "documents" }

func (d *Documents) Modalities() []event.Modality {
	return []event.Modality{event.ModalityDocumentState}
}

func (d *Documents) Requires() []capability.Name {
	return []capability.Name{capability.ActiveWindow}
}

func (d *Documents) Run(ctx context.Context, emit Emitter) error {
	var last changed[event.DocumentState]
	return d.env.poll(ctx, d.Name(), d.interval, func(now time.Time) error {
		app, title := d.env.Resolver.Resolve(ctx)
		if !isViewer(app) {
			return nil
		}
		doc, ok := appprobe.DocumentFromTitle(app, title)
		if !ok || !last.Update(doc) {
			return nil
		}
		return d.env.emitAs(ctx, emit, now, app, title, doc)
	})
}

func orDefault(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 2 * time.Second
	}
	return interval
}
