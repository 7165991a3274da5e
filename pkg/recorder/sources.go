package recorder

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/pkg/activewindow"
	"github.com/offlinefirst/activity-recorder/pkg/browser"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/capture"
	"github.com/offlinefirst/activity-recorder/pkg/session"
	"github.com/offlinefirst/activity-recorder/pkg/store"
	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

// windowMemoTTL lets events produced in one burst share a window lookup.
const windowMemoTTL = 100 * time.Millisecond

// plannedSource is a source that passed its capability check.
type plannedSource struct {
	source capture.Source
	status int
}

type candidate struct {
	enabled bool
	build   func() (capture.Source, error)
}

// sourceEnv returns the environment of one source. Each source memoizes
// window lookups on its own so that a stale answer cached by one producer
// never labels another producer's events.
func (m *Monitor) sourceEnv(window activewindow.Resolver, name string) capture.Env {
	return capture.Env{
		Resolver: activewindow.NewMemo(window, windowMemoTTL),
		Clock:    m.clock,
		Logger:   m.logger.Named("capture." + name),
		OnFault: func(string, error) {
			m.counters.faults.Add(1)
		},
	}
}

// plan builds the enabled sources whose capabilities are available and
// records a status for every configured source.
func (m *Monitor) plan(b Backends, p *pipeline, installDir string) ([]plannedSource, error) {
	cfg := m.cfg
	env := func(name string) capture.Env { return m.sourceEnv(b.Window, name) }
	reg := p.registry

	filter, err := capture.NewPathFilter(cfg.FileIgnorePatterns)
	if err != nil {
		return nil, err
	}
	clickGrabber := b.Grabber
	if !reg.Available(capability.Screen) {
		clickGrabber = nil
	}
	var locator browser.Locator
	if p.devtools != nil && reg.Available(capability.BrowserDevTools) {
		locator = p.devtools
	}

	candidates := []candidate{
		{cfg.RecordScreen, func() (capture.Source, error) {
			return capture.NewScreen(capture.ScreenOptions{
				Grabber:   b.Grabber,
				FPS:       cfg.ScreenFPS,
				Quality:   cfg.ScreenQuality,
				RetainRaw: cfg.RetainRawFrames,
			}, env("screen")), nil
		}},
		{cfg.RecordKeyboard, func() (capture.Source, error) {
			return capture.NewKeyboard(b.Hook, env("keyboard")), nil
		}},
		{cfg.RecordMouse, func() (capture.Source, error) {
			return capture.NewPointer(capture.PointerOptions{
				Hook: b.Hook,
				Settings: throttle.Settings{
					MoveInterval: throttle.Seconds(cfg.MouseMoveThrottle),
					BatchSize:    cfg.MouseBatchSize,
					PollInterval: throttle.Seconds(cfg.AppPollInterval),
				},
				Grabber:     clickGrabber,
				CaptureSize: cfg.ClickCaptureSize,
				Quality:     cfg.ScreenQuality,
			}, env("pointer")), nil
		}},
		{cfg.RecordApps, func() (capture.Source, error) {
			return capture.NewApps(throttle.Seconds(cfg.AppPollInterval), env("apps")), nil
		}},
		{cfg.RecordFiles, func() (capture.Source, error) {
			roots := b.WatchRoots
			if len(roots) == 0 {
				home, err := os.UserHomeDir()
				if err != nil {
					m.logger.Warn("home directory unknown, watching install dir only", zap.Error(err))
				}
				roots = capture.DefaultWatchRoots(home, installDir)
			}
			return capture.NewFiles(capture.FileOptions{
				Roots:   roots,
				Exclude: []string{store.DataDir(installDir)},
				Filter:  filter,
			}, env("files")), nil
		}},
		{cfg.RecordSpreadsheet, func() (capture.Source, error) {
			return capture.NewSpreadsheets(b.Spreadsheet, throttle.Seconds(cfg.AppStatePollInterval), env("spreadsheet")), nil
		}},
		{cfg.RecordBrowser, func() (capture.Source, error) {
			return capture.NewBrowsing(locator, throttle.Seconds(cfg.AppStatePollInterval), env("browser")), nil
		}},
		{cfg.RecordDocuments, func() (capture.Source, error) {
			return capture.NewDocuments(throttle.Seconds(cfg.AppStatePollInterval), env("documents")), nil
		}},
	}

	m.statuses.reset()
	var planned []plannedSource
	for _, c := range candidates {
		src, err := c.build()
		if err != nil {
			return nil, err
		}
		st := session.SourceStatus{Name: src.Name(), Enabled: c.enabled, State: session.SourceStatePending}
		for _, req := range src.Requires() {
			st.Requires = append(st.Requires, string(req))
		}
		for _, mod := range src.Modalities() {
			st.Modalities = append(st.Modalities, mod.String())
		}
		if !c.enabled {
			st.State = session.SourceStateDisabled
			m.statuses.add(st)
			continue
		}
		if err := requireAll(reg, src.Requires()); err != nil {
			st.State = session.SourceStateUnavailable
			st.Message = err.Error()
			m.statuses.add(st)
			m.logger.Warn("source skipped", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		planned = append(planned, plannedSource{source: src, status: m.statuses.add(st)})
	}
	return planned, nil
}

func requireAll(reg *capability.Registry, names []capability.Name) error {
	for _, n := range names {
		if err := reg.Require(n); err != nil {
			return err
		}
	}
	return nil
}
