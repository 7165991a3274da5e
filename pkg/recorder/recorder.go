// Package recorder owns the lifecycle of a recording session: the consent
// gate, capability resolution, the capture sources, the work queue and the
// persistence worker.
//
// A Monitor moves Idle → Running → Draining → Stopped. Stop cancels every
// source first, so nothing new is produced, then closes the queue and waits
// for the worker to persist what remains.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/offlinefirst/activity-recorder/pkg/browser"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/capture"
	"github.com/offlinefirst/activity-recorder/pkg/codec"
	"github.com/offlinefirst/activity-recorder/pkg/config"
	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/permissions"
	"github.com/offlinefirst/activity-recorder/pkg/queue"
	"github.com/offlinefirst/activity-recorder/pkg/ringbuf"
	"github.com/offlinefirst/activity-recorder/pkg/session"
	"github.com/offlinefirst/activity-recorder/pkg/store"
	"github.com/offlinefirst/activity-recorder/pkg/throttle"
	"github.com/offlinefirst/activity-recorder/pkg/worker"
)

var (
	// ErrConsentRequired is returned by Start when the user has not agreed
	// to be recorded. Nothing is started.
	ErrConsentRequired = errors.New("recording requires explicit user consent")
	// ErrAlreadyStarted is returned by Start on a monitor that has left Idle.
	ErrAlreadyStarted = errors.New("monitor already started")
)

// Options configure a monitor.
type Options struct {
	Config config.Config
	// InstallDir is the install root; the store lives in <InstallDir>/data.
	// Empty means Config.ResolveInstallDir.
	InstallDir string
	// Backends defaults to DefaultBackends.
	Backends   *Backends
	Logger     *zap.Logger
	Clock      func() time.Time
	AppVersion string
}

// Monitor is the handle of one recording session.
type Monitor struct {
	opts   Options
	cfg    config.Config
	logger *zap.Logger
	clock  func() time.Time

	life       *lifecycle
	counters   *counters
	statuses   sourceStatuses
	throughput *ringbuf.Ring[ThroughputSample]

	// opMu serialises Start and Stop.
	opMu sync.Mutex
	run  atomic.Pointer[pipeline]
}

// pipeline holds everything built by Start.
type pipeline struct {
	sessionID string
	dataDir   string
	manifest  session.Manifest

	registry *capability.Registry
	codec    *codec.Codec
	queue    *queue.Queue
	store    *store.Store
	worker   *worker.Worker
	devtools *browser.DevTools

	cancelSources context.CancelFunc
	sources       *errgroup.Group
	emitAbort     context.Context
	abortEmits    context.CancelFunc
	cancelWorker  context.CancelFunc
	workerDone    chan error
}

// New returns an idle monitor.
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := opts.Config
	cfg.Normalize()
	return &Monitor{
		opts:       opts,
		cfg:        cfg,
		logger:     logger,
		clock:      clock,
		life:       newLifecycle(clock),
		counters:   newCounters(),
		throughput: ringbuf.New[ThroughputSample](ThroughputCapacity),
	}
}

// Start creates a monitor and starts it.
func Start(ctx context.Context, opts Options, consent bool) (*Monitor, error) {
	m := New(opts)
	if err := m.Start(ctx, consent); err != nil {
		return nil, err
	}
	return m, nil
}

// Start begins recording. Without consent it fails immediately and leaves
// nothing running.
func (m *Monitor) Start(ctx context.Context, consent bool) error {
	if !consent {
		m.logger.Error("start refused: recording consent not given")
		return ErrConsentRequired
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.life.State() != Idle {
		return ErrAlreadyStarted
	}

	p, planned, err := m.prepare(ctx)
	if err != nil {
		return err
	}
	m.run.Store(p)
	m.launch(p, planned)
	if err := m.life.transition(Idle, Running, "consent given"); err != nil {
		return err
	}
	m.saveManifest(p, session.StateRunning, "")
	m.logger.Info("recording started",
		zap.String("session_id", p.sessionID),
		zap.String("data_dir", p.dataDir),
		zap.Int("sources", len(planned)),
		zap.Bool("encrypted", p.codec.Encrypting()),
	)
	return nil
}

// prepare builds the pipeline without starting any goroutine.
func (m *Monitor) prepare(ctx context.Context) (p *pipeline, planned []plannedSource, err error) {
	var b Backends
	if m.opts.Backends != nil {
		b = *m.opts.Backends
	} else {
		b = DefaultBackends()
	}
	if b.Prober.Lookup == nil {
		b.Prober = permissions.NewProber(nil)
	}

	installDir := m.opts.InstallDir
	if installDir == "" {
		if installDir, err = m.cfg.ResolveInstallDir(); err != nil {
			return nil, nil, err
		}
	}
	if installDir, err = filepath.Abs(installDir); err != nil {
		return nil, nil, fmt.Errorf("resolve install dir: %w", err)
	}
	dataDir := store.DataDir(installDir)
	if err := store.EnsureDataDir(dataDir); err != nil {
		return nil, nil, err
	}

	id, err := session.NewID(m.clock())
	if err != nil {
		return nil, nil, err
	}
	p = &pipeline{sessionID: id, dataDir: dataDir}

	var sealer codec.Sealer
	key, keyErr := codec.LoadOrCreateKey(filepath.Join(dataDir, codec.KeyFileName))
	if keyErr == nil {
		aead, aeadErr := codec.NewAEAD(key)
		if aeadErr != nil {
			keyErr = aeadErr
		} else {
			sealer = aead
		}
	}
	if keyErr != nil {
		m.logger.Warn("at-rest encryption disabled for this session", zap.Error(keyErr))
	}
	p.codec = codec.New(sealer)

	var pinger interface{ Ping() error }
	if m.cfg.BrowserDebugURL != "" {
		p.devtools = browser.NewDevTools(m.cfg.BrowserDebugURL)
		pinger = p.devtools
		defer func() {
			if err != nil {
				p.devtools.Close()
			}
		}()
	}
	p.registry = capability.Detector{
		Prober:              b.Prober,
		ScreenProvider:      b.ScreenProvider,
		InputProvider:       b.InputProvider,
		WindowProvider:      b.WindowProvider,
		SpreadsheetProvider: b.SpreadsheetProvider,
		DevTools:            pinger,
		KeyErr:              keyErr,
		WatchProbe:          b.WatchProbe,
	}.Detect()
	for _, e := range p.registry.Entries() {
		if !e.Available {
			m.logger.Info("capability unavailable", zap.String("capability", string(e.Name)), zap.String("reason", e.Message))
		}
	}

	planned, err = m.plan(b, p, installDir)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, filepath.Join(dataDir, store.DatabaseFileName), m.logger.Named("store"))
	if err != nil {
		return nil, nil, err
	}
	p.store = st
	p.queue = queue.New(m.cfg.StorageQueueLimit)
	p.worker = worker.New(p.queue, st, worker.Options{
		Backoff:        throttle.Seconds(m.cfg.StorageRetryBackoff),
		MaxRetries:     m.cfg.StorageMaxRetries,
		Permanent:      func(err error) bool { return errors.Is(err, store.ErrUnknownPayload) },
		DeadLetter:     worker.NewDeadLetter(filepath.Join(dataDir, worker.DeadLetterFileName)),
		ReportInterval: throttle.Seconds(m.cfg.MetricsReportInterval),
		OnReport:       m.onReport,
		Logger:         m.logger.Named("worker"),
	})

	hostname, _ := os.Hostname()
	p.manifest = session.New(session.Options{
		SessionID:    id,
		CreatedAt:    m.clock(),
		Hostname:     hostname,
		AppVersion:   m.opts.AppVersion,
		ConfigSource: m.cfg.Source,
		DataDir:      dataDir,
		Encrypted:    p.codec.Encrypting(),
		Capture: session.CaptureSettings{
			Screen:          m.cfg.RecordScreen,
			Keyboard:        m.cfg.RecordKeyboard,
			Mouse:           m.cfg.RecordMouse,
			Apps:            m.cfg.RecordApps,
			Files:           m.cfg.RecordFiles,
			Spreadsheet:     m.cfg.RecordSpreadsheet,
			Browser:         m.cfg.RecordBrowser,
			Documents:       m.cfg.RecordDocuments,
			RetainRawFrames: m.cfg.RetainRawFrames,
			ScreenFPS:       m.cfg.ScreenFPS,
			ScreenQuality:   m.cfg.ScreenQuality,
			QueueLimit:      m.cfg.StorageQueueLimit,
		},
		Capabilities: p.registry.Entries(),
	})
	return p, planned, nil
}

// launch starts the worker and every planned source.
func (m *Monitor) launch(p *pipeline, planned []plannedSource) {
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	p.cancelWorker = cancelWorker
	p.workerDone = make(chan error, 1)
	go func() { p.workerDone <- p.worker.Run(workerCtx) }()

	sourceCtx, cancelSources := context.WithCancel(context.Background())
	p.cancelSources = cancelSources
	p.sources = &errgroup.Group{}
	p.emitAbort, p.abortEmits = context.WithCancel(context.Background())
	emit := &emitter{
		abort:     p.emitAbort,
		sessionID: p.sessionID,
		codec:     p.codec,
		queue:     p.queue,
		counters:  m.counters,
		logger:    m.logger.Named("emitter"),
	}
	for _, ps := range planned {
		m.statuses.set(ps.status, session.SourceStateRunning, "")
		p.sources.Go(func() error {
			err := ps.source.Run(sourceCtx, emit)
			switch {
			case err == nil:
				m.statuses.set(ps.status, session.SourceStateStopped, "")
			case errors.Is(err, capability.ErrUnavailable):
				m.statuses.set(ps.status, session.SourceStateUnavailable, err.Error())
				m.logger.Warn("source disabled", zap.String("source", ps.source.Name()), zap.Error(err))
			default:
				m.statuses.set(ps.status, session.SourceStateErrored, err.Error())
				m.logger.Error("source failed", zap.String("source", ps.source.Name()), zap.Error(err))
			}
			return nil
		})
	}
}

// Stop ends the session and waits for queued events to be persisted. It is
// a no-op on an idle or already stopped monitor. If ctx ends before the
// queue is drained the remaining events are abandoned and ctx's error is
// returned.
func (m *Monitor) Stop(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.life.State() != Running {
		return nil
	}
	p := m.run.Load()
	if err := m.life.transition(Running, Draining, "stop requested"); err != nil {
		return err
	}
	m.logger.Info("stopping sources", zap.String("session_id", p.sessionID))

	p.cancelSources()
	sourcesDone := make(chan struct{})
	go func() {
		_ = p.sources.Wait()
		close(sourcesDone)
	}()

	var drainErr error
	reason := "queue drained"
	select {
	case <-sourcesDone:
	case <-ctx.Done():
		drainErr = ctx.Err()
		reason = "drain abandoned"
		m.logger.Warn("drain deadline reached while sources were still handing over events")
		p.abortEmits()
		<-sourcesDone
	}
	p.queue.Close()
	m.logger.Info("draining queue", zap.Int("queued", p.queue.Len()))

	if drainErr == nil {
		select {
		case <-p.workerDone:
		case <-ctx.Done():
			drainErr = ctx.Err()
			reason = "drain abandoned"
			m.logger.Warn("drain deadline reached, abandoning queued events", zap.Int("queued", p.queue.Len()))
			p.cancelWorker()
			<-p.workerDone
		}
	} else {
		p.cancelWorker()
		<-p.workerDone
	}
	p.abortEmits()
	p.cancelWorker()

	if p.devtools != nil {
		p.devtools.Close()
	}
	if err := p.store.Close(); err != nil {
		m.logger.Warn("close store", zap.Error(err))
	}
	if err := m.life.transition(Draining, Stopped, reason); err != nil {
		return err
	}
	termination := "stopped"
	if drainErr != nil {
		termination = reason
	}
	m.saveManifest(p, session.StateStopped, termination)

	metrics := m.Metrics()
	m.logger.Info("recording stopped",
		zap.String("session_id", p.sessionID),
		zap.Int64("dropped_pointer_batches", metrics.DroppedPointerBatches),
		zap.Int64("dead_lettered", metrics.DeadLettered),
	)
	return drainErr
}

// Wait blocks until the monitor has stopped or ctx ends.
func (m *Monitor) Wait(ctx context.Context) error { return m.life.Wait(ctx) }

// State reports the lifecycle state.
func (m *Monitor) State() State { return m.life.State() }

// SessionID returns the id of the running or finished session, or "" before Start.
func (m *Monitor) SessionID() string {
	if p := m.run.Load(); p != nil {
		return p.sessionID
	}
	return ""
}

// Capabilities returns the registry resolved at Start, or nil before Start.
func (m *Monitor) Capabilities() *capability.Registry {
	if p := m.run.Load(); p != nil {
		return p.registry
	}
	return nil
}

// Metrics returns a snapshot of the session counters.
func (m *Monitor) Metrics() Metrics {
	out := Metrics{
		State:          m.life.State(),
		Produced:       m.counters.producedSnapshot(),
		Persisted:      map[event.Table]int64{},
		ProducerFaults: m.counters.faults.Load(),
		Sources:        m.statuses.snapshot(),
		Throughput:     m.throughput.Snapshot(),
		Timeline:       m.life.Timeline(),

		EncryptionFallbacks: m.counters.fallbacks.Load(),
	}
	p := m.run.Load()
	if p == nil {
		return out
	}
	out.SessionID = p.sessionID
	out.QueueLen = p.queue.Len()
	out.QueueCap = p.queue.Cap()
	out.DroppedPointerBatches = p.queue.Dropped()
	stats := p.worker.Stats()
	out.Persisted = stats.Persisted
	out.WriteFailures = stats.WriteFailures
	out.DeadLettered = stats.DeadLettered
	return out
}

func (m *Monitor) onReport(r worker.Report) {
	m.throughput.Push(ThroughputSample{At: r.At, Persisted: r.Persisted, PerSecond: r.PerSecond, QueueLen: r.QueueLen})
}

func (m *Monitor) saveManifest(p *pipeline, state, termination string) {
	man := p.manifest
	man.Status.State = state
	man.Status.Termination = termination
	man.Status.Timeline = m.life.Timeline()
	man.Status.Sources = m.statuses.snapshot()
	if state == session.StateStopped {
		ended := m.clock().UTC()
		man.Status.EndedAt = &ended
		man.Status.Counts = countsFor(m.Metrics())
	}
	if err := session.Save(man, session.Path(p.dataDir, p.sessionID)); err != nil {
		m.logger.Warn("write session manifest", zap.Error(err))
	}
}

func countsFor(mt Metrics) *session.Counts {
	c := &session.Counts{
		Produced:              make(map[string]int64, len(mt.Produced)),
		Persisted:             make(map[string]int64, len(mt.Persisted)),
		DroppedPointerBatches: mt.DroppedPointerBatches,
		ProducerFaults:        mt.ProducerFaults,
		WriteFailures:         mt.WriteFailures,
		DeadLettered:          mt.DeadLettered,
		EncryptionFallbacks:   mt.EncryptionFallbacks,
	}
	for k, v := range mt.Produced {
		c.Produced[k.String()] = v
	}
	for k, v := range mt.Persisted {
		c.Persisted[string(k)] = v
	}
	return c
}

// emitter is the single path from a source into the work queue.
type emitter struct {
	// abort ends waits for queue space that outlive the drain deadline.
	abort     context.Context
	sessionID string
	codec     *codec.Codec
	queue     *queue.Queue
	counters  *counters
	logger    *zap.Logger
}

// Emit stamps the session, seals the envelope and enqueues it. Pointer
// movement never blocks its producer; every other modality waits for space.
func (e *emitter) Emit(ctx context.Context, ev event.Event) error {
	ev.SessionID = e.sessionID
	sealed, err := e.codec.Seal(ev)
	if err != nil {
		e.counters.fallbacks.Add(1)
		e.logger.Warn("encryption failed, storing event without blob", zap.Stringer("modality", ev.Modality()), zap.Error(err))
	}
	if sealed.Delivery() == event.BestEffort {
		if e.queue.TryEnqueue(sealed) {
			e.counters.produce(sealed.Modality())
		}
		return nil
	}
	if e.abort != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(e.abort, cancel)
		defer stop()
	}
	if err := e.queue.Enqueue(ctx, sealed); err != nil {
		return err
	}
	e.counters.produce(sealed.Modality())
	return nil
}

var _ capture.Emitter = (*emitter)(nil)
