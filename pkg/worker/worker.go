// Package worker drains the work queue into the store. It is the only
// component that writes to the database.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

const (
	DefaultBackoff        = 500 * time.Millisecond
	DefaultMaxRetries     = 20
	DefaultReportInterval = 10 * time.Second
)

// Source is the consumer side of the work queue.
type Source interface {
	Dequeue(ctx context.Context) (event.Event, bool)
	Len() int
}

// Writer persists a single event.
type Writer interface {
	Write(ctx context.Context, ev event.Event) error
}

// Report is a periodic throughput sample.
type Report struct {
	At        time.Time
	Persisted int64
	PerSecond float64
	QueueLen  int
}

// Options tunes retry and reporting behaviour. Zero values take defaults.
type Options struct {
	// Backoff is the fixed delay between attempts on the same event.
	Backoff time.Duration
	// MaxRetries bounds attempts per event before it is dead-lettered.
	MaxRetries int
	// Permanent reports errors that no retry can fix, such as an event
	// with no destination table.
	Permanent      func(error) bool
	DeadLetter     *DeadLetter
	ReportInterval time.Duration
	OnReport       func(Report)
	Logger         *zap.Logger
}

// Stats is a point-in-time view of the worker counters.
type Stats struct {
	Persisted     map[event.Table]int64
	WriteFailures int64
	DeadLettered  int64
}

// Worker is the single consumer of the work queue.
type Worker struct {
	src    Source
	dst    Writer
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	persisted map[event.Table]int64
	total     atomic.Int64
	failures  atomic.Int64
	dead      atomic.Int64
}

// New returns a worker reading from src and writing to dst.
func New(src Source, dst Writer, opts Options) *Worker {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = DefaultReportInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		src:       src,
		dst:       dst,
		opts:      opts,
		logger:    logger,
		persisted: make(map[event.Table]int64),
	}
}

// Run consumes events until the queue is closed and drained, or ctx is
// cancelled. A closed queue is the normal way to end Run; ctx cancellation
// abandons whatever is still buffered.
func (w *Worker) Run(ctx context.Context) error {
	reportCtx, stopReports := context.WithCancel(context.Background())
	var reporter sync.WaitGroup
	reporter.Add(1)
	go func() {
		defer reporter.Done()
		w.reportLoop(reportCtx)
	}()
	defer func() {
		stopReports()
		reporter.Wait()
	}()

	for {
		ev, ok := w.src.Dequeue(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.logger.Info("queue drained", zap.Int64("persisted", w.total.Load()))
			return nil
		}
		w.persist(ctx, ev)
	}
}

// persist retries in place so the event is written at most once and events
// behind it keep their order.
func (w *Worker) persist(ctx context.Context, ev event.Event) {
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxRetries; attempt++ {
		err := w.dst.Write(ctx, ev)
		if err == nil {
			w.recordSuccess(ev.Table())
			if attempt > 1 {
				w.logger.Info("write recovered", zap.Stringer("modality", ev.Modality()), zap.Int("attempts", attempt))
			}
			return
		}
		lastErr = err
		w.failures.Add(1)
		if !w.retryable(err) {
			break
		}
		w.logger.Warn("write failed, retrying",
			zap.Stringer("modality", ev.Modality()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", w.opts.Backoff),
			zap.Error(err),
		)
		if attempt == w.opts.MaxRetries {
			break
		}
		if !sleep(ctx, w.opts.Backoff) {
			break
		}
	}
	w.deadLetter(ev, lastErr)
}

func (w *Worker) deadLetter(ev event.Event, cause error) {
	w.dead.Add(1)
	fields := []zap.Field{
		zap.Stringer("modality", ev.Modality()),
		zap.Time("captured_at", ev.Timestamp),
		zap.Int("max_retries", w.opts.MaxRetries),
		zap.Error(cause),
	}
	if w.opts.DeadLetter == nil {
		w.logger.Error("write abandoned", fields...)
		return
	}
	if err := w.opts.DeadLetter.Append(ev, w.opts.MaxRetries, cause); err != nil {
		w.logger.Error("write abandoned and dead letter failed", append(fields, zap.NamedError("journal_error", err))...)
		return
	}
	w.logger.Error("write abandoned, event journaled", append(fields, zap.String("journal", w.opts.DeadLetter.Path()))...)
}

func (w *Worker) recordSuccess(t event.Table) {
	w.mu.Lock()
	w.persisted[t]++
	w.mu.Unlock()
	w.total.Add(1)
}

// Stats returns a copy of the worker counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	persisted := make(map[event.Table]int64, len(w.persisted))
	for k, v := range w.persisted {
		persisted[k] = v
	}
	w.mu.Unlock()
	return Stats{
		Persisted:     persisted,
		WriteFailures: w.failures.Load(),
		DeadLettered:  w.dead.Load(),
	}
}

func (w *Worker) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.ReportInterval)
	defer ticker.Stop()

	last := w.total.Load()
	lastAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			total := w.total.Load()
			r := Report{
				At:        now,
				Persisted: total,
				PerSecond: float64(total-last) / now.Sub(lastAt).Seconds(),
				QueueLen:  w.src.Len(),
			}
			last, lastAt = total, now
			w.logger.Debug("throughput",
				zap.Int64("persisted", r.Persisted),
				zap.Float64("per_second", r.PerSecond),
				zap.Int("queue_len", r.QueueLen),
			)
			if w.opts.OnReport != nil {
				w.opts.OnReport(r)
			}
		}
	}
}

func (w *Worker) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return w.opts.Permanent == nil || !w.opts.Permanent(err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
