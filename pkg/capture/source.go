// Package capture hosts the per-modality producers. Each source runs on its
// own goroutine, stamps events with the foreground window, and hands them to
// an Emitter. Sources never share state with one another.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/pkg/activewindow"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/queue"
	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

// Emitter accepts events from a source. Guaranteed events block until
// accepted; best-effort events may be dropped. Sources hand Emit a context
// that stopping the source does not cancel, so an event captured before
// Stop is never discarded while it waits for queue space. The Emitter owns
// abandoning such a wait.
type Emitter interface {
	Emit(ctx context.Context, ev event.Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev event.Event) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, ev event.Event) error { return f(ctx, ev) }

// Source is one capture producer.
type Source interface {
	Name() string
	// Modalities lists the event kinds the source may emit.
	Modalities() []event.Modality
	// Requires lists capabilities that must be available for Run to work.
	Requires() []capability.Name
	// Run produces events until ctx is cancelled. It returns nil on a normal
	// stop and an UnavailableError when its dependency disappears.
	Run(ctx context.Context, emit Emitter) error
}

// Env carries the collaborators shared by every source.
type Env struct {
	Resolver activewindow.Resolver
	Clock    func() time.Time
	Logger   *zap.Logger
	// OnFault is called for every swallowed sampling error.
	OnFault func(source string, err error)
}

func (e Env) withDefaults() Env {
	if e.Resolver == nil {
		e.Resolver = activewindow.Static{}
	}
	if e.Clock == nil {
		e.Clock = time.Now
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	return e
}

func (e Env) now() time.Time { return e.Clock().UTC() }

// emit stamps the payload with the current foreground window.
func (e Env) emit(ctx context.Context, out Emitter, at time.Time, p event.Payload) error {
	app, title := e.Resolver.Resolve(context.WithoutCancel(ctx))
	return e.emitAs(ctx, out, at, app, title, p)
}

// emitAs hands the event over detached from ctx's cancellation.
func (e Env) emitAs(ctx context.Context, out Emitter, at time.Time, app, title string, p event.Payload) error {
	return out.Emit(context.WithoutCancel(ctx), event.Event{Timestamp: at, App: app, Window: title, Payload: p})
}

// sample runs one iteration of a source loop. Transient errors and panics
// are logged, counted, and swallowed. Errors that end the source are
// returned.
func (e Env) sample(source string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.fault(source, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()
	if err := fn(); err != nil {
		if terminal(err) {
			return err
		}
		e.fault(source, err)
	}
	return nil
}

func (e Env) fault(source string, err error) {
	e.Logger.Warn("sample failed", zap.String("source", source), zap.Error(err))
	if e.OnFault != nil {
		e.OnFault(source, err)
	}
}

func terminal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, queue.ErrClosed) ||
		errors.Is(err, capability.ErrUnavailable)
}

// finish maps the error ending a source loop to Run's contract.
func finish(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrClosed) {
		return nil
	}
	return err
}

// poll calls fn immediately and then once per interval until ctx ends or
// fn returns a terminal error. A gate suppresses catch-up bursts after the
// process was suspended.
func (e Env) poll(ctx context.Context, source string, interval time.Duration, fn func(now time.Time) error) error {
	gate := throttle.NewGate(interval / 2)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := func() error {
		now := e.now()
		if !gate.Allow(now) {
			return nil
		}
		return e.sample(source, func() error { return fn(now) })
	}
	if err := tick(); err != nil {
		return finish(err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := tick(); err != nil {
				return finish(err)
			}
		}
	}
}

func unavailable(name capability.Name, err error) error {
	return &capability.UnavailableError{Capability: name, Reason: err.Error()}
}

// changed tracks the last observed state of a polling source.
type changed[T comparable] struct {
	last T
	seen bool
}

// Update records v and reports whether it differs from the previous value.
func (c *changed[T]) Update(v T) bool {
	if c.seen && c.last == v {
		return false
	}
	c.last, c.seen = v, true
	return true
}
