package capture

import (
	"context"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// Apps polls the foreground window and emits an end/start pair whenever the
// focused application changes.
type Apps struct {
	interval time.Duration
	env      Env
}

// NewApps returns an application-switch source polling at interval.
func NewApps(interval time.Duration, env Env) *Apps {
	if interval <= 0 {
		interval = time.Second
	}
	return &Apps{interval: interval, env: env.withDefaults()}
}

func (a *Apps) Name() string { return "apps" }

func (a *Apps) Modalities() []event.Modality { return []event.Modality{event.ModalityAppSwitch} }

func (a *Apps) Requires() []capability.Name { return []capability.Name{capability.ActiveWindow} }

type focus struct {
	app, title string
	since      time.Time
}

func (a *Apps) Run(ctx context.Context, emit Emitter) error {
	var current *focus
	err := a.env.poll(ctx, a.Name(), a.interval, func(now time.Time) error {
		app, title := a.env.Resolver.Resolve(ctx)
		if current != nil && current.app == app {
			current.title = title
			return nil
		}
		if current != nil {
			if err := a.end(ctx, emit, current, now); err != nil {
				return err
			}
		}
		current = &focus{app: app, title: title, since: now}
		return a.env.emitAs(ctx, emit, now, app, title, event.AppSwitch{Action: event.SwitchStart})
	})
	if current != nil {
		if endErr := a.end(context.WithoutCancel(ctx), emit, current, a.env.now()); endErr != nil && err == nil {
			err = finish(endErr)
		}
	}
	return err
}

func (a *Apps) end(ctx context.Context, emit Emitter, f *focus, now time.Time) error {
	d := now.Sub(f.since)
	if d < 0 {
		d = 0
	}
	return a.env.emitAs(ctx, emit, now, f.app, f.title, event.AppSwitch{Action: event.SwitchEnd, Duration: d})
}
