package capture

import (
	"context"

	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/pkg/browser"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/input"
	"github.com/offlinefirst/activity-recorder/pkg/screen"
	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

// DefaultClickCaptureSize is the side of the square grabbed around a
// browser click.
const DefaultClickCaptureSize = 400

// PointerOptions configure the pointer source.
type PointerOptions struct {
	Hook     input.Hook
	Settings throttle.Settings
	// Grabber is optional. Without it browser clicks carry no screenshot.
	Grabber     screen.Grabber
	CaptureSize int
	Quality     float64
}

// Pointer coalesces movement into batches and emits clicks and scrolls
// individually. A click or scroll first flushes the pending batch so the
// producer's output stays in capture order.
type Pointer struct {
	opts    PointerOptions
	env     Env
	batcher *throttle.Batcher
}

// NewPointer returns a pointer source.
func NewPointer(opts PointerOptions, env Env) *Pointer {
	opts.Settings = opts.Settings.Normalized()
	if opts.CaptureSize <= 0 {
		opts.CaptureSize = DefaultClickCaptureSize
	}
	opts.Quality = throttle.ClampQuality(opts.Quality)
	return &Pointer{opts: opts, env: env.withDefaults(), batcher: throttle.NewBatcher(opts.Settings)}
}

func (p *Pointer) Name() string { return "pointer" }

func (p *Pointer) Modalities() []event.Modality {
	return []event.Modality{
		event.ModalityPointerMove,
		event.ModalityPointerClick,
		event.ModalityPointerScroll,
		event.ModalityBrowserInteraction,
	}
}

func (p *Pointer) Requires() []capability.Name { return []capability.Name{capability.Input} }

func (p *Pointer) Run(ctx context.Context, emit Emitter) error {
	err := p.env.listen(ctx, p.Name(), p.opts.Hook, input.MaskPointer, func(ctx context.Context, r input.Raw) error {
		return p.handle(ctx, emit, r)
	})
	// The final partial batch is offered once, best effort, after the hook
	// has been released.
	if flushErr := p.flush(context.WithoutCancel(ctx), emit); flushErr != nil {
		p.env.Logger.Debug("final movement batch not queued", zap.Error(flushErr))
	}
	return err
}

func (p *Pointer) handle(ctx context.Context, emit Emitter, r input.Raw) error {
	switch r.Kind {
	case input.PointerMove:
		if samples, full := p.batcher.Offer(event.Sample{X: r.X, Y: r.Y, At: r.At}); full {
			return p.emitBatch(ctx, emit, samples)
		}
		return nil
	case input.PointerDown, input.PointerUp:
		if err := p.flush(ctx, emit); err != nil {
			return err
		}
		return p.click(ctx, emit, r)
	case input.Scroll:
		if err := p.flush(ctx, emit); err != nil {
			return err
		}
		return p.env.emit(ctx, emit, r.At, event.PointerScroll{X: r.X, Y: r.Y, DX: r.DX, DY: r.DY})
	default:
		return nil
	}
}

func (p *Pointer) click(ctx context.Context, emit Emitter, r input.Raw) error {
	app, title := p.env.Resolver.Resolve(ctx)
	pressed := r.Kind == input.PointerDown
	err := p.env.emitAs(ctx, emit, r.At, app, title, event.PointerClick{X: r.X, Y: r.Y, Button: r.Button, Pressed: pressed})
	if err != nil || !pressed || !browser.IsBrowser(app) {
		return err
	}
	return p.env.emitAs(ctx, emit, r.At, app, title, event.BrowserInteraction{
		Kind:       event.InteractionClick,
		X:          r.X,
		Y:          r.Y,
		Screenshot: p.clickShot(ctx, r.X, r.Y),
	})
}

// clickShot grabs the region around a click. Failures only omit the image.
func (p *Pointer) clickShot(ctx context.Context, x, y int) []byte {
	if p.opts.Grabber == nil {
		return nil
	}
	frame, err := p.opts.Grabber.Grab(ctx)
	if err != nil {
		p.env.Logger.Debug("click screenshot unavailable", zap.Error(err))
		return nil
	}
	data, err := screen.Encode(screen.Crop(frame.Image, x, y, p.opts.CaptureSize), p.opts.Quality)
	if err != nil {
		p.env.Logger.Debug("click screenshot encode failed", zap.Error(err))
		return nil
	}
	return data
}

func (p *Pointer) flush(ctx context.Context, emit Emitter) error {
	samples, ok := p.batcher.Flush()
	if !ok {
		return nil
	}
	return p.emitBatch(ctx, emit, samples)
}

func (p *Pointer) emitBatch(ctx context.Context, emit Emitter, samples []event.Sample) error {
	at := samples[len(samples)-1].At
	if at.IsZero() {
		at = p.env.now()
	}
	return p.env.emit(ctx, emit, at, event.MovementBatch{Samples: samples})
}
