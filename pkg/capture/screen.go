package capture

import (
	"context"
	"errors"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/screen"
	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

// ScreenOptions configure the screen source.
type ScreenOptions struct {
	Grabber   screen.Grabber
	FPS       float64
	Quality   float64
	RetainRaw bool
}

// Screen emits one compressed frame of the primary display per interval.
type Screen struct {
	opts ScreenOptions
	env  Env
}

// NewScreen clamps the frame rate and quality.
func NewScreen(opts ScreenOptions, env Env) *Screen {
	opts.FPS = throttle.ClampFPS(opts.FPS)
	opts.Quality = throttle.ClampQuality(opts.Quality)
	return &Screen{opts: opts, env: env.withDefaults()}
}

func (s *Screen) Name() string { return "screen" }

func (s *Screen) Modalities() []event.Modality { return []event.Modality{event.ModalityScreen} }

func (s *Screen) Requires() []capability.Name { return []capability.Name{capability.Screen} }

func (s *Screen) Run(ctx context.Context, emit Emitter) error {
	return s.env.poll(ctx, s.Name(), throttle.FrameInterval(s.opts.FPS), func(now time.Time) error {
		return s.capture(ctx, emit, now)
	})
}

func (s *Screen) capture(ctx context.Context, emit Emitter, now time.Time) error {
	frame, err := s.opts.Grabber.Grab(ctx)
	if err != nil {
		if errors.Is(err, screen.ErrPermissionRequired) || errors.Is(err, screen.ErrUnsupported) {
			return unavailable(capability.Screen, err)
		}
		return err
	}
	compressed, err := screen.Encode(frame.Image, s.opts.Quality)
	if err != nil {
		return err
	}
	b := frame.Image.Bounds()
	payload := event.ScreenFrame{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Quality:    s.opts.Quality,
		Compressed: compressed,
	}
	if s.opts.RetainRaw {
		payload.Raw = screen.PackRaw(frame.Image)
	}
	return s.env.emit(ctx, emit, now, payload)
}
