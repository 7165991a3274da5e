// Package input streams global keyboard and pointer events from the OS.
package input

import (
	"context"
	"errors"
	"time"
	"unicode"
)

// ErrAccessibilityPermission indicates the host must grant Accessibility trust.
var ErrAccessibilityPermission = errors.New("accessibility permission required for input capture")

// ErrUnsupported is returned on platforms without a global input hook.
var ErrUnsupported = errors.New("global input hooks unsupported on this platform")

// Kind classifies a raw input sample.
type Kind int

const (
	KeyDown Kind = iota + 1
	PointerMove
	PointerDown
	PointerUp
	Scroll
)

// Mask selects which device classes a listener receives.
type Mask uint8

const (
	MaskKeyboard Mask = 1 << iota
	MaskPointer
)

// Has reports whether m includes other.
func (m Mask) Has(other Mask) bool { return m&other != 0 }

// Raw is one OS input sample before throttling.
type Raw struct {
	At   time.Time
	Kind Kind
	// Key is a stable key name, Char the produced text if any.
	Key  string
	Char string
	X, Y int
	// Button is "left", "right" or "other" for pointer buttons.
	Button string
	DX, DY int
}

// Special reports whether a key press produced no printable character.
func (r Raw) Special() bool {
	if r.Char == "" {
		return true
	}
	for _, c := range r.Char {
		if !unicode.IsPrint(c) {
			return true
		}
	}
	return false
}

// Hook delivers raw input until ctx is cancelled. Listen unsubscribes from
// the OS before returning. The callback runs on the listener goroutine and
// must not block for long.
type Hook interface {
	Listen(ctx context.Context, mask Mask, fn func(Raw)) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, mask Mask, fn func(Raw)) error

// Listen calls f.
func (f HookFunc) Listen(ctx context.Context, mask Mask, fn func(Raw)) error {
	return f(ctx, mask, fn)
}

// Replay returns a hook that delivers the given samples in order and then
// waits for cancellation, which is how tests and dry runs drive sources.
func Replay(samples []Raw) Hook {
	return HookFunc(func(ctx context.Context, mask Mask, fn func(Raw)) error {
		for _, s := range samples {
			if ctx.Err() != nil {
				return nil
			}
			if !mask.Has(maskFor(s.Kind)) {
				continue
			}
			fn(s)
		}
		<-ctx.Done()
		return nil
	})
}

func maskFor(k Kind) Mask {
	if k == KeyDown {
		return MaskKeyboard
	}
	return MaskPointer
}
