package capture

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/activewindow"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/input"
	"github.com/offlinefirst/activity-recorder/pkg/screen"
	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestKeyboardEmitsKeystrokes(t *testing.T) {
	hook := input.Replay([]input.Raw{
		{At: epoch, Kind: input.KeyDown, Key: "h", Char: "h"},
		{At: epoch.Add(time.Millisecond), Kind: input.KeyDown, Key: "return"},
		{At: epoch.Add(2 * time.Millisecond), Kind: input.PointerMove, X: 1, Y: 1},
	})
	out := &collector{}
	kb := NewKeyboard(hook, Env{Resolver: activewindow.Static{App: "TextEdit", Title: "notes"}})

	require.NoError(t, runUntil(t, kb, out, 2))
	keys := payloads[event.Keystroke](out.snapshot())
	require.Len(t, keys, 2)
	assert.Equal(t, event.Keystroke{Key: "h", Char: "h"}, keys[0])
	assert.Equal(t, event.Keystroke{Key: "return", Special: true}, keys[1])
	assert.Empty(t, payloads[event.BrowserInteraction](out.snapshot()))
}

func TestKeyboardDerivesBrowserKeypress(t *testing.T) {
	hook := input.Replay([]input.Raw{
		{At: epoch, Kind: input.KeyDown, Key: "q", Char: "q"},
		{At: epoch.Add(time.Millisecond), Kind: input.KeyDown, Key: "tab"},
	})
	out := &collector{}
	kb := NewKeyboard(hook, Env{Resolver: activewindow.Static{App: "Google Chrome", Title: "Search - Google Chrome"}})

	require.NoError(t, runUntil(t, kb, out, 3))
	got := out.snapshot()
	require.Len(t, got, 3)
	interactions := payloads[event.BrowserInteraction](got)
	require.Len(t, interactions, 1)
	assert.Equal(t, event.InteractionKeypress, interactions[0].Kind)
	assert.Equal(t, "q", interactions[0].Key)
	assert.Equal(t, "Google Chrome", got[1].App)
}

func TestKeyboardUnavailableWithoutHook(t *testing.T) {
	hook := input.HookFunc(func(context.Context, input.Mask, func(input.Raw)) error {
		return input.ErrAccessibilityPermission
	})
	err := NewKeyboard(hook, Env{}).Run(context.Background(), &collector{})
	assert.ErrorIs(t, err, capability.ErrUnavailable)
}

func moves(n int, spacing time.Duration) []input.Raw {
	raws := make([]input.Raw, 0, n)
	for i := 0; i < n; i++ {
		raws = append(raws, input.Raw{At: epoch.Add(time.Duration(i) * spacing), Kind: input.PointerMove, X: i, Y: i * 2})
	}
	return raws
}

// delivering replays samples and closes the returned channel once every
// sample has been handed to the listener.
func delivering(samples []input.Raw) (input.Hook, <-chan struct{}) {
	delivered := make(chan struct{})
	return input.HookFunc(func(ctx context.Context, mask input.Mask, fn func(input.Raw)) error {
		for _, s := range samples {
			fn(s)
		}
		close(delivered)
		<-ctx.Done()
		return nil
	}), delivered
}

func runDelivered(t *testing.T, src Source, delivered <-chan struct{}, out *collector) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()
	<-delivered
	cancel()
	require.NoError(t, <-done)
}

func TestPointerBatchesAndFlushesOnStop(t *testing.T) {
	hook, delivered := delivering(moves(12, 200*time.Millisecond))
	out := &collector{}
	p := NewPointer(PointerOptions{
		Hook:     hook,
		Settings: throttle.Settings{MoveInterval: 50 * time.Millisecond, BatchSize: 5},
	}, Env{})

	runDelivered(t, p, delivered, out)
	batches := payloads[event.MovementBatch](out.snapshot())
	require.Len(t, batches, 3)
	assert.Equal(t, 5, batches[0].Count())
	assert.Equal(t, 5, batches[1].Count())
	assert.Equal(t, 2, batches[2].Count())
	assert.Equal(t, 10, batches[2].Samples[0].X)

	got := out.snapshot()
	assert.Equal(t, epoch.Add(4*200*time.Millisecond), got[0].Timestamp)
}

func TestPointerDropsSamplesInsideThrottle(t *testing.T) {
	hook, delivered := delivering(moves(10, 10*time.Millisecond))
	out := &collector{}
	p := NewPointer(PointerOptions{
		Hook:     hook,
		Settings: throttle.Settings{MoveInterval: 50 * time.Millisecond, BatchSize: 100},
	}, Env{})

	runDelivered(t, p, delivered, out)

	batches := payloads[event.MovementBatch](out.snapshot())
	require.Len(t, batches, 1)
	// Only the samples at 0ms and 50ms are far enough apart.
	assert.Equal(t, 2, batches[0].Count())
}

func TestPointerClickFlushesPendingMovement(t *testing.T) {
	// Default settings: 200ms throttle, batches of 20.
	raws := append(moves(3, 300*time.Millisecond),
		input.Raw{At: epoch.Add(time.Second), Kind: input.PointerDown, X: 5, Y: 6, Button: "left"},
		input.Raw{At: epoch.Add(time.Second + time.Millisecond), Kind: input.PointerUp, X: 5, Y: 6, Button: "left"},
		input.Raw{At: epoch.Add(2 * time.Second), Kind: input.Scroll, X: 5, Y: 6, DY: -3},
	)
	out := &collector{}
	p := NewPointer(PointerOptions{Hook: input.Replay(raws)}, Env{})

	require.NoError(t, runUntil(t, p, out, 4))
	got := out.snapshot()
	require.Len(t, got, 4)
	require.IsType(t, event.MovementBatch{}, got[0].Payload)
	assert.Equal(t, 3, got[0].Payload.(event.MovementBatch).Count())
	assert.Equal(t, event.PointerClick{X: 5, Y: 6, Button: "left", Pressed: true}, got[1].Payload)
	assert.Equal(t, event.PointerClick{X: 5, Y: 6, Button: "left", Pressed: false}, got[2].Payload)
	assert.Equal(t, event.PointerScroll{X: 5, Y: 6, DY: -3}, got[3].Payload)
}

func TestPointerBrowserClickCarriesScreenshot(t *testing.T) {
	grabber := screen.GrabberFunc(func(context.Context) (screen.Frame, error) {
		return screen.Frame{Image: solid(800, 600), Backend: "test"}, nil
	})
	out := &collector{}
	p := NewPointer(PointerOptions{
		Hook:        input.Replay([]input.Raw{{At: epoch, Kind: input.PointerDown, X: 100, Y: 100, Button: "left"}}),
		Grabber:     grabber,
		CaptureSize: 50,
	}, Env{Resolver: activewindow.Static{App: "Safari", Title: "Docs"}})

	require.NoError(t, runUntil(t, p, out, 2))
	interactions := payloads[event.BrowserInteraction](out.snapshot())
	require.Len(t, interactions, 1)
	assert.Equal(t, event.InteractionClick, interactions[0].Kind)
	assert.NotEmpty(t, interactions[0].Screenshot)
}

func TestPointerBrowserClickWithoutScreenshot(t *testing.T) {
	grabber := screen.GrabberFunc(func(context.Context) (screen.Frame, error) {
		return screen.Frame{}, screen.ErrPermissionRequired
	})
	out := &collector{}
	p := NewPointer(PointerOptions{
		Hook:    input.Replay([]input.Raw{{At: epoch, Kind: input.PointerDown, X: 1, Y: 1, Button: "left"}}),
		Grabber: grabber,
	}, Env{Resolver: activewindow.Static{App: "Firefox", Title: "x"}})

	require.NoError(t, runUntil(t, p, out, 2))
	interactions := payloads[event.BrowserInteraction](out.snapshot())
	require.Len(t, interactions, 1)
	assert.Nil(t, interactions[0].Screenshot)
}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}
