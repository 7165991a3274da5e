package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/offlinefirst/activity-recorder/pkg/activewindow"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) Emit(_ context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) snapshot() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func payloads[T event.Payload](events []event.Event) []T {
	var out []T
	for _, ev := range events {
		if p, ok := ev.Payload.(T); ok {
			out = append(out, p)
		}
	}
	return out
}

// runUntil starts src, waits until the collector holds at least n events,
// then stops the source and returns its result.
func runUntil(t *testing.T, src Source, out *collector, n int) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	require.Eventually(t, func() bool { return out.count() >= n }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("%s did not stop", src.Name())
		return nil
	}
}

func TestSampleRecoversPanics(t *testing.T) {
	var faults []string
	env := Env{OnFault: func(source string, err error) { faults = append(faults, source+": "+err.Error()) }}.withDefaults()

	err := env.sample("screen", func() error { panic("boom") })
	require.NoError(t, err)
	require.Len(t, faults, 1)
	assert.Contains(t, faults[0], "panic: boom")
}

func TestSampleSwallowsTransientErrors(t *testing.T) {
	faults := 0
	env := Env{OnFault: func(string, error) { faults++ }}.withDefaults()

	require.NoError(t, env.sample("apps", func() error { return errors.New("flaky") }))
	assert.Equal(t, 1, faults)

	for _, terminalErr := range []error{
		context.Canceled,
		queue.ErrClosed,
		&capability.UnavailableError{Capability: capability.Screen, Reason: "denied"},
	} {
		assert.ErrorIs(t, env.sample("apps", func() error { return terminalErr }), terminalErr)
	}
	assert.Equal(t, 1, faults)
}

func TestFinishTreatsShutdownAsSuccess(t *testing.T) {
	assert.NoError(t, finish(context.Canceled))
	assert.NoError(t, finish(queue.ErrClosed))
	err := unavailable(capability.Input, errors.New("no trust"))
	assert.ErrorIs(t, finish(err), capability.ErrUnavailable)
}

func TestPollTicksImmediatelyAndStops(t *testing.T) {
	env := Env{}.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	ticks := 0
	done := make(chan error, 1)
	go func() {
		done <- env.poll(ctx, "test", 10*time.Millisecond, func(time.Time) error {
			mu.Lock()
			ticks++
			mu.Unlock()
			return nil
		})
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestPollEndsOnTerminalError(t *testing.T) {
	env := Env{}.withDefaults()
	want := unavailable(capability.Spreadsheet, errors.New("gone"))
	err := env.poll(context.Background(), "test", time.Hour, func(time.Time) error { return want })
	assert.ErrorIs(t, err, capability.ErrUnavailable)
}

func TestChangedReportsOnlyDifferences(t *testing.T) {
	var c changed[string]
	assert.True(t, c.Update("a"))
	assert.False(t, c.Update("a"))
	assert.True(t, c.Update("b"))
	assert.True(t, c.Update("a"))
}

func TestEmitStampsForegroundWindow(t *testing.T) {
	env := Env{Resolver: activewindow.Static{App: "Terminal", Title: "zsh"}}.withDefaults()
	out := &collector{}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, env.emit(context.Background(), out, at, event.Keystroke{Key: "a", Char: "a"}))
	got := out.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "Terminal", got[0].App)
	assert.Equal(t, "zsh", got[0].Window)
	assert.Equal(t, at, got[0].Timestamp)
}

func TestClassifyApps(t *testing.T) {
	assert.True(t, isSpreadsheet("EXCEL.EXE"))
	assert.True(t, isSpreadsheet("Microsoft Excel"))
	assert.True(t, isSpreadsheet("Numbers"))
	assert.False(t, isSpreadsheet("Notes"))
	assert.True(t, isViewer("Preview"))
	assert.True(t, isViewer("Adobe Acrobat Reader DC"))
	assert.True(t, isViewer("AcroRd32.exe"))
	assert.False(t, isViewer("Google Chrome"))
}
