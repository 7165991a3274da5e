package throttle

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

var epoch = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func TestDecideMove(t *testing.T) {
	s := Settings{MoveInterval: 200 * time.Millisecond, BatchSize: 3}

	assert.Equal(t, Accumulate, Decide(KindMove, s, History{}, epoch))
	assert.Equal(t, Drop, Decide(KindMove, s, History{LastAccepted: epoch, Pending: 1}, epoch.Add(100*time.Millisecond)))
	assert.Equal(t, Accumulate, Decide(KindMove, s, History{LastAccepted: epoch, Pending: 1}, epoch.Add(200*time.Millisecond)))
	assert.Equal(t, EmitNow, Decide(KindMove, s, History{LastAccepted: epoch, Pending: 2}, epoch.Add(time.Second)))
}

func TestDecideClicksAndScrollsAlwaysEmit(t *testing.T) {
	h := History{LastAccepted: epoch, Pending: 5}
	assert.Equal(t, EmitNow, Decide(KindClick, DefaultSettings(), h, epoch))
	assert.Equal(t, EmitNow, Decide(KindScroll, DefaultSettings(), h, epoch))
}

func TestDecideIsDeterministic(t *testing.T) {
	s := DefaultSettings()
	h := History{LastAccepted: epoch, Pending: 7}
	at := epoch.Add(300 * time.Millisecond)
	first := Decide(KindMove, s, h, at)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Decide(KindMove, s, h, at))
	}
}

func TestBatcherScenario(t *testing.T) {
	b := NewBatcher(Settings{MoveInterval: 50 * time.Millisecond, BatchSize: 5})

	var batches [][]event.Sample
	for i := 0; i < 12; i++ {
		at := epoch.Add(time.Duration(i) * 200 * time.Millisecond)
		if batch, ok := b.Offer(event.Sample{X: i, Y: i, At: at}); ok {
			batches = append(batches, batch)
		}
	}

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 5)
	assert.Len(t, batches[1], 5)
	assert.Equal(t, 0, batches[0][0].X)
	assert.Equal(t, 5, batches[1][0].X)
	assert.Equal(t, 2, b.Pending())

	rest, ok := b.Flush()
	require.True(t, ok)
	assert.Len(t, rest, 2)
	assert.Equal(t, 10, rest[0].X)

	_, ok = b.Flush()
	assert.False(t, ok)
}

func TestBatcherDropsSamplesInsideInterval(t *testing.T) {
	b := NewBatcher(Settings{MoveInterval: 200 * time.Millisecond, BatchSize: 20})
	for i := 0; i < 10; i++ {
		b.Offer(event.Sample{At: epoch.Add(time.Duration(i) * 10 * time.Millisecond)})
	}
	assert.Equal(t, 1, b.Pending())
}

func TestGateLimitsPolling(t *testing.T) {
	g := NewGate(time.Second)
	assert.True(t, g.Allow(epoch))
	assert.False(t, g.Allow(epoch.Add(500*time.Millisecond)))
	assert.True(t, g.Allow(epoch.Add(time.Second)))
}

func TestClampsHandleEdgeInputs(t *testing.T) {
	assert.Equal(t, 0.1, ClampQuality(0))
	assert.Equal(t, 1.0, ClampQuality(5.0))
	assert.Equal(t, 0.7, ClampQuality(math.NaN()))
	assert.Equal(t, MinScreenFPS, ClampFPS(0))
	assert.Equal(t, MinScreenFPS, ClampFPS(-4))
	assert.InDelta(t, float64(5*time.Second), float64(FrameInterval(0)), float64(time.Millisecond))
	assert.Equal(t, time.Second, FrameInterval(1))
	assert.Equal(t, 0.05, ClampMoveThrottle(0.01))
	assert.Equal(t, 100, ClampQueueLimit(3))
	assert.Equal(t, 1000, ClampQueueLimit(1000))
	assert.Equal(t, 1, ClampBatchSize(0))
}

func TestNormalizedDefaultsUnsetFields(t *testing.T) {
	assert.Equal(t, DefaultSettings(), Settings{}.Normalized())

	explicit := Settings{MoveInterval: time.Millisecond, BatchSize: -3, PollInterval: time.Second}.Normalized()
	assert.Equal(t, Seconds(MinMoveThrottle), explicit.MoveInterval)
	assert.Equal(t, MinBatchSize, explicit.BatchSize)
}

func TestProperty_ClampLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("quality is clamped into [0.1, 1.0] and clamping is idempotent", prop.ForAll(
		func(q float64) bool {
			once := ClampQuality(q)
			return once >= MinScreenQuality && once <= MaxScreenQuality && ClampQuality(once) == once
		},
		gen.Float64Range(-100, 100),
	))

	properties.Property("frame rate never falls below the floor", prop.ForAll(
		func(fps float64) bool {
			once := ClampFPS(fps)
			return once >= MinScreenFPS && ClampFPS(once) == once && FrameInterval(fps) > 0
		},
		gen.Float64Range(-10, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_CoalescingReducesEventCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("n samples inside one throttle interval yield fewer than n batches", prop.ForAll(
		func(n int, batchSize int, intervalMs int) bool {
			interval := time.Duration(intervalMs) * time.Millisecond
			b := NewBatcher(Settings{MoveInterval: interval, BatchSize: batchSize})
			step := interval / time.Duration(n+1)
			emitted := 0
			for i := 0; i < n; i++ {
				if _, ok := b.Offer(event.Sample{X: i, At: epoch.Add(time.Duration(i) * step)}); ok {
					emitted++
				}
			}
			if _, ok := b.Flush(); ok {
				emitted++
			}
			return emitted < n
		},
		gen.IntRange(2, 300),
		gen.IntRange(1, 50),
		gen.IntRange(50, 2000),
	))

	properties.Property("batches never exceed the configured size", prop.ForAll(
		func(n int, batchSize int) bool {
			b := NewBatcher(Settings{MoveInterval: 50 * time.Millisecond, BatchSize: batchSize})
			for i := 0; i < n; i++ {
				if batch, ok := b.Offer(event.Sample{At: epoch.Add(time.Duration(i) * 60 * time.Millisecond)}); ok && len(batch) != batchSize {
					return false
				}
			}
			return b.Pending() < batchSize
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}
