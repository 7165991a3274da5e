package activewindow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

func TestStaticNormalizesEmptyValues(t *testing.T) {
	app, title := Static{}.Resolve(context.Background())
	assert.Equal(t, event.Unknown, app)
	assert.Equal(t, event.Unknown, title)

	app, title = Static{App: " Safari ", Title: "Inbox"}.Resolve(context.Background())
	assert.Equal(t, "Safari", app)
	assert.Equal(t, "Inbox", title)
}

func TestGuardedRecoversFromPanics(t *testing.T) {
	r := guarded{Func(func(context.Context) (string, string) { panic("backend crashed") })}
	app, title := r.Resolve(context.Background())
	assert.Equal(t, event.Unknown, app)
	assert.Equal(t, event.Unknown, title)
}

func TestGuardedBoundsCallDuration(t *testing.T) {
	r := guarded{Func(func(ctx context.Context) (string, string) {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(CallTimeout), deadline, 50*time.Millisecond)
		return "Mail", ""
	})}
	app, title := r.Resolve(context.Background())
	assert.Equal(t, "Mail", app)
	assert.Equal(t, event.Unknown, title)
}

func TestMemoCachesWithinTTL(t *testing.T) {
	var calls atomic.Int32
	inner := Func(func(context.Context) (string, string) {
		calls.Add(1)
		return "Excel", "Budget.xlsx"
	})
	now := time.Unix(1000, 0)
	m := NewMemo(inner, time.Second)
	m.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		app, _ := m.Resolve(context.Background())
		assert.Equal(t, "Excel", app)
	}
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Second)
	m.Resolve(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoDisabledWithZeroTTL(t *testing.T) {
	var calls atomic.Int32
	m := NewMemo(Func(func(context.Context) (string, string) {
		calls.Add(1)
		return "a", "b"
	}), 0)
	m.Resolve(context.Background())
	m.Resolve(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewNeverReturnsEmpty(t *testing.T) {
	r, provider := New()
	assert.NotEmpty(t, provider)
	app, title := r.Resolve(context.Background())
	assert.NotEmpty(t, app)
	assert.NotEmpty(t, title)
}
