package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleTransitions(t *testing.T) {
	l := newLifecycle(time.Now)
	assert.Equal(t, Idle, l.State())

	require.NoError(t, l.transition(Idle, Running, "start"))
	assert.Error(t, l.transition(Idle, Running, "start again"))
	require.NoError(t, l.transition(Running, Draining, "stop requested"))
	require.NoError(t, l.transition(Draining, Stopped, "drained"))

	timeline := l.Timeline()
	require.Len(t, timeline, 4)
	assert.Equal(t, "idle", timeline[0].State)
	assert.Equal(t, "running", timeline[1].State)
	assert.Equal(t, "draining", timeline[2].State)
	assert.Equal(t, "stopped", timeline[3].State)
	assert.Equal(t, "drained", timeline[3].Reason)
}

func TestLifecycleWaitUnblocksOnStop(t *testing.T) {
	l := newLifecycle(time.Now)
	require.NoError(t, l.transition(Idle, Running, ""))

	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background()) }()

	select {
	case <-time.After(50 * time.Millisecond):
	case err := <-done:
		t.Fatalf("expected wait to block, got %v", err)
	}

	require.NoError(t, l.transition(Running, Draining, ""))
	require.NoError(t, l.transition(Draining, Stopped, ""))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock after stop")
	}
}

func TestLifecycleWaitRespectsContextCancellation(t *testing.T) {
	l := newLifecycle(time.Now)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
