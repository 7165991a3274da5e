package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

func keystroke(producer string, seq int) event.Event {
	return event.Event{App: producer, Payload: event.Keystroke{Key: string(rune('a' + seq%26))}, SessionID: producer, Timestamp: time.Unix(int64(seq), 0)}
}

func TestCapacityFloor(t *testing.T) {
	assert.Equal(t, throttle.MinQueueLimit, New(5).Cap())
	assert.Equal(t, 2000, New(2000).Cap())
}

func TestTryEnqueueDropsWhenFull(t *testing.T) {
	q := New(100)
	for i := 0; i < 100; i++ {
		require.True(t, q.TryEnqueue(keystroke("p", i)))
	}
	assert.False(t, q.TryEnqueue(keystroke("p", 100)))
	assert.Equal(t, int64(1), q.Dropped())
	assert.Equal(t, 100, q.Len())
}

func TestEnqueueBlocksUntilSpace(t *testing.T) {
	q := New(100)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Enqueue(ctx, keystroke("p", i)))
	}

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, keystroke("p", 100)) }()

	select {
	case err := <-done:
		t.Fatalf("expected enqueue to block on a full queue, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	_, ok := q.Dequeue(ctx)
	require.True(t, ok)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("enqueue did not unblock after space was freed")
	}
	assert.Equal(t, int64(0), q.Dropped())
}

func TestEnqueueRespectsContext(t *testing.T) {
	q := New(100)
	for i := 0; i < 100; i++ {
		require.True(t, q.TryEnqueue(keystroke("p", i)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, keystroke("p", 0)), context.DeadlineExceeded)
}

func TestCloseDrainsThenStops(t *testing.T) {
	q := New(100)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, keystroke("p", i)))
	}
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(ctx, keystroke("p", 9)), ErrClosed)
	assert.False(t, q.TryEnqueue(keystroke("p", 9)))

	for i := 0; i < 3; i++ {
		ev, ok := q.Dequeue(ctx)
		require.True(t, ok)
		assert.Equal(t, time.Unix(int64(i), 0), ev.Timestamp)
	}
	_, ok := q.Dequeue(ctx)
	assert.False(t, ok)
}

func TestDequeueUnblocksOnClose(t *testing.T) {
	q := New(100)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(context.Background())
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatalf("dequeue did not observe close")
	}
}

func TestPerProducerFIFO(t *testing.T) {
	q := New(100)
	ctx := context.Background()
	producers := []string{"keyboard", "screen", "files", "apps"}
	const perProducer = 500

	var wg sync.WaitGroup
	for _, name := range producers {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Enqueue(ctx, keystroke(name, i)); err != nil {
					t.Errorf("enqueue: %v", err)
					return
				}
			}
		}(name)
	}
	go func() {
		wg.Wait()
		q.Close()
	}()

	last := make(map[string]int64)
	total := 0
	for {
		ev, ok := q.Dequeue(ctx)
		if !ok {
			break
		}
		seq := ev.Timestamp.Unix()
		if prev, seen := last[ev.App]; seen && seq <= prev {
			t.Fatalf("producer %s out of order: %d after %d", ev.App, seq, prev)
		}
		last[ev.App] = seq
		total++
	}
	assert.Equal(t, len(producers)*perProducer, total)
}
