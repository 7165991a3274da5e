package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/session"
)

// State is a monitor lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// lifecycle guards state transitions and records them for diagnostics.
type lifecycle struct {
	mu       sync.Mutex
	state    State
	timeline []session.TimelineEntry
	clock    func() time.Time
	stopped  chan struct{}
}

func newLifecycle(clock func() time.Time) *lifecycle {
	l := &lifecycle{clock: clock, stopped: make(chan struct{})}
	l.timeline = append(l.timeline, session.TimelineEntry{State: Idle.String(), Timestamp: clock().UTC()})
	return l
}

// transition moves from one state to the next, failing if the current
// state is not from.
func (l *lifecycle) transition(from, to State, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != from {
		return fmt.Errorf("cannot move to %s from %s", to, l.state)
	}
	l.state = to
	l.timeline = append(l.timeline, session.TimelineEntry{State: to.String(), Reason: reason, Timestamp: l.clock().UTC()})
	if to == Stopped {
		close(l.stopped)
	}
	return nil
}

// State reports the current state.
func (l *lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Timeline returns a copy of the recorded transitions.
func (l *lifecycle) Timeline() []session.TimelineEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]session.TimelineEntry, len(l.timeline))
	copy(out, l.timeline)
	return out
}

// Wait blocks until the lifecycle reaches Stopped or ctx ends.
func (l *lifecycle) Wait(ctx context.Context) error {
	select {
	case <-l.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
