package recorder

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/session"
)

// ThroughputCapacity bounds the retained throughput history.
const ThroughputCapacity = 60

// ThroughputSample is one periodic persistence rate observation.
type ThroughputSample struct {
	At        time.Time
	Persisted int64
	PerSecond float64
	QueueLen  int
}

// Metrics is a point-in-time snapshot of a monitor.
type Metrics struct {
	SessionID string
	State     State
	Produced  map[event.Modality]int64
	Persisted map[event.Table]int64
	QueueLen  int
	QueueCap  int

	DroppedPointerBatches int64
	ProducerFaults        int64
	WriteFailures         int64
	DeadLettered          int64
	EncryptionFallbacks   int64

	Sources    []session.SourceStatus
	Throughput []ThroughputSample
	Timeline   []session.TimelineEntry
}

// counters are the producer-side tallies.
type counters struct {
	mu       sync.Mutex
	produced map[event.Modality]int64

	faults    atomic.Int64
	fallbacks atomic.Int64
}

func newCounters() *counters {
	return &counters{produced: make(map[event.Modality]int64)}
}

func (c *counters) produce(m event.Modality) {
	c.mu.Lock()
	c.produced[m]++
	c.mu.Unlock()
}

func (c *counters) producedSnapshot() map[event.Modality]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[event.Modality]int64, len(c.produced))
	for k, v := range c.produced {
		out[k] = v
	}
	return out
}

// sourceStatuses tracks the outcome of every configured source.
type sourceStatuses struct {
	mu       sync.Mutex
	statuses []session.SourceStatus
}

func (s *sourceStatuses) add(st session.SourceStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
	return len(s.statuses) - 1
}

func (s *sourceStatuses) set(i int, state, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[i].State = state
	if message != "" {
		s.statuses[i].Message = message
	}
}

func (s *sourceStatuses) snapshot() []session.SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.SourceStatus, len(s.statuses))
	copy(out, s.statuses)
	return out
}

func (s *sourceStatuses) reset() {
	s.mu.Lock()
	s.statuses = nil
	s.mu.Unlock()
}
