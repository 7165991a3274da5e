package throttle

import (
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// Batcher applies Decide to a stream of pointer samples and coalesces the
// accepted ones. It is owned by a single producer and is not safe for
// concurrent use.
type Batcher struct {
	settings Settings
	history  History
	pending  []event.Sample
}

// NewBatcher returns a batcher for the given settings.
func NewBatcher(s Settings) *Batcher {
	s = s.Normalized()
	return &Batcher{settings: s, pending: make([]event.Sample, 0, s.BatchSize)}
}

// Offer feeds a movement sample. When the sample completes a batch the full
// batch is returned and the pending buffer resets.
func (b *Batcher) Offer(sample event.Sample) ([]event.Sample, bool) {
	switch Decide(KindMove, b.settings, b.history, sample.At) {
	case Drop:
		return nil, false
	case Accumulate:
		b.accept(sample)
		return nil, false
	default:
		b.accept(sample)
		return b.Flush()
	}
}

// Flush returns and clears any pending samples.
func (b *Batcher) Flush() ([]event.Sample, bool) {
	if len(b.pending) == 0 {
		return nil, false
	}
	out := b.pending
	b.pending = make([]event.Sample, 0, b.settings.BatchSize)
	b.history.Pending = 0
	return out, true
}

// Pending reports how many samples await the next flush.
func (b *Batcher) Pending() int {
	return len(b.pending)
}

// LastAccepted reports the timestamp of the last accepted sample.
func (b *Batcher) LastAccepted() time.Time {
	return b.history.LastAccepted
}

func (b *Batcher) accept(sample event.Sample) {
	b.pending = append(b.pending, sample)
	b.history.Pending = len(b.pending)
	b.history.LastAccepted = sample.At
}
