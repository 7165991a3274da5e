package throttle

import "time"

// Decision is the outcome for a single raw sample.
type Decision int

const (
	// Drop discards the sample.
	Drop Decision = iota
	// Accumulate keeps the sample in the pending batch.
	Accumulate
	// EmitNow emits immediately; for movement it closes the pending batch.
	EmitNow
)

func (d Decision) String() string {
	switch d {
	case Accumulate:
		return "accumulate"
	case EmitNow:
		return "emit"
	default:
		return "drop"
	}
}

// Kind classifies raw samples for the policy.
type Kind int

const (
	KindMove Kind = iota
	KindClick
	KindScroll
	// KindPoll covers the timer-driven sources.
	KindPoll
)

// Settings are the clamped options a policy decision depends on.
type Settings struct {
	MoveInterval time.Duration
	BatchSize    int
	PollInterval time.Duration
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		MoveInterval: Seconds(DefaultMoveThrottle),
		BatchSize:    DefaultBatchSize,
		PollInterval: Seconds(DefaultAppPoll),
	}
}

// Normalized fills unset fields with their defaults and applies the same
// floors the configuration loader applies to explicit values.
func (s Settings) Normalized() Settings {
	switch {
	case s.MoveInterval <= 0:
		s.MoveInterval = Seconds(DefaultMoveThrottle)
	case s.MoveInterval < Seconds(MinMoveThrottle):
		s.MoveInterval = Seconds(MinMoveThrottle)
	}
	if s.BatchSize == 0 {
		s.BatchSize = DefaultBatchSize
	}
	s.BatchSize = ClampBatchSize(s.BatchSize)
	if s.PollInterval <= 0 {
		s.PollInterval = Seconds(DefaultAppPoll)
	}
	return s
}

// History is the recent state of one producer.
type History struct {
	// LastAccepted is the timestamp of the last sample not dropped.
	LastAccepted time.Time
	// Pending is the number of samples waiting in the current batch.
	Pending int
}

// Decide classifies a sample observed at `at`.
func Decide(kind Kind, s Settings, h History, at time.Time) Decision {
	s = s.Normalized()
	switch kind {
	case KindClick, KindScroll:
		return EmitNow
	case KindMove:
		if tooSoon(h.LastAccepted, at, s.MoveInterval) {
			return Drop
		}
		if h.Pending+1 >= s.BatchSize {
			return EmitNow
		}
		return Accumulate
	case KindPoll:
		if tooSoon(h.LastAccepted, at, s.PollInterval) {
			return Drop
		}
		return EmitNow
	default:
		return Drop
	}
}

func tooSoon(last, at time.Time, interval time.Duration) bool {
	if last.IsZero() {
		return false
	}
	return at.Sub(last) < interval
}

// Gate rate-limits a polling producer so catch-up ticks after a stall do not
// produce a burst of samples.
type Gate struct {
	settings Settings
	last     time.Time
}

// NewGate returns a gate allowing at most one sample per interval.
func NewGate(interval time.Duration) *Gate {
	return &Gate{settings: Settings{PollInterval: interval}}
}

// Allow reports whether a sample at `at` may proceed and records it if so.
func (g *Gate) Allow(at time.Time) bool {
	if Decide(KindPoll, g.settings, History{LastAccepted: g.last}, at) != EmitNow {
		return false
	}
	g.last = at
	return true
}
