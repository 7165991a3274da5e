// Package throttle holds the pure rate-limiting and coalescing rules applied
// to raw capture samples, and the clamping rules for the options that drive
// them. Nothing here touches the OS, so every decision is reproducible from
// its inputs.
package throttle

import (
	"math"
	"time"
)

// Defaults and bounds for the recognized capture options.
const (
	DefaultScreenFPS     = 1.0
	MinScreenFPS         = 0.2
	DefaultScreenQuality = 0.7
	MinScreenQuality     = 0.1
	MaxScreenQuality     = 1.0

	DefaultMoveThrottle = 0.2
	MinMoveThrottle     = 0.05
	DefaultBatchSize    = 20
	MinBatchSize        = 1

	DefaultQueueLimit = 1000
	MinQueueLimit     = 100

	DefaultAppPoll      = 1.0
	MinAppPoll          = 0.2
	DefaultAppStatePoll = 2.0
	MinAppStatePoll     = 0.5
)

// ClampQuality bounds an image quality factor to [0.1, 1.0].
func ClampQuality(q float64) float64 {
	switch {
	case math.IsNaN(q):
		return DefaultScreenQuality
	case q < MinScreenQuality:
		return MinScreenQuality
	case q > MaxScreenQuality:
		return MaxScreenQuality
	default:
		return q
	}
}

// ClampFPS raises zero, negative, or tiny frame rates to the floor.
func ClampFPS(fps float64) float64 {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps < MinScreenFPS {
		return MinScreenFPS
	}
	return fps
}

// FrameInterval converts a frame rate into the delay between captures.
func FrameInterval(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / ClampFPS(fps))
}

// ClampSeconds applies a floor to an interval expressed in seconds.
func ClampSeconds(seconds, floor float64) float64 {
	if math.IsNaN(seconds) || seconds < floor {
		return floor
	}
	return seconds
}

// ClampMoveThrottle floors the minimum spacing between pointer samples.
func ClampMoveThrottle(seconds float64) float64 {
	return ClampSeconds(seconds, MinMoveThrottle)
}

// ClampQueueLimit floors the work queue capacity.
func ClampQueueLimit(n int) int {
	if n < MinQueueLimit {
		return MinQueueLimit
	}
	return n
}

// ClampBatchSize floors the movement batch size.
func ClampBatchSize(n int) int {
	if n < MinBatchSize {
		return MinBatchSize
	}
	return n
}

// Seconds converts fractional seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
