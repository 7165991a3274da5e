//go:build !darwin && !linux

package screen

import "context"

// Default reports that no grab backend exists on this platform.
func Default() (Grabber, string) {
	return GrabberFunc(func(context.Context) (Frame, error) { return Frame{}, ErrUnsupported }), "unavailable"
}
