//go:build !darwin

package input

import "context"

// Default returns a hook that reports ErrUnsupported. Sources treat that as a
// missing capability and disable themselves.
func Default() (Hook, string) {
	return HookFunc(func(context.Context, Mask, func(Raw)) error { return ErrUnsupported }), "unavailable"
}
