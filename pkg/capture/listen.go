package capture

import (
	"context"
	"errors"

	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/input"
)

// rawBuffer decouples the OS callback from enqueueing so a full work queue
// never stalls the OS event tap itself.
const rawBuffer = 512

// listen runs hook until ctx ends and feeds every raw sample to handle on
// the calling goroutine. Samples already buffered when ctx ends are still
// handled, so nothing accepted from the OS is lost on stop.
func (e Env) listen(ctx context.Context, source string, hook input.Hook, mask input.Mask, handle func(context.Context, input.Raw) error) error {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	raws := make(chan input.Raw, rawBuffer)
	listenErr := make(chan error, 1)
	go func() {
		err := hook.Listen(lctx, mask, func(r input.Raw) {
			select {
			case raws <- r:
			case <-lctx.Done():
			}
		})
		close(raws)
		listenErr <- err
	}()

	emitCtx := context.WithoutCancel(ctx)
	var stopErr error
	for r := range raws {
		if stopErr != nil {
			continue
		}
		if r.At.IsZero() {
			r.At = e.now()
		} else {
			r.At = r.At.UTC()
		}
		if err := e.sample(source, func() error { return handle(emitCtx, r) }); err != nil {
			stopErr = err
			cancel()
		}
	}

	err := <-listenErr
	if stopErr != nil {
		return finish(stopErr)
	}
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, input.ErrAccessibilityPermission), errors.Is(err, input.ErrUnsupported):
		return unavailable(capability.Input, err)
	default:
		return err
	}
}
