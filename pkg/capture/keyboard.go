package capture

import (
	"context"

	"github.com/offlinefirst/activity-recorder/pkg/browser"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/input"
)

// Keyboard emits one event per key press. A printable key pressed while a
// browser is focused also yields a browser keypress interaction.
type Keyboard struct {
	hook input.Hook
	env  Env
}

// NewKeyboard returns a keyboard source reading from hook.
func NewKeyboard(hook input.Hook, env Env) *Keyboard {
	return &Keyboard{hook: hook, env: env.withDefaults()}
}

func (k *Keyboard) Name() string { return "keyboard" }

func (k *Keyboard) Modalities() []event.Modality {
	return []event.Modality{event.ModalityKeystroke, event.ModalityBrowserInteraction}
}

func (k *Keyboard) Requires() []capability.Name { return []capability.Name{capability.Input} }

func (k *Keyboard) Run(ctx context.Context, emit Emitter) error {
	return k.env.listen(ctx, k.Name(), k.hook, input.MaskKeyboard, func(ctx context.Context, r input.Raw) error {
		if r.Kind != input.KeyDown {
			return nil
		}
		app, title := k.env.Resolver.Resolve(ctx)
		special := r.Special()
		ks := event.Keystroke{Key: r.Key, Special: special}
		if !special {
			ks.Char = r.Char
		}
		if err := k.env.emitAs(ctx, emit, r.At, app, title, ks); err != nil {
			return err
		}
		if special || !browser.IsBrowser(app) {
			return nil
		}
		return k.env.emitAs(ctx, emit, r.At, app, title, event.BrowserInteraction{
			Kind: event.InteractionKeypress,
			Key:  r.Char,
		})
	})
}
