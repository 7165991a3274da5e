// Package codec produces the canonical serialization of an event envelope and,
// when a key is available, seals it into the envelope's encrypted blob.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// canonical fixes the field order of the serialized envelope.
type canonical struct {
	Modality  event.Modality  `json:"modality"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	App       string          `json:"app"`
	Window    string          `json:"window"`
	Payload   json.RawMessage `json:"payload"`
}

// Marshal returns the canonical JSON of every envelope field except the
// encrypted blob.
func Marshal(ev event.Event) ([]byte, error) {
	if ev.Payload == nil {
		return nil, errors.New("event has no payload")
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.Modality(), err)
	}
	return json.Marshal(canonical{
		Modality:  ev.Modality(),
		Timestamp: ev.Timestamp.UTC(),
		SessionID: ev.SessionID,
		App:       ev.App,
		Window:    ev.Window,
		Payload:   payload,
	})
}

// Unmarshal reverses Marshal. The returned event never carries a blob.
func Unmarshal(data []byte) (event.Event, error) {
	var c canonical
	if err := json.Unmarshal(data, &c); err != nil {
		return event.Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	payload, err := decodePayload(c.Modality, c.Payload)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		Timestamp: c.Timestamp,
		SessionID: c.SessionID,
		App:       c.App,
		Window:    c.Window,
		Payload:   payload,
	}, nil
}

func decodePayload(m event.Modality, raw json.RawMessage) (event.Payload, error) {
	switch m {
	case event.ModalityScreen:
		return decodeAs[event.ScreenFrame](m, raw)
	case event.ModalityKeystroke:
		return decodeAs[event.Keystroke](m, raw)
	case event.ModalityPointerMove:
		return decodeAs[event.MovementBatch](m, raw)
	case event.ModalityPointerClick:
		return decodeAs[event.PointerClick](m, raw)
	case event.ModalityPointerScroll:
		return decodeAs[event.PointerScroll](m, raw)
	case event.ModalityAppSwitch:
		return decodeAs[event.AppSwitch](m, raw)
	case event.ModalityFileChange:
		return decodeAs[event.FileChange](m, raw)
	case event.ModalitySpreadsheetCell:
		return decodeAs[event.SpreadsheetCell](m, raw)
	case event.ModalityBrowserNav:
		return decodeAs[event.BrowserNav](m, raw)
	case event.ModalityBrowserInteraction:
		return decodeAs[event.BrowserInteraction](m, raw)
	case event.ModalityDocumentState:
		return decodeAs[event.DocumentState](m, raw)
	default:
		return nil, fmt.Errorf("decode payload: unknown modality %d", int(m))
	}
}

func decodeAs[T event.Payload](m event.Modality, raw json.RawMessage) (event.Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", m, err)
	}
	return p, nil
}

// Codec seals canonical envelopes. A Codec without a sealer passes events
// through unencrypted.
type Codec struct {
	sealer Sealer
}

// New returns a codec that encrypts with sealer. A nil sealer disables encryption.
func New(sealer Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// Encrypting reports whether the codec has a sealer.
func (c *Codec) Encrypting() bool {
	return c != nil && c.sealer != nil
}

// Seal fills ev.EncryptedBlob. On failure the event is returned unchanged,
// without a blob, together with the error so the caller can log the downgrade.
func (c *Codec) Seal(ev event.Event) (event.Event, error) {
	ev.EncryptedBlob = nil
	if !c.Encrypting() {
		return ev, nil
	}
	plain, err := Marshal(ev)
	if err != nil {
		return ev, err
	}
	blob, err := c.sealer.Seal(plain, associatedData(ev.Modality()))
	if err != nil {
		return ev, fmt.Errorf("seal %s event: %w", ev.Modality(), err)
	}
	ev.EncryptedBlob = blob
	return ev, nil
}

// Open decrypts and decodes a blob produced by Seal.
func (c *Codec) Open(m event.Modality, blob []byte) (event.Event, error) {
	if !c.Encrypting() {
		return event.Event{}, ErrKeyUnavailable
	}
	plain, err := c.sealer.Open(blob, associatedData(m))
	if err != nil {
		return event.Event{}, err
	}
	return Unmarshal(plain)
}

func associatedData(m event.Modality) []byte {
	return []byte("activity-recorder/" + m.String())
}
