package codec

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

func sampleEvents() []event.Event {
	at := time.Date(2024, 6, 3, 14, 5, 9, 120000000, time.UTC)
	base := event.Event{Timestamp: at, SessionID: "20240603_140500_0a1b2c3d", App: "chrome", Window: "Inbox - Mail"}
	payloads := []event.Payload{
		event.ScreenFrame{Width: 4, Height: 2, Quality: 0.7, Compressed: []byte{0xff, 0xd8, 0x01}},
		event.Keystroke{Key: "a", Char: "a"},
		event.Keystroke{Key: "enter", Special: true},
		event.MovementBatch{Samples: []event.Sample{{X: 1, Y: 2, At: at}, {X: 3, Y: 4, At: at.Add(time.Second)}}},
		event.PointerClick{X: 10, Y: 20, Button: "left", Pressed: true},
		event.PointerScroll{X: 10, Y: 20, DY: -3},
		event.AppSwitch{Action: event.SwitchEnd, Duration: 42 * time.Second},
		event.FileChange{Action: event.FileMoved, Path: "/tmp/a.txt", DestPath: "/tmp/b.txt", Size: 12},
		event.SpreadsheetCell{Workbook: "Budget.xlsx", Sheet: "Q1", Cell: "$B$4", Value: "12", Formula: "=SUM(B1:B3)"},
		event.BrowserNav{URL: "https://example.com/", Title: "Example"},
		event.BrowserInteraction{Kind: event.InteractionClick, X: 5, Y: 6, Screenshot: []byte{1, 2, 3}},
		event.DocumentState{Document: "report.pdf", Viewer: "Adobe Acrobat Reader", Page: 3},
	}
	out := make([]event.Event, 0, len(payloads))
	for _, p := range payloads {
		ev := base
		ev.Payload = p
		out = append(out, ev)
	}
	return out
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	sealer, err := NewAEAD(key)
	require.NoError(t, err)
	return New(sealer)
}

func TestSealOpenRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	for _, original := range sampleEvents() {
		t.Run(original.Modality().String(), func(t *testing.T) {
			sealed, err := c.Seal(original)
			require.NoError(t, err)
			require.NotEmpty(t, sealed.EncryptedBlob)

			opened, err := c.Open(sealed.Modality(), sealed.EncryptedBlob)
			require.NoError(t, err)

			plain := sealed
			plain.EncryptedBlob = nil
			if diff := cmp.Diff(plain, opened, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalIsStable(t *testing.T) {
	ev := sampleEvents()[1]
	first, err := Marshal(ev)
	require.NoError(t, err)
	second, err := Marshal(ev)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"modality":"keystroke"`)
}

func TestOpenRejectsWrongModality(t *testing.T) {
	c := newTestCodec(t)
	sealed, err := c.Seal(sampleEvents()[1])
	require.NoError(t, err)

	_, err = c.Open(event.ModalityScreen, sealed.EncryptedBlob)
	assert.ErrorIs(t, err, ErrMalformedBlob)

	_, err = c.Open(event.ModalityKeystroke, sealed.EncryptedBlob[:10])
	assert.ErrorIs(t, err, ErrMalformedBlob)
}

type failingSealer struct{}

func (failingSealer) Seal([]byte, []byte) ([]byte, error) { return nil, assert.AnError }
func (failingSealer) Open([]byte, []byte) ([]byte, error) { return nil, assert.AnError }

func TestSealFailureDowngradesToPlaintext(t *testing.T) {
	c := New(failingSealer{})
	ev := sampleEvents()[1]
	ev.EncryptedBlob = []byte("stale")

	out, err := c.Seal(ev)
	require.Error(t, err)
	assert.Nil(t, out.EncryptedBlob)
	assert.Equal(t, ev.Payload, out.Payload)
}

func TestCodecWithoutSealerPassesThrough(t *testing.T) {
	c := New(nil)
	assert.False(t, c.Encrypting())

	out, err := c.Seal(sampleEvents()[0])
	require.NoError(t, err)
	assert.Nil(t, out.EncryptedBlob)

	_, err = c.Open(event.ModalityScreen, []byte("x"))
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestUnmarshalRejectsUnknownModality(t *testing.T) {
	_, err := Unmarshal([]byte(`{"modality":"telepathy","payload":{}}`))
	assert.Error(t, err)
}

func TestLoadOrCreateKeyGeneratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", KeyFileName)

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestLoadOrCreateKeyRejectsCorruptKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), KeyFileName)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := LoadOrCreateKey(path)
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestCheckKeyDoesNotCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), KeyFileName)
	require.NoError(t, CheckKey(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))
	assert.ErrorIs(t, CheckKey(path), ErrKeyUnavailable)
}
