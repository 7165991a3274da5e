package capability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/permissions"
)

type lookup map[string]string

func (l lookup) get(k string) (string, bool) {
	v, ok := l[k]
	return v, ok
}

type pinger struct{ err error }

func (p pinger) Ping() error { return p.err }

func detector(env lookup, goos string) Detector {
	return Detector{
		Prober:              permissions.Prober{Lookup: env.get, GOOS: goos},
		ScreenProvider:      "coregraphics",
		InputProvider:       "quartz_event_tap",
		WindowProvider:      "nsworkspace",
		SpreadsheetProvider: "applescript",
		WatchProbe:          func() error { return nil },
	}
}

func TestDetectAllAvailable(t *testing.T) {
	reg := detector(lookup{}, "darwin").Detect()
	for _, n := range []Name{Screen, Input, ActiveWindow, Spreadsheet, Filesystem, Encryption} {
		assert.True(t, reg.Available(n), n)
		assert.NoError(t, reg.Require(n))
	}
	assert.False(t, reg.Available(BrowserDevTools))
	assert.Equal(t, "window_title", reg.Get(BrowserDevTools).Provider)
}

func TestDeniedPermissionDisablesCapability(t *testing.T) {
	reg := detector(lookup{permissions.EnvScreenRecording: "denied"}, "darwin").Detect()
	err := reg.Require(Screen)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, Screen, unavailable.Capability)
	assert.Contains(t, err.Error(), "screen recording permission missing")
	assert.True(t, reg.Available(Input))
}

func TestMissingBackend(t *testing.T) {
	d := detector(lookup{}, "linux")
	d.InputProvider = "unavailable"
	reg := d.Detect()
	assert.False(t, reg.Available(Input))
	assert.Equal(t, "no backend on this platform", reg.Get(Input).Message)
}

func TestDevToolsAndEncryption(t *testing.T) {
	d := detector(lookup{}, "darwin")
	d.DevTools = pinger{}
	d.KeyErr = errors.New("key unreadable")
	reg := d.Detect()
	assert.True(t, reg.Available(BrowserDevTools))
	assert.False(t, reg.Available(Encryption))

	d.DevTools = pinger{err: errors.New("connection refused")}
	assert.False(t, d.Detect().Available(BrowserDevTools))
}

func TestFilesystemProbeFailure(t *testing.T) {
	d := detector(lookup{}, "linux")
	d.WatchProbe = func() error { return errors.New("too many open files") }
	assert.False(t, d.Detect().Available(Filesystem))
}

func TestEntriesOrderAndUnknown(t *testing.T) {
	reg := NewRegistry(Entry{Name: "zz_extra", Available: true})
	entries := reg.Entries()
	require.Len(t, entries, len(Names())+1)
	assert.Equal(t, Screen, entries[0].Name)
	assert.Equal(t, Name("zz_extra"), entries[len(entries)-1].Name)
	assert.False(t, reg.Available(Screen))
}
