package session

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/capability"
)

func TestNewIDFormat(t *testing.T) {
	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	id, err := NewID(now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^20240512_073000_[0-9a-f]{8}$`), id)

	other, err := NewID(now)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	created := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	man := New(Options{
		SessionID:  "20240512_093000_deadbeef",
		CreatedAt:  created,
		Hostname:   "workstation",
		AppVersion: "dev",
		DataDir:    dataDir,
		Encrypted:  true,
		Capture:    CaptureSettings{Screen: true, Keyboard: true, ScreenFPS: 1, ScreenQuality: 0.7, QueueLimit: 1000},
		Capabilities: []capability.Entry{
			{Name: capability.Screen, Available: true, Provider: "coregraphics"},
		},
	})
	assert.Equal(t, StateRunning, man.Status.State)
	require.NotNil(t, man.Status.StartedAt)

	path := Path(dataDir, man.SessionID)
	require.NoError(t, Save(man, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, man.SessionID, loaded.SessionID)
	assert.Equal(t, man.Capture, loaded.Capture)
	assert.True(t, loaded.Encrypted)
	require.Len(t, loaded.Capabilities, 1)
	assert.Equal(t, "coregraphics", loaded.Capabilities[0].Provider)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestListSortsSessions(t *testing.T) {
	dataDir := t.TempDir()
	ids, err := List(dataDir)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"20240512_093000_bbbbbbbb", "20240511_080000_aaaaaaaa"} {
		require.NoError(t, Save(New(Options{SessionID: id}), Path(dataDir, id)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(Dir(dataDir), "notes.txt"), nil, 0o600))

	ids, err = List(dataDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240511_080000_aaaaaaaa", "20240512_093000_bbbbbbbb"}, ids)
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
