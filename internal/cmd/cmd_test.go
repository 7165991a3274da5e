package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/activity-recorder/pkg/activewindow"
	"github.com/offlinefirst/activity-recorder/pkg/input"
	"github.com/offlinefirst/activity-recorder/pkg/permissions"
	"github.com/offlinefirst/activity-recorder/pkg/recorder"
	"github.com/offlinefirst/activity-recorder/pkg/store"
)

const keyboardOnly = `record_screen: false
record_keyboard: true
record_mouse: false
record_apps: false
record_files: false
record_spreadsheet: false
record_browser: false
record_documents: false
logging:
  level: warn
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func fakeBackends(t *testing.T) {
	t.Helper()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	orig := defaultBackends
	defaultBackends = func() recorder.Backends {
		return recorder.Backends{
			Window:         activewindow.Static{App: "TextEdit", Title: "notes.txt"},
			WindowProvider: "static",
			Hook: input.Replay([]input.Raw{
				{At: at, Kind: input.KeyDown, Key: "h", Char: "h"},
				{At: at.Add(time.Millisecond), Kind: input.KeyDown, Key: "i", Char: "i"},
				{At: at.Add(2 * time.Millisecond), Kind: input.KeyDown, Key: "return"},
			}),
			InputProvider: "replay",
			Prober:        permissions.Prober{Lookup: func(string) (string, bool) { return "granted", true }, GOOS: "darwin"},
		}
	}
	t.Cleanup(func() { defaultBackends = orig })
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rc := NewRootCommand()
	rc.SetOutput(&stdout, &stderr)
	err := rc.Execute(args)
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	origVersion, origGOOS := runtimeVersion, runtimeGOOS
	runtimeVersion = func() string { return "go1.24.0" }
	runtimeGOOS = func() string { return "plan9" }
	t.Cleanup(func() { runtimeVersion, runtimeGOOS = origVersion, origGOOS })

	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(go1.24.0/plan9)")
}

func TestRunRequiresConsent(t *testing.T) {
	installDir := t.TempDir()
	_, stderr, err := execute(t, "run", "--install-dir", installDir)
	require.ErrorIs(t, err, recorder.ErrConsentRequired)
	assert.Contains(t, stderr, "--consent")
	assert.NoDirExists(t, store.DataDir(installDir))
}

func TestRunRejectsUnknownConfigKeys(t *testing.T) {
	cfg := writeConfig(t, "record_telepathy: true\n")
	_, _, err := execute(t, "--config", cfg, "run", "--consent", "--install-dir", t.TempDir())
	assert.Error(t, err)
}

func TestRunRecordsAndStatsReports(t *testing.T) {
	fakeBackends(t)
	cfg := writeConfig(t, keyboardOnly)
	installDir := t.TempDir()

	stdout, _, err := execute(t, "--config", cfg, "run", "--consent", "--install-dir", installDir, "--duration", "500ms")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Recording session ")
	assert.Contains(t, stdout, "keystrokes")
	assert.Contains(t, stdout, "keyboard: stopped")
	assert.FileExists(t, filepath.Join(store.DataDir(installDir), store.DatabaseFileName))

	stdout, _, err = execute(t, "--config", cfg, "stats", "--install-dir", installDir)
	require.NoError(t, err)
	assert.Regexp(t, `keystrokes\s+3\n`, stdout)
	assert.Contains(t, stdout, "Recent sessions:")
	assert.Contains(t, stdout, "stopped")
}

func TestStatsWithoutStore(t *testing.T) {
	cfg := writeConfig(t, keyboardOnly)
	_, _, err := execute(t, "--config", cfg, "stats", "--install-dir", t.TempDir())
	assert.Error(t, err)
}

func TestDoctorListsCapabilities(t *testing.T) {
	fakeBackends(t)
	cfg := writeConfig(t, keyboardOnly)
	installDir := t.TempDir()

	stdout, _, err := execute(t, "--config", cfg, "doctor", "--install-dir", installDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Capabilities:")
	assert.Regexp(t, `input\s+available\s+provider=replay`, stdout)
	assert.Regexp(t, `screen\s+unavailable`, stdout)
	assert.Contains(t, stdout, "(not created yet)")
	assert.NoDirExists(t, store.DataDir(installDir))
}
