// Package session names recording sessions and persists their manifests.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/activity-recorder/pkg/capability"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 1

// DirName is the directory under the data directory holding manifests.
const DirName = "sessions"

// Manifest states.
const (
	StateRunning = "running"
	StateStopped = "stopped"
	StateFailed  = "failed"
)

// Source outcome states used in manifests for downstream tooling.
const (
	SourceStatePending     = "pending"
	SourceStateRunning     = "running"
	SourceStateStopped     = "stopped"
	SourceStateDisabled    = "disabled"
	SourceStateUnavailable = "unavailable"
	SourceStateErrored     = "error"
)

// NewID returns "<yyyymmdd_hhmmss>_<8 hex>" for a session started at now.
// The suffix comes from the random tail of a version 7 UUID so sessions
// started in the same second stay distinct.
func NewID(now time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	hex := strings.ReplaceAll(id.String(), "-", "")
	return now.UTC().Format("20060102_150405") + "_" + hex[len(hex)-8:], nil
}

// Dir returns the manifest directory for a data directory.
func Dir(dataDir string) string { return filepath.Join(dataDir, DirName) }

// Path returns the manifest path for a session.
func Path(dataDir, id string) string { return filepath.Join(Dir(dataDir), id+".json") }

// CaptureSettings records which sources were requested for the session.
type CaptureSettings struct {
	Screen          bool    `json:"screen"`
	Keyboard        bool    `json:"keyboard"`
	Mouse           bool    `json:"mouse"`
	Apps            bool    `json:"apps"`
	Files           bool    `json:"files"`
	Spreadsheet     bool    `json:"spreadsheet"`
	Browser         bool    `json:"browser"`
	Documents       bool    `json:"documents"`
	RetainRawFrames bool    `json:"retain_raw_frames"`
	ScreenFPS       float64 `json:"screen_fps"`
	ScreenQuality   float64 `json:"screen_quality"`
	QueueLimit      int     `json:"storage_queue_limit"`
}

// TimelineEntry records lifecycle transitions for diagnostics.
type TimelineEntry struct {
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceStatus captures availability and outcome details for a source.
type SourceStatus struct {
	Name       string   `json:"name"`
	Enabled    bool     `json:"enabled"`
	State      string   `json:"state"`
	Requires   []string `json:"requires,omitempty"`
	Modalities []string `json:"modalities,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// Counts are the final pipeline counters of a stopped session.
type Counts struct {
	Produced              map[string]int64 `json:"produced"`
	Persisted             map[string]int64 `json:"persisted"`
	DroppedPointerBatches int64            `json:"dropped_pointer_batches"`
	ProducerFaults        int64            `json:"producer_faults"`
	WriteFailures         int64            `json:"write_failures"`
	DeadLettered          int64            `json:"dead_lettered"`
	EncryptionFallbacks   int64            `json:"encryption_fallbacks"`
}

// Status summarises the lifecycle of a session.
type Status struct {
	State       string          `json:"state"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
	Termination string          `json:"termination,omitempty"`
	Timeline    []TimelineEntry `json:"controller_timeline,omitempty"`
	Sources     []SourceStatus  `json:"sources,omitempty"`
	Counts      *Counts         `json:"counts,omitempty"`
}

// Manifest is the durable metadata describing a recording session.
type Manifest struct {
	SchemaVersion int                `json:"schema_version"`
	SessionID     string             `json:"session_id"`
	CreatedAt     time.Time          `json:"created_at"`
	Hostname      string             `json:"hostname"`
	AppVersion    string             `json:"app_version"`
	ConfigSource  string             `json:"config_source"`
	DataDir       string             `json:"data_dir"`
	Encrypted     bool               `json:"encrypted"`
	Capture       CaptureSettings    `json:"capture"`
	Capabilities  []capability.Entry `json:"capabilities,omitempty"`
	Status        Status             `json:"status"`
}

// Options captures the knobs for creating a new manifest.
type Options struct {
	SessionID    string
	CreatedAt    time.Time
	Hostname     string
	AppVersion   string
	ConfigSource string
	DataDir      string
	Encrypted    bool
	Capture      CaptureSettings
	Capabilities []capability.Entry
}

// New constructs a running manifest.
func New(opts Options) Manifest {
	started := opts.CreatedAt.UTC()
	return Manifest{
		SchemaVersion: SchemaVersion,
		SessionID:     opts.SessionID,
		CreatedAt:     started,
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  opts.ConfigSource,
		DataDir:       opts.DataDir,
		Encrypted:     opts.Encrypted,
		Capture:       opts.Capture,
		Capabilities:  opts.Capabilities,
		Status:        Status{State: StateRunning, StartedAt: &started},
	}
}

// Save writes the manifest atomically, owner-readable only.
func Save(man Manifest, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Load reads a manifest JSON file from disk.
func Load(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}

// List returns the session ids under dataDir, oldest first. A missing
// directory yields no sessions.
func List(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(Dir(dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	// The timestamp prefix makes lexical order chronological.
	sort.Strings(ids)
	return ids, nil
}
