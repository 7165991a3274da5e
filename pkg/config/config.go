// Package config loads the recorder's YAML configuration and applies the
// documented defaults and clamps.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/offlinefirst/activity-recorder/pkg/throttle"
)

const DefaultFileName = "config.yaml"

// DefaultInstallDirName is created under the user's home directory when no
// install directory is configured.
const DefaultInstallDirName = ".activity-recorder"

// Config captures the user-adjustable knobs for the capture pipeline. Keys
// are flat to match the documented option names.
type Config struct {
	RecordScreen      bool `yaml:"record_screen"`
	RecordKeyboard    bool `yaml:"record_keyboard"`
	RecordMouse       bool `yaml:"record_mouse"`
	RecordApps        bool `yaml:"record_apps"`
	RecordFiles       bool `yaml:"record_files"`
	RecordSpreadsheet bool `yaml:"record_spreadsheet"`
	RecordBrowser     bool `yaml:"record_browser"`
	RecordDocuments   bool `yaml:"record_documents"`
	RetainRawFrames   bool `yaml:"retain_raw_frames"`

	ScreenFPS         float64 `yaml:"screen_fps"`
	ScreenQuality     float64 `yaml:"screen_quality"`
	MouseMoveThrottle float64 `yaml:"mouse_move_throttle"`
	MouseBatchSize    int     `yaml:"mouse_batch_size"`
	ClickCaptureSize  int     `yaml:"click_capture_size"`

	AppPollInterval      float64 `yaml:"app_poll_interval"`
	AppStatePollInterval float64 `yaml:"app_state_poll_interval"`

	StorageQueueLimit     int     `yaml:"storage_queue_limit"`
	StorageRetryBackoff   float64 `yaml:"storage_retry_backoff"`
	StorageMaxRetries     int     `yaml:"storage_max_retries"`
	MetricsReportInterval float64 `yaml:"metrics_report_interval"`

	BrowserDebugURL    string   `yaml:"browser_debug_url"`
	FileIgnorePatterns []string `yaml:"file_ignore_patterns"`
	InstallDir         string   `yaml:"install_dir"`

	Logging LoggingConfig `yaml:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `yaml:"-"`
}

// LoggingConfig defines log verbosity, formatting and the optional rotating file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		RecordScreen:      true,
		RecordKeyboard:    true,
		RecordMouse:       true,
		RecordApps:        true,
		RecordFiles:       true,
		RecordSpreadsheet: true,
		RecordBrowser:     true,
		RecordDocuments:   true,

		ScreenFPS:         throttle.DefaultScreenFPS,
		ScreenQuality:     throttle.DefaultScreenQuality,
		MouseMoveThrottle: throttle.DefaultMoveThrottle,
		MouseBatchSize:    throttle.DefaultBatchSize,
		ClickCaptureSize:  400,

		AppPollInterval:      throttle.DefaultAppPoll,
		AppStatePollInterval: throttle.DefaultAppStatePoll,

		StorageQueueLimit:     throttle.DefaultQueueLimit,
		StorageRetryBackoff:   0.5,
		StorageMaxRetries:     20,
		MetricsReportInterval: 10,

		FileIgnorePatterns: []string{"sqlite", "tmp", "swap", "backup", "lock", "dsstore"},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./config.yaml but tolerates a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	data, err := os.ReadFile(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return cfg, fmt.Errorf("config file %q not found", candidate)
			}
			cfg.Normalize()
			return cfg, nil
		}
		return cfg, fmt.Errorf("open config file %q: %w", candidate, err)
	}

	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %q: %w", candidate, err)
	}
	cfg.Source = candidate
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decode overlays the document onto cfg. Unknown keys are rejected.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}
	if c.StorageMaxRetries <= 0 {
		return errors.New("storage_max_retries must be positive")
	}
	return nil
}

// Normalize applies the documented floors and clamps. It is idempotent.
func (c *Config) Normalize() {
	defaults := Default()

	c.ScreenFPS = throttle.ClampFPS(c.ScreenFPS)
	c.ScreenQuality = throttle.ClampQuality(c.ScreenQuality)
	c.MouseMoveThrottle = throttle.ClampMoveThrottle(c.MouseMoveThrottle)
	c.MouseBatchSize = throttle.ClampBatchSize(c.MouseBatchSize)
	c.StorageQueueLimit = throttle.ClampQueueLimit(c.StorageQueueLimit)
	c.AppPollInterval = throttle.ClampSeconds(c.AppPollInterval, throttle.MinAppPoll)
	c.AppStatePollInterval = throttle.ClampSeconds(c.AppStatePollInterval, throttle.MinAppStatePoll)

	if c.ClickCaptureSize <= 0 {
		c.ClickCaptureSize = defaults.ClickCaptureSize
	}
	if c.StorageRetryBackoff <= 0 {
		c.StorageRetryBackoff = defaults.StorageRetryBackoff
	}
	if c.StorageMaxRetries <= 0 {
		c.StorageMaxRetries = defaults.StorageMaxRetries
	}
	if c.MetricsReportInterval <= 0 {
		c.MetricsReportInterval = defaults.MetricsReportInterval
	}
	c.BrowserDebugURL = strings.TrimSpace(c.BrowserDebugURL)
	if dir := strings.TrimSpace(c.InstallDir); dir != "" {
		c.InstallDir = filepath.Clean(dir)
	} else {
		c.InstallDir = ""
	}

	if level, err := NormalizeLogLevel(c.Logging.Level); err == nil {
		c.Logging.Level = level
	}
	if format, err := NormalizeFormat(c.Logging.Format); err == nil {
		c.Logging.Format = format
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
}

// ResolveInstallDir returns the configured install directory, or the
// default under the user's home directory.
func (c Config) ResolveInstallDir() (string, error) {
	if c.InstallDir != "" {
		return filepath.Abs(c.InstallDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultInstallDirName), nil
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
