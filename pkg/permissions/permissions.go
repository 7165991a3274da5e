// Package permissions probes the coarse OS permission state that gates the
// capture backends. Environment overrides let operators and tests force a
// state without touching system settings.
package permissions

import (
	"os"
	"runtime"
	"strings"
)

// Status enumerates coarse permission results for macOS-style prompts.
type Status string

const (
	StatusUnknown        Status = "unknown"
	StatusGranted        Status = "granted"
	StatusDenied         Status = "denied"
	StatusPromptRequired Status = "prompt"
	StatusUnavailable    Status = "unavailable"
	// StatusNotRequired means the platform grants the capability without a prompt.
	StatusNotRequired Status = "not_required"
)

// Environment variables that override probe results.
const (
	EnvScreenRecording = "RECORDER_SCREEN_RECORDING"
	EnvAccessibility   = "RECORDER_ACCESSIBILITY"
	EnvAutomation      = "RECORDER_AUTOMATION"
)

// ProbeResult represents the coarse state for a permission surface.
type ProbeResult struct {
	Status   Status
	Message  string
	Guidance string
}

// LookupEnvFunc exposes environment probing for testability.
type LookupEnvFunc func(string) (string, bool)

// Prober bundles the probes behind one environment lookup.
type Prober struct {
	Lookup LookupEnvFunc
	GOOS   string
}

// NewProber returns a prober for the running platform. A nil lookup reads
// the process environment.
func NewProber(lookup LookupEnvFunc) Prober {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return Prober{Lookup: lookup, GOOS: runtime.GOOS}
}

// ScreenRecording reports whether full-display capture may proceed.
func (p Prober) ScreenRecording() ProbeResult {
	if value, ok := p.Lookup(EnvScreenRecording); ok {
		return interpretPermissionFlag("screen recording", value)
	}
	switch p.GOOS {
	case "darwin":
		return ProbeResult{Status: StatusPromptRequired, Message: "awaiting macOS screen recording authorisation"}
	case "linux", "windows":
		return ProbeResult{Status: StatusNotRequired, Message: "no screen recording prompt on " + p.GOOS}
	default:
		return ProbeResult{Status: StatusUnavailable, Message: "screen recording unsupported on this platform"}
	}
}

// Accessibility reports whether global input hooks and window titles are readable.
func (p Prober) Accessibility() ProbeResult {
	if value, ok := p.Lookup(EnvAccessibility); ok {
		return interpretPermissionFlag("accessibility", value)
	}
	switch p.GOOS {
	case "darwin":
		return ProbeResult{Status: StatusPromptRequired, Message: "accessibility trust required"}
	case "windows":
		return ProbeResult{Status: StatusNotRequired, Message: "foreground window readable without prompt"}
	default:
		return ProbeResult{Status: StatusUnavailable, Message: "global input hooks unavailable"}
	}
}

// Automation reports whether scripting other applications is allowed, which
// the spreadsheet probe needs.
func (p Prober) Automation() ProbeResult {
	if value, ok := p.Lookup(EnvAutomation); ok {
		return interpretPermissionFlag("automation", value)
	}
	switch p.GOOS {
	case "darwin":
		return ProbeResult{Status: StatusPromptRequired, Message: "Apple Events automation will prompt at runtime"}
	case "windows":
		return ProbeResult{Status: StatusNotRequired, Message: "COM automation available"}
	default:
		return ProbeResult{Status: StatusUnavailable, Message: "application automation unsupported"}
	}
}

func interpretPermissionFlag(name, value string) ProbeResult {
	normalised := strings.ToLower(strings.TrimSpace(value))
	switch normalised {
	case "granted", "allow", "allowed", "yes", "true":
		return ProbeResult{Status: StatusGranted, Message: name + " permission pre-authorised via env override"}
	case "denied", "no", "false", "blocked":
		return ProbeResult{Status: StatusDenied, Message: name + " permission denied via env override", Guidance: "use 'tccutil reset' or update RECORDER_* env to re-test"}
	case "prompt", "ask":
		return ProbeResult{Status: StatusPromptRequired, Message: name + " permission will prompt at runtime"}
	case "unavailable", "unsupported":
		return ProbeResult{Status: StatusUnavailable, Message: name + " permission unavailable on this platform"}
	default:
		return ProbeResult{Status: StatusUnknown, Message: name + " permission state unknown"}
	}
}

// Usable reports whether a capability gated by this result may be attempted.
// Prompts and unknown states are attempted; the backend itself fails if the
// user declines.
func (p ProbeResult) Usable() bool {
	return p.Status != StatusDenied && p.Status != StatusUnavailable
}

// StatusString returns the string representation for manifest integration.
func (p ProbeResult) StatusString() string {
	if p.Status == "" {
		return string(StatusUnknown)
	}
	return string(p.Status)
}
