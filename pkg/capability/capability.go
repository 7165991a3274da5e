// Package capability resolves, once per session, which OS and application
// dependencies the capture sources may use.
package capability

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/offlinefirst/activity-recorder/pkg/permissions"
)

// ErrUnavailable is matched by every UnavailableError.
var ErrUnavailable = errors.New("capability unavailable")

// Name identifies a capability.
type Name string

const (
	Screen          Name = "screen"
	Input           Name = "input"
	ActiveWindow    Name = "active_window"
	Filesystem      Name = "filesystem"
	Spreadsheet     Name = "spreadsheet"
	BrowserDevTools Name = "browser_devtools"
	Encryption      Name = "encryption"
)

// Names lists every capability in report order.
func Names() []Name {
	return []Name{Screen, Input, ActiveWindow, Filesystem, Spreadsheet, BrowserDevTools, Encryption}
}

// Entry describes one resolved capability.
type Entry struct {
	Name       Name   `json:"name"`
	Available  bool   `json:"available"`
	Provider   string `json:"provider"`
	Permission string `json:"permission"`
	Message    string `json:"message,omitempty"`
	Guidance   string `json:"guidance,omitempty"`
}

// UnavailableError explains why a capability cannot be used.
type UnavailableError struct {
	Capability Name
	Reason     string
}

func (e *UnavailableError) Error() string {
	reason := strings.TrimSpace(e.Reason)
	if reason == "" {
		reason = "not supported on this host"
	}
	return fmt.Sprintf("%s unavailable: %s", e.Capability, reason)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Registry is immutable after construction and safe for concurrent reads.
type Registry struct {
	entries map[Name]Entry
}

// NewRegistry builds a registry from explicit entries. Capabilities that are
// not listed are reported unavailable.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{entries: make(map[Name]Entry, len(entries))}
	for _, e := range entries {
		r.entries[e.Name] = e
	}
	return r
}

// Get returns the entry for name.
func (r *Registry) Get(name Name) Entry {
	if e, ok := r.entries[name]; ok {
		return e
	}
	return Entry{Name: name, Provider: "none", Permission: string(permissions.StatusUnknown), Message: "not probed"}
}

// Available reports whether name may be used.
func (r *Registry) Available(name Name) bool {
	return r.Get(name).Available
}

// Require returns an UnavailableError when name cannot be used.
func (r *Registry) Require(name Name) error {
	e := r.Get(name)
	if e.Available {
		return nil
	}
	return &UnavailableError{Capability: name, Reason: e.Message}
}

// Entries returns every entry in report order, followed by any extras.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	seen := make(map[Name]bool)
	for _, n := range Names() {
		out = append(out, r.Get(n))
		seen[n] = true
	}
	var extra []Entry
	for n, e := range r.entries {
		if !seen[n] {
			extra = append(extra, e)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Name < extra[j].Name })
	return append(out, extra...)
}

// Detector gathers the facts needed to resolve the registry. Provider
// names come from the backends chosen for this platform; "unavailable"
// marks a missing backend.
type Detector struct {
	Prober              permissions.Prober
	ScreenProvider      string
	InputProvider       string
	WindowProvider      string
	SpreadsheetProvider string
	// DevTools is nil when no debug endpoint is configured.
	DevTools interface{ Ping() error }
	// KeyErr is the result of loading the at-rest key.
	KeyErr error
	// WatchProbe opens and closes a watcher. Defaults to fsnotify.
	WatchProbe func() error
}

const unavailableProvider = "unavailable"

// Detect resolves every capability.
func (d Detector) Detect() *Registry {
	screenPerm := d.Prober.ScreenRecording()
	access := d.Prober.Accessibility()
	automation := d.Prober.Automation()

	entries := []Entry{
		backed(Screen, d.ScreenProvider, screenPerm, "screen recording permission missing"),
		backed(Input, d.InputProvider, access, "accessibility permission missing"),
		backed(ActiveWindow, d.WindowProvider, access, "foreground window not readable"),
		backed(Spreadsheet, d.SpreadsheetProvider, automation, "automation permission missing"),
		d.filesystem(),
		d.devtools(),
		d.encryption(),
	}
	return NewRegistry(entries...)
}

func backed(name Name, provider string, perm permissions.ProbeResult, denied string) Entry {
	e := Entry{
		Name:       name,
		Provider:   provider,
		Permission: perm.StatusString(),
		Message:    perm.Message,
		Guidance:   perm.Guidance,
	}
	switch {
	case provider == "" || provider == unavailableProvider:
		e.Provider = unavailableProvider
		e.Message = "no backend on this platform"
	case perm.Status == permissions.StatusDenied:
		e.Message = denied
	default:
		e.Available = true
	}
	return e
}

func (d Detector) filesystem() Entry {
	probe := d.WatchProbe
	if probe == nil {
		probe = func() error {
			w, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			return w.Close()
		}
	}
	e := Entry{Name: Filesystem, Provider: "fsnotify", Permission: string(permissions.StatusNotRequired)}
	if err := probe(); err != nil {
		e.Message = err.Error()
		return e
	}
	e.Available = true
	return e
}

func (d Detector) devtools() Entry {
	e := Entry{Name: BrowserDevTools, Provider: "window_title", Permission: string(permissions.StatusNotRequired)}
	if d.DevTools == nil {
		e.Message = "browser_debug_url not set; tab state read from window titles"
		return e
	}
	e.Provider = "devtools"
	if err := d.DevTools.Ping(); err != nil {
		e.Message = err.Error()
		e.Guidance = "start the browser with --remote-debugging-port"
		return e
	}
	e.Available = true
	return e
}

func (d Detector) encryption() Entry {
	e := Entry{Name: Encryption, Provider: "xchacha20poly1305", Permission: string(permissions.StatusNotRequired)}
	if d.KeyErr != nil {
		e.Message = d.KeyErr.Error()
		e.Guidance = "events are stored without encrypted_blob until the key file is readable"
		return e
	}
	e.Available = true
	return e
}
