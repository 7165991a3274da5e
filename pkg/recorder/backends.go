package recorder

import (
	"os"

	"github.com/offlinefirst/activity-recorder/pkg/activewindow"
	"github.com/offlinefirst/activity-recorder/pkg/appprobe"
	"github.com/offlinefirst/activity-recorder/pkg/input"
	"github.com/offlinefirst/activity-recorder/pkg/permissions"
	"github.com/offlinefirst/activity-recorder/pkg/screen"
)

// Backends are the OS-facing collaborators of a monitor. Tests substitute
// fakes; production uses DefaultBackends.
type Backends struct {
	Window         activewindow.Resolver
	WindowProvider string

	Hook          input.Hook
	InputProvider string

	Grabber        screen.Grabber
	ScreenProvider string

	Spreadsheet         appprobe.Spreadsheet
	SpreadsheetProvider string

	Prober permissions.Prober

	// WatchRoots overrides the default Desktop, Documents and Downloads
	// roots of the filesystem source.
	WatchRoots []string
	// WatchProbe overrides the filesystem capability probe.
	WatchProbe func() error
}

// DefaultBackends returns the backends for the running platform.
func DefaultBackends() Backends {
	window, windowProvider := activewindow.New()
	hook, inputProvider := input.Default()
	grabber, screenProvider := screen.Default()
	sheet, sheetProvider := appprobe.DefaultSpreadsheet()
	return Backends{
		Window:              window,
		WindowProvider:      windowProvider,
		Hook:                hook,
		InputProvider:       inputProvider,
		Grabber:             grabber,
		ScreenProvider:      screenProvider,
		Spreadsheet:         sheet,
		SpreadsheetProvider: sheetProvider,
		Prober:              permissions.NewProber(os.LookupEnv),
	}
}
