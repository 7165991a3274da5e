package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/activity-recorder/pkg/browser"
	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/codec"
	"github.com/offlinefirst/activity-recorder/pkg/store"
)

func (rc *RootCommand) newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report which capture capabilities this host provides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.runDoctor()
		},
	}
}

func (rc *RootCommand) runDoctor() error {
	app, err := rc.ensureAppContext(false)
	if err != nil {
		return err
	}
	installDir, err := app.Config.ResolveInstallDir()
	if err != nil {
		return err
	}
	dataDir := store.DataDir(installDir)
	b := defaultBackends()

	d := capability.Detector{
		Prober:              b.Prober,
		ScreenProvider:      b.ScreenProvider,
		InputProvider:       b.InputProvider,
		WindowProvider:      b.WindowProvider,
		SpreadsheetProvider: b.SpreadsheetProvider,
		KeyErr:              codec.CheckKey(filepath.Join(dataDir, codec.KeyFileName)),
		WatchProbe:          b.WatchProbe,
	}
	if url := app.Config.BrowserDebugURL; url != "" {
		devtools := browser.NewDevTools(url)
		defer devtools.Close()
		d.DevTools = devtools
	}

	fmt.Fprintf(rc.stdout, "Config: %s\n", app.Config.Source)
	fmt.Fprintf(rc.stdout, "Data directory: %s", dataDir)
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		fmt.Fprint(rc.stdout, " (not created yet)")
	}
	fmt.Fprintln(rc.stdout)
	printCapabilities(rc.stdout, d.Detect().Entries())
	return nil
}

func printCapabilities(w io.Writer, entries []capability.Entry) {
	fmt.Fprintln(w, "Capabilities:")
	for _, e := range entries {
		state := "available"
		if !e.Available {
			state = "unavailable"
		}
		fmt.Fprintf(w, "  - %-17s %-11s provider=%s", e.Name, state, e.Provider)
		if e.Permission != "" {
			fmt.Fprintf(w, " permission=%s", e.Permission)
		}
		if e.Message != "" {
			fmt.Fprintf(w, " (%s)", e.Message)
		}
		fmt.Fprintln(w)
		if e.Guidance != "" {
			fmt.Fprintf(w, "      hint: %s\n", e.Guidance)
		}
	}
}
