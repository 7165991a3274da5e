package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/internal/buildinfo"
	"github.com/offlinefirst/activity-recorder/pkg/config"
	"github.com/offlinefirst/activity-recorder/pkg/logging"
	"github.com/offlinefirst/activity-recorder/pkg/store"
)

// AppContext exposes lazily initialised configuration and logging facilities.
type AppContext struct {
	Config config.Config
	Logger *zap.Logger
}

// RootCommand wires the recorder subcommands around shared global flags.
type RootCommand struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer
	appCtx *AppContext

	configPath string
	logLevel   string
	logFormat  string
	installDir string
}

// NewRootCommand constructs the CLI dispatcher.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{stdout: os.Stdout, stderr: os.Stderr}
	rc.root = &cobra.Command{
		Use:   "recorder",
		Short: "Local activity recorder",
		Long: `recorder captures screen, input, application and file activity into an
encrypted local SQLite store for offline analysis. Nothing leaves the machine.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rc.root.PersistentFlags()
	flags.StringVar(&rc.configPath, "config", "", "Path to config file (default: ./config.yaml if present)")
	flags.StringVar(&rc.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	flags.StringVar(&rc.logFormat, "log-format", "", "Override log output format (json, console)")
	flags.StringVar(&rc.installDir, "install-dir", "", "Install directory holding data/ (default: install_dir from config or ~/.activity-recorder)")

	rc.root.AddCommand(
		rc.newRunCommand(),
		rc.newDoctorCommand(),
		rc.newStatsCommand(),
		rc.newVersionCommand(),
	)
	return rc
}

// SetOutput redirects command output, mainly for tests.
func (rc *RootCommand) SetOutput(stdout, stderr io.Writer) {
	rc.stdout = stdout
	rc.stderr = stderr
	rc.root.SetOut(stdout)
	rc.root.SetErr(stderr)
}

// Execute evaluates the supplied arguments and dispatches to a subcommand.
func (rc *RootCommand) Execute(args []string) error {
	rc.root.SetArgs(args)
	if err := rc.root.Execute(); err != nil {
		fmt.Fprintf(rc.stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// ensureAppContext loads configuration and builds the logger once. With
// fileLog set and no logging.file configured, entries are also written to
// the data directory.
func (rc *RootCommand) ensureAppContext(fileLog bool) (*AppContext, error) {
	if rc.appCtx != nil {
		return rc.appCtx, nil
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, err
	}

	if rc.logLevel != "" {
		lvl, err := config.NormalizeLogLevel(rc.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = lvl
	}
	if rc.logFormat != "" {
		format, err := config.NormalizeFormat(rc.logFormat)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Format = format
	}
	if rc.installDir != "" {
		cfg.InstallDir = filepath.Clean(rc.installDir)
	}

	logFile := cfg.Logging.File
	if logFile == "" && fileLog {
		installDir, err := cfg.ResolveInstallDir()
		if err != nil {
			return nil, err
		}
		logFile = filepath.Join(store.DataDir(installDir), logging.FileName)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: rc.stderr,
		File:   logFile,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded", zap.String("source", cfg.Source), zap.String("install_dir", cfg.InstallDir), zap.String("log_file", logFile))

	rc.appCtx = &AppContext{Config: cfg, Logger: logger}
	return rc.appCtx, nil
}

func versionString() string {
	v := buildinfo.Version()
	if rev := buildinfo.Revision(); rev != "" {
		v += " " + rev
	}
	return fmt.Sprintf("%s (%s/%s)", v, runtimeVersion(), runtimeGOOS())
}

// runtimeVersion is extracted for testability.
var runtimeVersion = func() string { return runtime.Version() }

// runtimeGOOS is extracted for testability.
var runtimeGOOS = func() string { return runtime.GOOS }
