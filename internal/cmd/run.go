package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/internal/buildinfo"
	"github.com/offlinefirst/activity-recorder/pkg/recorder"
)

// DefaultDrainTimeout bounds how long run waits for queued events on shutdown.
const DefaultDrainTimeout = 30 * time.Second

type runOptions struct {
	consent      bool
	duration     time.Duration
	drainTimeout time.Duration
}

// defaultBackends is swapped in tests.
var defaultBackends = recorder.DefaultBackends

func (rc *RootCommand) newRunCommand() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Record activity until interrupted",
		Long: `Start a recording session. Capture only begins with --consent; the
session runs until SIGINT or SIGTERM (or --duration elapses), then drains
every queued event into the store before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.runRecorder(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.consent, "consent", false, "Confirm that the user agrees to be recorded")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().DurationVar(&opts.drainTimeout, "drain-timeout", DefaultDrainTimeout, "Maximum time to persist queued events on shutdown")
	return cmd
}

func (rc *RootCommand) runRecorder(parent context.Context, opts runOptions) error {
	if !opts.consent {
		return fmt.Errorf("%w: pass --consent to start recording", recorder.ErrConsentRequired)
	}
	app, err := rc.ensureAppContext(true)
	if err != nil {
		return err
	}
	defer func() { _ = app.Logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stopSignals := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	backends := defaultBackends()
	mon := recorder.New(recorder.Options{
		Config:     app.Config,
		Backends:   &backends,
		Logger:     app.Logger,
		AppVersion: buildinfo.Version(),
	})
	if err := mon.Start(ctx, opts.consent); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}
	fmt.Fprintf(rc.stdout, "Recording session %s (interrupt to stop)\n", mon.SessionID())
	printCapabilities(rc.stdout, mon.Capabilities().Entries())

	<-ctx.Done()
	app.Logger.Info("shutdown requested", zap.Error(context.Cause(ctx)))

	drainTimeout := opts.drainTimeout
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	stopErr := mon.Stop(drainCtx)
	printSummary(rc.stdout, mon.Metrics())
	if errors.Is(stopErr, context.DeadlineExceeded) {
		return fmt.Errorf("drain did not finish within %s; remaining events were abandoned", drainTimeout)
	}
	return stopErr
}

func printSummary(w io.Writer, m recorder.Metrics) {
	fmt.Fprintf(w, "Session %s %s\n", m.SessionID, m.State)

	fmt.Fprintln(w, "Persisted rows:")
	if len(m.Persisted) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, t := range sortedTables(m.Persisted) {
		fmt.Fprintf(w, "  %-22s %d\n", t, m.Persisted[t])
	}

	fmt.Fprintln(w, "Sources:")
	for _, s := range m.Sources {
		fmt.Fprintf(w, "  - %s: %s", s.Name, s.State)
		if s.Message != "" {
			fmt.Fprintf(w, " (%s)", s.Message)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Dropped pointer batches: %d\n", m.DroppedPointerBatches)
	fmt.Fprintf(w, "Producer faults: %d\n", m.ProducerFaults)
	fmt.Fprintf(w, "Write failures: %d (dead-lettered: %d)\n", m.WriteFailures, m.DeadLettered)
	if m.EncryptionFallbacks > 0 {
		fmt.Fprintf(w, "Events stored without encryption: %d\n", m.EncryptionFallbacks)
	}
}
