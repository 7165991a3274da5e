package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/activity-recorder/pkg/event"
	"github.com/offlinefirst/activity-recorder/pkg/session"
	"github.com/offlinefirst/activity-recorder/pkg/store"
)

func (rc *RootCommand) newStatsCommand() *cobra.Command {
	var sessions int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print row counts of an existing store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.runStats(cmd.Context(), sessions)
		},
	}
	cmd.Flags().IntVar(&sessions, "sessions", 5, "Number of recent sessions to list")
	return cmd
}

func (rc *RootCommand) runStats(ctx context.Context, recent int) error {
	app, err := rc.ensureAppContext(false)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	installDir, err := app.Config.ResolveInstallDir()
	if err != nil {
		return err
	}
	dataDir := store.DataDir(installDir)
	dbPath := filepath.Join(dataDir, store.DatabaseFileName)
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no store at %s: %w", dbPath, err)
	}

	st, err := store.Open(ctx, dbPath, app.Logger.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	version, err := st.Version(ctx)
	if err != nil {
		return err
	}
	counts, err := st.Counts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(rc.stdout, "Store: %s (schema v%d)\n", dbPath, version)
	var total int64
	for _, t := range sortedTables(counts) {
		fmt.Fprintf(rc.stdout, "  %-22s %d\n", t, counts[t])
		total += counts[t]
	}
	fmt.Fprintf(rc.stdout, "  %-22s %d\n", "total", total)

	ids, err := session.List(dataDir)
	if err != nil {
		return err
	}
	if len(ids) == 0 || recent <= 0 {
		return nil
	}
	if len(ids) > recent {
		ids = ids[len(ids)-recent:]
	}
	fmt.Fprintln(rc.stdout, "Recent sessions:")
	for _, id := range ids {
		m, err := session.Load(session.Path(dataDir, id))
		if err != nil {
			fmt.Fprintf(rc.stdout, "  %s unreadable (%v)\n", id, err)
			continue
		}
		fmt.Fprintf(rc.stdout, "  %s %s", m.SessionID, m.Status.State)
		if m.Status.Termination != "" {
			fmt.Fprintf(rc.stdout, " (%s)", m.Status.Termination)
		}
		fmt.Fprintln(rc.stdout)
	}
	return nil
}

func sortedTables(counts map[event.Table]int64) []event.Table {
	tables := make([]event.Table, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i] < tables[j] })
	return tables
}
