package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"idlecraft.ai/internal/persistence/indexdb"
	"idlecraft.ai/internal/persistence/snapshot"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	var (
		limit int
		kind  string
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print recent task outcomes and session stats from the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.IndexPath()); err != nil {
				return fmt.Errorf("no index at %s: %w", cfg.IndexPath(), err)
			}
			r, err := indexdb.OpenReader(cfg.IndexPath())
			if err != nil {
				return err
			}
			defer r.Close()
			return inspect(cmd, r, cfg.SnapshotDir(), kind, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "outcomes to print")
	cmd.Flags().StringVar(&kind, "kind", "", "only outcomes of this kind (completed, skipped)")
	return cmd
}

func inspect(cmd *cobra.Command, r *indexdb.Reader, snapDir, kind string, limit int) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if snap, ok, err := r.LatestSnapshot(ctx); err != nil {
		return err
	} else if ok {
		fmt.Fprintf(out, "session %s  tick %d  saved %s  tasks %d\n",
			snap.SessionID, snap.Tick, snap.SavedAt.Format(time.RFC3339), snap.Tasks)
	} else if path := snapshot.Latest(snapDir); path != "" {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "session %s  tick %d  saved %s  (not indexed)\n",
			h.SessionID, h.Tick, h.SavedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "no snapshots")
	}

	rows, err := r.Outcomes(ctx, kind, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tTASK\tACTIVITY\tNODE\tDONE\tKIND\tREASON")
	for _, o := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			o.At.Format(time.RFC3339), o.TaskID, o.Activity, o.Node, o.Done, o.Target, o.Kind, o.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	skips, err := r.SkipReasons(ctx)
	if err != nil {
		return err
	}
	printCounts(out, "skips", skips)
	decisions, err := r.DecisionCounts(ctx)
	if err != nil {
		return err
	}
	printCounts(out, "decisions", decisions)
	return nil
}

func printCounts(out io.Writer, title string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %d\n", k, m[k])
	}
}
