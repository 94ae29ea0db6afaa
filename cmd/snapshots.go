package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/medsearch/internal/model"
	"github.com/sells-group/medsearch/internal/search"
	"github.com/sells-group/medsearch/internal/selection"
	"github.com/sells-group/medsearch/internal/store"
	"github.com/sells-group/medsearch/internal/view"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect recorded search responses",
	Long:  "Commands for listing, showing and pruning the raw responses captured with search --record.",
}

// -- snapshots list --

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded snapshots, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("snapshots"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")

		snaps, err := st.ListSnapshots(ctx, store.SnapshotFilter{Query: query, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "snapshots list")
		}

		if len(snaps) == 0 {
			fmt.Fprintln(os.Stderr, "No snapshots found.")
			return nil
		}

		formatSnapshotList(os.Stdout, snaps)
		return nil
	},
}

// -- snapshots show --

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Replay one snapshot and print its default selections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("snapshots"); err != nil {
			return err
		}

		formatName, _ := cmd.Flags().GetString("format")
		format, err := view.ParseFormat(formatName)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return showSnapshot(ctx, os.Stdout, st, args[0], format, newPriceFormatter(cfg.Display))
	},
}

// showSnapshot loads the snapshot with id, derives the default selections
// from its body and writes the resulting cards.
func showSnapshot(ctx context.Context, out io.Writer, st store.Store, id string, format view.Format, prices *view.PriceFormatter) error {
	snap, err := st.GetSnapshot(ctx, id)
	if err != nil {
		return eris.Wrap(err, "snapshots show")
	}
	results, err := snap.Results()
	if err != nil {
		return eris.Wrapf(err, "snapshots show: parse %s", id)
	}

	state := selection.NewState()
	state.Replace(results)
	return view.Write(out, format, []view.QueryResult{{
		Query:   snap.Query,
		Outcome: string(search.OutcomeApplied),
		Cards:   view.Build(state.Snapshot(), prices),
	}})
}

// -- snapshots prune --

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots older than a given age",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("snapshots"); err != nil {
			return err
		}

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return eris.New("--older-than must be positive")
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.DeleteSnapshotsBefore(ctx, time.Now().Add(-olderThan))
		if err != nil {
			return eris.Wrap(err, "snapshots prune")
		}
		fmt.Fprintf(os.Stdout, "Deleted %d snapshot(s).\n", n)
		return nil
	},
}

func formatSnapshotList(out io.Writer, snaps []model.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUERY\tRESULTS\tCAPTURED")
	_, _ = fmt.Fprintln(w, "--\t-----\t-------\t--------")

	for _, s := range snaps {
		query := s.Query
		if len(query) > 30 {
			query = query[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			truncateID(s.ID),
			query,
			s.ResultCount,
			s.CapturedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	snapshotsListCmd.Flags().String("query", "", "only list snapshots for this query")
	snapshotsListCmd.Flags().Int("limit", 20, "maximum number of snapshots to list")
	snapshotsShowCmd.Flags().String("format", "text", "output format: text, json or yaml")
	snapshotsPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete snapshots older than this")

	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsShowCmd, snapshotsPruneCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
