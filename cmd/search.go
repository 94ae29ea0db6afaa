package main

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/medsearch/internal/search"
	"github.com/sells-group/medsearch/internal/selection"
	"github.com/sells-group/medsearch/internal/view"
)

// choiceFlags are the user picks applied after the defaults are derived.
type choiceFlags struct {
	salt      string
	form      string
	strength  string
	packaging string
}

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search medicines and show the default or chosen variant per salt",
	Long: "Runs each query against the search backend (or the recorded snapshots with --offline), " +
		"derives the first form/strength/packaging per salt, applies any --form/--strength/--packaging " +
		"choices, and prints the lowest price of the selected packaging.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("search"); err != nil {
			return err
		}

		formatName, _ := cmd.Flags().GetString("format")
		format, err := view.ParseFormat(formatName)
		if err != nil {
			return err
		}
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		record, _ := cmd.Flags().GetBool("record")
		offline, _ := cmd.Flags().GetBool("offline")

		var choices choiceFlags
		choices.salt, _ = cmd.Flags().GetString("salt")
		choices.form, _ = cmd.Flags().GetString("form")
		choices.strength, _ = cmd.Flags().GetString("strength")
		choices.packaging, _ = cmd.Flags().GetString("packaging")

		var fetcher search.Fetcher = newSearchClient(cfg.Search)
		var opts []search.SessionOption
		if record || offline {
			st, err := initStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			if st == nil {
				return eris.New("--record and --offline need a store (store.driver is none)")
			}
			defer st.Close() //nolint:errcheck

			if offline {
				fetcher = search.NewReplayFetcher(st)
			} else {
				opts = append(opts, search.WithRecorder(st))
			}
		}

		results, err := runQueries(ctx, fetcher, normalizeQueries(args), choices, cfg.Search.MaxConcurrent, newPriceFormatter(cfg.Display), opts...)
		if err != nil {
			return err
		}

		if xlsxPath != "" {
			if err := view.WriteXLSX(xlsxPath, results); err != nil {
				return err
			}
			zap.L().Info("wrote spreadsheet", zap.String("path", xlsxPath))
		}
		return view.Write(os.Stdout, format, results)
	},
}

// normalizeQueries trims and NFC-normalizes each query.
func normalizeQueries(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, norm.NFC.String(strings.TrimSpace(a)))
	}
	return out
}

// runQueries runs each query in its own session, at most limit at a time,
// and returns the rendered results in argument order.
func runQueries(ctx context.Context, fetcher search.Fetcher, queries []string, choices choiceFlags, limit int, prices *view.PriceFormatter, opts ...search.SessionOption) ([]view.QueryResult, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]view.QueryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var failed atomic.Int64
	for i, q := range queries {
		g.Go(func() error {
			sess := search.NewSession(q, fetcher, opts...)
			outcome := sess.Search(gctx, q)
			if outcome == search.OutcomeFailed {
				failed.Add(1)
			}
			applyChoices(sess.State(), choices)

			results[i] = view.QueryResult{
				Query:   q,
				Outcome: string(outcome),
				Cards:   view.Build(sess.State().Snapshot(), prices),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "search queries")
	}

	zap.L().Debug("queries complete",
		zap.Int("total", len(queries)),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}

// applyChoices applies the picked form, then strength, then packaging to
// every matching salt. Picks that do not exist for a salt leave it as is.
func applyChoices(st *selection.State, c choiceFlags) {
	if c.form == "" && c.strength == "" && c.packaging == "" {
		return
	}
	for _, r := range st.Results() {
		if c.salt != "" && !strings.EqualFold(r.Salt, c.salt) {
			continue
		}
		if c.form != "" {
			st.ChooseForm(r.Salt, c.form)
		}
		if c.strength != "" {
			sel, _ := st.Selection(r.Salt)
			st.ChooseStrength(r.Salt, sel.Form, c.strength)
		}
		if c.packaging != "" {
			sel, _ := st.Selection(r.Salt)
			st.ChoosePackaging(r.Salt, sel.Form, sel.Strength, c.packaging)
		}
	}
}

func init() {
	f := searchCmd.Flags()
	f.String("salt", "", "only apply choices to this salt")
	f.String("form", "", "form to select (e.g. tablet)")
	f.String("strength", "", "strength to select under the current form")
	f.String("packaging", "", "packaging to select under the current strength")
	f.String("format", "text", "output format: text, json or yaml")
	f.String("xlsx", "", "also write the results to this .xlsx file")
	f.Bool("record", false, "record raw responses to the snapshot store")
	f.Bool("offline", false, "answer from the latest recorded snapshot instead of the network")
	searchCmd.MarkFlagsMutuallyExclusive("record", "offline")
	rootCmd.AddCommand(searchCmd)
}
