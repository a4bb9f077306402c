package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civic-archive/fppc-cli/internal/graph"
	"github.com/civic-archive/fppc-cli/internal/store"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus-level extraction statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "stats")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := st.Summarize(ctx)
		if err != nil {
			return eris.Wrap(err, "summarize corpus")
		}
		gaps, err := st.ListKnownGaps(ctx)
		if err != nil {
			return eris.Wrap(err, "list known gaps")
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*store.Summary
				TopGaps []graph.Gap `json:"top_gaps"`
			}{summary, topGaps(gaps, 10)})
		}

		formatSummary(os.Stdout, summary, gaps)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(statsCmd)
}

func topGaps(gaps []graph.Gap, n int) []graph.Gap {
	if len(gaps) > n {
		gaps = gaps[:n]
	}
	return gaps
}

// formatSummary writes the corpus tallies as aligned text.
func formatSummary(out io.Writer, s *store.Summary, gaps []graph.Gap) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Documents:\t%d\n", s.Documents)
	_, _ = fmt.Fprintf(w, "Avg quality:\t%.3f\n", s.AvgQuality)
	_, _ = fmt.Fprintf(w, "Total cost:\t$%.2f\n", s.TotalCostUSD)

	writeCounts(w, "By status", s.ByStatus)
	writeCounts(w, "By method", s.ByMethod)
	writeCounts(w, "By risk tier", s.ByRiskTier)
	writeCounts(w, "By topic", s.ByTopic)

	_, _ = fmt.Fprintf(w, "Known gaps:\t%d\n", s.KnownGaps)
	for _, g := range topGaps(gaps, 10) {
		_, _ = fmt.Fprintf(w, "  %s\t%d citations\n", g.ID, g.CitedByCount)
	}
	_ = w.Flush()
}

func writeCounts(w io.Writer, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "%s:\t\n", label)

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", k, counts[k])
	}
}
