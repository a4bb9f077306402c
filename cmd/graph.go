package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civic-archive/fppc-cli/internal/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Rebuild the reverse citation graph",
	Long:  "Rebuilds cited_by lists and the known-gaps ledger from every processed document's prior-decision citations. Safe to rerun after any extraction batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "graph")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		nodes, err := st.GraphNodes(ctx)
		if err != nil {
			return eris.Wrap(err, "load graph nodes")
		}

		result := graph.Build(nodes)

		// Every node gets written, including nodes whose cited_by list
		// emptied since the last build.
		for _, n := range nodes {
			citedBy := result.CitedBy[n.ID]
			if citedBy == nil {
				citedBy = []string{}
			}
			if err := st.UpdateCitedBy(ctx, n.ID, citedBy); err != nil {
				return eris.Wrapf(err, "update cited_by for %s", n.ID)
			}
		}

		if err := st.ReplaceKnownGaps(ctx, result.Gaps); err != nil {
			return eris.Wrap(err, "replace known gaps")
		}

		zap.L().Info("citation graph rebuilt",
			zap.Int("documents", result.Stats.Documents),
			zap.Int("total_edges", result.Stats.TotalEdges),
			zap.Int("resolved", result.Stats.Resolved),
			zap.Int("dangling", result.Stats.Dangling),
			zap.Int("unique_gaps", result.Stats.UniqueGaps))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
