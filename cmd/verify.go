package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civic-archive/fppc-cli/internal/fidelity"
	"github.com/civic-archive/fppc-cli/internal/model"
	"github.com/civic-archive/fppc-cli/internal/store"
)

// verifyPageSize bounds how many records one verify iteration loads.
const verifyPageSize = 500

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-run fidelity verification over stored records",
	Long:  "Recomputes every processed document's fidelity assessment from its stored attempts. Idempotent: rerunning on unchanged records changes nothing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "verify")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		verifier := fidelity.NewVerifier(cfg.Fidelity)

		tiers := map[model.RiskTier]int{}
		checked, updated := 0, 0

		for offset := 0; ; offset += verifyPageSize {
			docs, err := st.ListDocuments(ctx, store.DocumentFilter{
				Status: model.StatusProcessed,
				Limit:  verifyPageSize,
				Offset: offset,
			})
			if err != nil {
				return eris.Wrap(err, "list processed documents")
			}

			for i := range docs {
				doc := &docs[i]
				if doc.Extraction == nil {
					continue
				}
				checked++

				assessment := reassess(verifier, doc)
				tiers[assessment.RiskTier]++

				if doc.Fidelity != nil && *doc.Fidelity == assessment {
					continue
				}
				doc.Fidelity = &assessment
				if err := st.UpsertDocument(ctx, doc); err != nil {
					return eris.Wrapf(err, "persist fidelity for %s", doc.ID)
				}
				updated++
			}

			if len(docs) < verifyPageSize {
				break
			}
		}

		zap.L().Info("verification pass complete",
			zap.Int("checked", checked),
			zap.Int("updated", updated),
			zap.Int("verified", tiers[model.TierVerified]),
			zap.Int("low", tiers[model.TierLow]),
			zap.Int("medium", tiers[model.TierMedium]),
			zap.Int("high", tiers[model.TierHigh]),
			zap.Int("critical", tiers[model.TierCritical]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// reassess recomputes a document's fidelity from its stored record and
// attempt trail. Deterministic engines are trusted by construction;
// vision-derived text is re-scored against the latest baseline attempt.
func reassess(verifier *fidelity.Verifier, doc *model.Document) model.FidelityAssessment {
	switch doc.Extraction.Method {
	case model.MethodVision, model.MethodTextLayerVision:
	default:
		return fidelity.NativeTrusted()
	}

	baseline := latestAttemptText(doc, model.MethodBaselineOCR)
	assessment := verifier.Verify(doc.Extraction.Text, baseline)
	if doc.Fidelity != nil && doc.Fidelity.Method == model.FidelityReplaced {
		assessment.Method = model.FidelityReplaced
	}
	return assessment
}

func latestAttemptText(doc *model.Document, method model.Method) string {
	for i := len(doc.Attempts) - 1; i >= 0; i-- {
		if doc.Attempts[i].Method == method {
			return doc.Attempts[i].Text
		}
	}
	return ""
}
