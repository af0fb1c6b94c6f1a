// Package inactivity scores merchants for inactivity risk. Features are
// aggregated from the transaction ledger and fed to the pre-trained
// classifier; merchants labeled inactive come back with their risk score
// and a rendered last-transaction summary.
package inactivity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vistapay/merchant-radar/internal/features"
	"github.com/vistapay/merchant-radar/internal/logging"
	"github.com/vistapay/merchant-radar/internal/metrics"
	"github.com/vistapay/merchant-radar/internal/model"
	"github.com/vistapay/merchant-radar/internal/traces"
)

// ErrNoMerchantsSelected is returned when the caller supplies an empty
// merchant set.
var ErrNoMerchantsSelected = errors.New("aucun marchand sélectionné")

// InactiveMerchant is one scored merchant in the prediction response.
type InactiveMerchant struct {
	MerchantID      int64   `json:"id_marchand"`
	LegalName       string  `json:"raison_sociale"`
	Risk            float64 `json:"risque"`
	LastTransaction string  `json:"derniere_transaction"`
	TxCountLast30   int64   `json:"nombre_transactions_30_jours"`
}

// Service runs the scoring pipeline: aggregate features, classify,
// keep the inactive ones.
type Service struct {
	source features.Source
	clf    model.Classifier

	// proba is non-nil when the wired model can score probabilities.
	// Resolved once at construction so the per-request path doesn't
	// re-assert the interface.
	proba model.ProbabilityClassifier
}

// NewService wires a feature source and a classifier.
func NewService(source features.Source, clf model.Classifier) *Service {
	svc := &Service{source: source, clf: clf}
	if p, ok := clf.(model.ProbabilityClassifier); ok {
		svc.proba = p
	}
	return svc
}

// Predict scores the given merchants and returns those the model labels
// inactive, in feature-row order. Merchants without settled transactions
// are absent from the result; an empty result is not an error. Any model
// error aborts the whole batch.
func (s *Service) Predict(ctx context.Context, merchantIDs []int64) ([]InactiveMerchant, error) {
	if len(merchantIDs) == 0 {
		return nil, ErrNoMerchantsSelected
	}

	ctx, span := traces.StartSpan(ctx, "inactivity.Predict",
		traces.MerchantCount(len(merchantIDs)), traces.ModelKind(s.clf.Kind()))
	defer span.End()

	start := time.Now()

	rows, err := s.source.Aggregate(ctx, merchantIDs)
	if errors.Is(err, features.ErrNoMerchants) {
		// None of the requested merchants have settled transactions.
		metrics.PredictionBatchesTotal.WithLabelValues("empty").Inc()
		return []InactiveMerchant{}, nil
	}
	if err != nil {
		metrics.PredictionBatchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("aggregate features: %w", err)
	}

	out := make([]InactiveMerchant, 0, len(rows))
	inactive := 0
	for _, row := range rows {
		vec := row.Vector()

		label, err := s.clf.Predict(vec)
		if err != nil {
			metrics.PredictionBatchesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("classify merchant %d: %w", row.MerchantID, err)
		}

		risk := 0.0
		if s.proba != nil {
			risk, err = s.proba.PredictProba(vec)
			if err != nil {
				metrics.PredictionBatchesTotal.WithLabelValues("error").Inc()
				return nil, fmt.Errorf("score merchant %d: %w", row.MerchantID, err)
			}
		}

		if label == model.LabelInactive {
			metrics.MerchantsScoredTotal.WithLabelValues("inactive").Inc()
			inactive++
			out = append(out, InactiveMerchant{
				MerchantID:      row.MerchantID,
				LegalName:       row.LegalName,
				Risk:            round4(risk),
				LastTransaction: FormatLastTransaction(row),
				TxCountLast30:   row.TxCountLast30,
			})
		} else {
			metrics.MerchantsScoredTotal.WithLabelValues("active").Inc()
		}
	}

	span.SetAttributes(traces.InactiveCount(inactive))
	metrics.PredictionBatchesTotal.WithLabelValues("success").Inc()
	metrics.PredictionBatchDuration.Observe(time.Since(start).Seconds())

	logging.L(ctx).Info("prediction batch complete",
		"requested", len(merchantIDs),
		"scored", len(rows),
		"inactive", inactive,
		"model", s.clf.Kind(),
	)

	return out, nil
}

// round4 rounds to 4 decimal places, matching the API contract for the
// risk field.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
