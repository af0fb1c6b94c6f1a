// Package features aggregates per-merchant transaction statistics used as
// model input. Only settled transactions count: operation "Transaction"
// with status "Succès". Amounts are normalized to magnitudes, so a debit
// of -200 contributes 200 to sums and averages.
package features

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoMerchants is returned when a feature query matches none of the
	// requested merchants.
	ErrNoMerchants = errors.New("no transactions found for the requested merchants")
)

// Transaction operation and status literals, matching the payment ledger.
const (
	OperationTransaction = "Transaction"
	StatusSettled        = "Succès"
)

// FeatureWidth is the number of numeric features fed to the model,
// in the order produced by Vector.
const FeatureWidth = 7

// Row holds the aggregated features for one merchant, plus the
// display-only fields the API response needs.
type Row struct {
	MerchantID int64
	LegalName  string

	TxCount      int64
	TxSum        float64
	TxAvg        float64
	RecencyDays  float64 // calendar days since most recent settled transaction
	ActiveDays   int64   // distinct calendar days with at least one transaction
	MaxAmount    float64
	AmountStdDev float64 // sample stddev of amounts; 0 when fewer than 2

	LastTxAt     *time.Time // nil when unknown
	LastTxAmount *float64   // magnitude of the most recent transaction
	LastTxCredit bool       // direction of the most recent transaction

	TxCountLast30 int64 // settled transactions in the trailing 30 days
}

// Vector returns the numeric features in model input order.
func (r *Row) Vector() []float64 {
	return []float64{
		float64(r.TxCount),
		r.TxSum,
		r.TxAvg,
		r.RecencyDays,
		float64(r.ActiveDays),
		r.MaxAmount,
		r.AmountStdDev,
	}
}

// Source computes feature rows for a set of merchants. Merchants with no
// settled transactions are silently dropped from the result; rows come
// back ordered by merchant ID.
type Source interface {
	Aggregate(ctx context.Context, merchantIDs []int64) ([]*Row, error)
}
