package features

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Compile-time check that SQLSource implements Source.
var _ Source = (*SQLSource)(nil)

// SQLSource computes feature rows with a single aggregate query against
// the transactions table. All filtering and statistics run in PostgreSQL;
// Go only scans the result.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource creates a PostgreSQL-backed feature source.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// aggregateQuery normalizes settled transactions to signed-magnitude rows,
// then aggregates per merchant. The latest CTE picks the most recent
// transaction per merchant for the display fields.
const aggregateQuery = `
WITH settled AS (
	SELECT
		merchant_id,
		COALESCE(credit_amount, ABS(debit_amount)) AS amount,
		(credit_amount IS NOT NULL)                AS is_credit,
		executed_at
	FROM transactions
	WHERE operation = 'Transaction'
	  AND status = 'Succès'
	  AND merchant_id = ANY($1)
),
latest AS (
	SELECT DISTINCT ON (merchant_id)
		merchant_id, amount, is_credit, executed_at
	FROM settled
	ORDER BY merchant_id, executed_at DESC
)
SELECT
	s.merchant_id,
	COALESCE(i.raison_sociale, '')                         AS raison_sociale,
	COUNT(*)                                               AS tx_count,
	SUM(s.amount)                                          AS tx_sum,
	AVG(s.amount)                                          AS tx_avg,
	CURRENT_DATE - MAX(s.executed_at)::date                AS recency_days,
	COUNT(DISTINCT s.executed_at::date)                    AS active_days,
	MAX(s.amount)                                          AS max_amount,
	COALESCE(STDDEV_SAMP(s.amount), 0)                     AS amount_stddev,
	COUNT(*) FILTER (
		WHERE s.executed_at >= CURRENT_DATE - INTERVAL '30 days'
	)                                                      AS tx_count_30d,
	MAX(l.executed_at)                                     AS last_tx_at,
	MAX(l.amount)                                          AS last_tx_amount,
	BOOL_OR(l.is_credit)                                   AS last_tx_credit
FROM settled s
LEFT JOIN latest l ON l.merchant_id = s.merchant_id
LEFT JOIN inscriptions i ON i.merchant_id = s.merchant_id
GROUP BY s.merchant_id, i.raison_sociale
ORDER BY s.merchant_id
`

// Aggregate computes feature rows for the given merchants. Merchants with
// no settled transactions simply don't appear in the result; when none of
// them have any, ErrNoMerchants is returned.
func (s *SQLSource) Aggregate(ctx context.Context, merchantIDs []int64) ([]*Row, error) {
	if len(merchantIDs) == 0 {
		return nil, ErrNoMerchants
	}

	rows, err := s.db.QueryContext(ctx, aggregateQuery, pq.Array(merchantIDs))
	if err != nil {
		return nil, fmt.Errorf("aggregate features: %w", err)
	}
	defer rows.Close()

	var out []*Row
	for rows.Next() {
		var (
			r          Row
			lastAt     sql.NullTime
			lastAmount sql.NullFloat64
			lastCredit sql.NullBool
		)
		err := rows.Scan(
			&r.MerchantID,
			&r.LegalName,
			&r.TxCount,
			&r.TxSum,
			&r.TxAvg,
			&r.RecencyDays,
			&r.ActiveDays,
			&r.MaxAmount,
			&r.AmountStdDev,
			&r.TxCountLast30,
			&lastAt,
			&lastAmount,
			&lastCredit,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		if lastAt.Valid {
			t := lastAt.Time
			r.LastTxAt = &t
		}
		if lastAmount.Valid {
			a := lastAmount.Float64
			r.LastTxAmount = &a
		}
		r.LastTxCredit = lastCredit.Valid && lastCredit.Bool
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoMerchants
	}
	return out, nil
}
