package features

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemorySource implements Source.
var _ Source = (*MemorySource)(nil)

// Transaction is one ledger entry held by the in-memory source. Exactly
// one of CreditAmount/DebitAmount is set; DebitAmount is stored negative,
// matching the ledger convention.
type Transaction struct {
	MerchantID   int64
	Operation    string
	Status       string
	CreditAmount *float64
	DebitAmount  *float64
	ExecutedAt   time.Time
}

// MemorySource computes the same statistics as SQLSource from an
// in-memory ledger. Used in demo mode and in tests.
type MemorySource struct {
	mu           sync.RWMutex
	names        map[int64]string
	transactions map[int64][]Transaction

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// NewMemorySource creates an empty in-memory feature source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		names:        make(map[int64]string),
		transactions: make(map[int64][]Transaction),
		now:          time.Now,
	}
}

// AddMerchant registers a merchant's legal name for display fields.
func (m *MemorySource) AddMerchant(id int64, legalName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[id] = legalName
}

// AddTransaction appends a ledger entry.
func (m *MemorySource) AddTransaction(tx Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.MerchantID] = append(m.transactions[tx.MerchantID], tx)
}

// Aggregate computes feature rows for the given merchants. Matches the
// SQL source's semantics: settled transactions only, magnitudes, sample
// stddev, calendar-day recency, rows ordered by merchant ID.
func (m *MemorySource) Aggregate(ctx context.Context, merchantIDs []int64) ([]*Row, error) {
	if len(merchantIDs) == 0 {
		return nil, ErrNoMerchants
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	today := truncateToDay(m.now())
	// Same anchor as the SQL source's CURRENT_DATE - INTERVAL '30 days':
	// midnight, not the current instant.
	windowStart := today.AddDate(0, 0, -30)

	ids := append([]int64(nil), merchantIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*Row
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		var settled []Transaction
		for _, tx := range m.transactions[id] {
			if tx.Operation == OperationTransaction && tx.Status == StatusSettled {
				settled = append(settled, tx)
			}
		}
		if len(settled) == 0 {
			continue // silently dropped, same as the SQL source
		}

		r := &Row{MerchantID: id, LegalName: m.names[id]}
		var sum, sumSq float64
		activeDays := make(map[time.Time]bool)
		var latest *Transaction
		for i := range settled {
			tx := &settled[i]
			amount := magnitude(tx)
			sum += amount
			sumSq += amount * amount
			if amount > r.MaxAmount {
				r.MaxAmount = amount
			}
			activeDays[truncateToDay(tx.ExecutedAt)] = true
			if !tx.ExecutedAt.Before(windowStart) {
				r.TxCountLast30++
			}
			if latest == nil || tx.ExecutedAt.After(latest.ExecutedAt) {
				latest = tx
			}
		}

		n := float64(len(settled))
		r.TxCount = int64(len(settled))
		r.TxSum = sum
		r.TxAvg = sum / n
		r.ActiveDays = int64(len(activeDays))
		if len(settled) > 1 {
			// sample variance, n-1 denominator
			variance := (sumSq - sum*sum/n) / (n - 1)
			if variance > 0 {
				r.AmountStdDev = math.Sqrt(variance)
			}
		}

		at := latest.ExecutedAt
		a := magnitude(latest)
		r.LastTxAt = &at
		r.LastTxAmount = &a
		r.LastTxCredit = latest.CreditAmount != nil
		r.RecencyDays = today.Sub(truncateToDay(at)).Hours() / 24

		out = append(out, r)
	}

	if len(out) == 0 {
		return nil, ErrNoMerchants
	}
	return out, nil
}

func magnitude(tx *Transaction) float64 {
	if tx.CreditAmount != nil {
		return *tx.CreditAmount
	}
	if tx.DebitAmount != nil {
		return math.Abs(*tx.DebitAmount)
	}
	return 0
}

func truncateToDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
