package features

import (
	"context"
	"math"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

// fixedNow pins the clock so recency and trailing-window features are
// deterministic.
var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestSource() *MemorySource {
	src := NewMemorySource()
	src.now = func() time.Time { return fixedNow }
	return src
}

func settledCredit(id int64, amount float64, at time.Time) Transaction {
	return Transaction{
		MerchantID:   id,
		Operation:    OperationTransaction,
		Status:       StatusSettled,
		CreditAmount: f64(amount),
		ExecutedAt:   at,
	}
}

func settledDebit(id int64, amount float64, at time.Time) Transaction {
	return Transaction{
		MerchantID:  id,
		Operation:   OperationTransaction,
		Status:      StatusSettled,
		DebitAmount: f64(-amount),
		ExecutedAt:  at,
	}
}

func TestAggregate_Stats(t *testing.T) {
	src := newTestSource()
	src.AddMerchant(1, "Boutique Centrale")
	src.AddTransaction(settledCredit(1, 100, fixedNow.AddDate(0, 0, -10)))
	src.AddTransaction(settledCredit(1, 300, fixedNow.AddDate(0, 0, -5)))
	src.AddTransaction(settledDebit(1, 200, fixedNow.AddDate(0, 0, -2)))

	rows, err := src.Aggregate(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}

	r := rows[0]
	if r.LegalName != "Boutique Centrale" {
		t.Errorf("Expected legal name, got %q", r.LegalName)
	}
	if r.TxCount != 3 {
		t.Errorf("Expected count 3, got %d", r.TxCount)
	}
	if r.TxSum != 600 {
		t.Errorf("Expected sum 600, got %f", r.TxSum)
	}
	if r.TxAvg != 200 {
		t.Errorf("Expected avg 200, got %f", r.TxAvg)
	}
	if r.RecencyDays != 2 {
		t.Errorf("Expected recency 2, got %f", r.RecencyDays)
	}
	if r.ActiveDays != 3 {
		t.Errorf("Expected 3 active days, got %d", r.ActiveDays)
	}
	if r.MaxAmount != 300 {
		t.Errorf("Expected max 300, got %f", r.MaxAmount)
	}
	// sample stddev of {100, 300, 200} = 100
	if math.Abs(r.AmountStdDev-100) > 1e-9 {
		t.Errorf("Expected stddev 100, got %f", r.AmountStdDev)
	}
	if r.TxCountLast30 != 3 {
		t.Errorf("Expected 3 transactions in last 30 days, got %d", r.TxCountLast30)
	}
	if r.LastTxAmount == nil || *r.LastTxAmount != 200 {
		t.Errorf("Expected last amount 200, got %v", r.LastTxAmount)
	}
	if r.LastTxCredit {
		t.Error("Latest transaction is a debit")
	}
}

func TestAggregate_DebitMagnitude(t *testing.T) {
	src := newTestSource()
	src.AddTransaction(settledDebit(1, 250, fixedNow.AddDate(0, 0, -1)))

	rows, err := src.Aggregate(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if rows[0].TxSum != 250 {
		t.Errorf("Debit should contribute its magnitude, got sum %f", rows[0].TxSum)
	}
	if rows[0].LastTxAmount == nil || *rows[0].LastTxAmount != 250 {
		t.Errorf("Expected last amount 250, got %v", rows[0].LastTxAmount)
	}
}

func TestAggregate_IgnoresUnsettled(t *testing.T) {
	src := newTestSource()
	src.AddTransaction(settledCredit(1, 100, fixedNow.AddDate(0, 0, -1)))
	src.AddTransaction(Transaction{
		MerchantID: 1, Operation: OperationTransaction, Status: "Échec",
		CreditAmount: f64(999), ExecutedAt: fixedNow,
	})
	src.AddTransaction(Transaction{
		MerchantID: 1, Operation: "Remboursement", Status: StatusSettled,
		CreditAmount: f64(999), ExecutedAt: fixedNow,
	})

	rows, err := src.Aggregate(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if rows[0].TxCount != 1 || rows[0].TxSum != 100 {
		t.Errorf("Only settled transactions should count, got count=%d sum=%f",
			rows[0].TxCount, rows[0].TxSum)
	}
}

func TestAggregate_DropsMerchantsWithoutTransactions(t *testing.T) {
	src := newTestSource()
	src.AddMerchant(1, "Active")
	src.AddMerchant(2, "Silent")
	src.AddTransaction(settledCredit(1, 100, fixedNow.AddDate(0, 0, -1)))

	rows, err := src.Aggregate(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(rows) != 1 || rows[0].MerchantID != 1 {
		t.Errorf("Merchant without transactions should be dropped, got %d rows", len(rows))
	}
}

func TestAggregate_NoMerchants(t *testing.T) {
	src := newTestSource()

	if _, err := src.Aggregate(context.Background(), nil); err != ErrNoMerchants {
		t.Errorf("Expected ErrNoMerchants for empty input, got %v", err)
	}
	if _, err := src.Aggregate(context.Background(), []int64{42}); err != ErrNoMerchants {
		t.Errorf("Expected ErrNoMerchants when nothing matches, got %v", err)
	}
}

func TestAggregate_OrderAndDuplicates(t *testing.T) {
	src := newTestSource()
	src.AddTransaction(settledCredit(5, 10, fixedNow.AddDate(0, 0, -1)))
	src.AddTransaction(settledCredit(2, 20, fixedNow.AddDate(0, 0, -1)))

	rows, err := src.Aggregate(context.Background(), []int64{5, 2, 5})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Duplicate IDs should not duplicate rows, got %d", len(rows))
	}
	if rows[0].MerchantID != 2 || rows[1].MerchantID != 5 {
		t.Errorf("Rows should be ordered by merchant ID, got %d, %d",
			rows[0].MerchantID, rows[1].MerchantID)
	}
}

func TestRow_VectorOrder(t *testing.T) {
	r := &Row{
		TxCount: 1, TxSum: 2, TxAvg: 3, RecencyDays: 4,
		ActiveDays: 5, MaxAmount: 6, AmountStdDev: 7,
	}
	v := r.Vector()
	if len(v) != FeatureWidth {
		t.Fatalf("Expected %d features, got %d", FeatureWidth, len(v))
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6, 7} {
		if v[i] != want {
			t.Errorf("Feature %d: expected %f, got %f", i, want, v[i])
		}
	}
}

func TestAggregate_SingleTransactionStdDevZero(t *testing.T) {
	src := newTestSource()
	src.AddTransaction(settledCredit(1, 100, fixedNow.AddDate(0, 0, -1)))

	rows, err := src.Aggregate(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if rows[0].AmountStdDev != 0 {
		t.Errorf("Single transaction should have stddev 0, got %f", rows[0].AmountStdDev)
	}
}

func TestAggregate_TrailingWindowAnchoredToMidnight(t *testing.T) {
	// fixedNow is noon. The trailing 30-day count must be anchored to
	// midnight, matching CURRENT_DATE semantics in the SQL source, so a
	// morning transaction exactly 30 days back still counts.
	src := newTestSource()
	boundaryDay := time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC)
	beforeWindow := time.Date(2024, 2, 13, 23, 0, 0, 0, time.UTC)
	src.AddTransaction(settledCredit(1, 50, boundaryDay))
	src.AddTransaction(settledCredit(1, 75, beforeWindow))

	rows, err := src.Aggregate(context.Background(), []int64{1})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if rows[0].TxCountLast30 != 1 {
		t.Errorf("Expected 1 transaction in trailing window, got %d", rows[0].TxCountLast30)
	}
}
