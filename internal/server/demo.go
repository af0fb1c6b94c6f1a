package server

import (
	"context"
	"time"

	"github.com/vistapay/merchant-radar/internal/auth"
	"github.com/vistapay/merchant-radar/internal/features"
	"github.com/vistapay/merchant-radar/internal/inscriptions"
)

// seedDemoData fills the in-memory stores so the API is usable without a
// database: one login, a few registrations, and transaction histories
// spanning both an obviously active and an obviously stale merchant.
func seedDemoData(src *features.MemorySource, store *inscriptions.MemoryStore, users *auth.MemoryUserStore) {
	users.Create(context.Background(), &auth.User{
		Username: "admin",
		Password: "admin",
		Name:     "Demo Administrator",
	})

	type merchant struct {
		id     int64
		name   string
		sector string
		city   string
		regAt  inscriptions.Date
		status string
	}
	merchants := []merchant{
		{101, "Boutique Mariama", "Alimentation", "Conakry", inscriptions.NewDate(2024, time.January, 8), inscriptions.StatusValidated},
		{102, "Pressing Kaloum", "Services", "Conakry", inscriptions.NewDate(2024, time.January, 22), inscriptions.StatusValidated},
		{103, "Quincaillerie Diallo", "Bâtiment", "Kankan", inscriptions.NewDate(2024, time.February, 3), inscriptions.StatusValidated},
		{104, "Salon Fatou", "Beauté", "Labé", inscriptions.NewDate(2024, time.February, 17), "En attente"},
	}
	for _, m := range merchants {
		regAt := m.regAt
		store.Add(&inscriptions.Inscription{
			MerchantID:   m.id,
			LegalName:    m.name,
			MerchantType: "Détaillant",
			Sector:       m.sector,
			City:         m.city,
			RegisteredAt: &regAt,
			Status:       m.status,
		})
		src.AddMerchant(m.id, m.name)
	}

	now := time.Now()
	credit := func(id int64, amount float64, daysAgo int) {
		a := amount
		src.AddTransaction(features.Transaction{
			MerchantID: id, Operation: "Transaction", Status: "Succès",
			CreditAmount: &a, ExecutedAt: now.AddDate(0, 0, -daysAgo),
		})
	}
	debit := func(id int64, amount float64, daysAgo int) {
		a := -amount
		src.AddTransaction(features.Transaction{
			MerchantID: id, Operation: "Transaction", Status: "Succès",
			DebitAmount: &a, ExecutedAt: now.AddDate(0, 0, -daysAgo),
		})
	}

	// Merchant 101: steady recent activity
	for d := 1; d <= 28; d += 3 {
		credit(101, 150+float64(d)*10, d)
	}
	debit(101, 80, 2)

	// Merchant 102: trailing off, last seen three months ago
	credit(102, 500, 95)
	credit(102, 320, 110)
	debit(102, 150, 120)

	// Merchant 103: a single old transaction
	credit(103, 1200, 180)
}
