// Package inscriptions serves merchant registration records. The API
// lists validated registrations within a date range; field names follow
// the upstream registration system.
package inscriptions

import (
	"context"
	"fmt"
	"time"
)

// StatusValidated is the registration state exposed by the listing API.
// Other states (pending, rejected) exist in the table but are never
// returned.
const StatusValidated = "Validée"

const dateLayout = "2006-01-02"

// Date is a calendar date. It marshals to "YYYY-MM-DD"; a nil *Date
// marshals to JSON null.
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON renders the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON parses "YYYY-MM-DD".
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	t, err := time.Parse(dateLayout, s[1:len(s)-1])
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Inscription is one merchant registration record.
type Inscription struct {
	MerchantID         int64  `json:"id_marchand"`
	LegalName          string `json:"raison_sociale"`
	MerchantType       string `json:"type_marchand"`
	RCCM               string `json:"rccm"`
	NIF                string `json:"nif"`
	Sector             string `json:"secteur_activite"`
	City               string `json:"ville"`
	District           string `json:"quartier"`
	RegisteredAt       *Date  `json:"date_inscription"`
	Status             string `json:"etat"`
	RepresentativeName string `json:"nom_representant"`
	RepresentativeTel  string `json:"tel_representant"`
}

// Store lists merchant registrations.
type Store interface {
	// ListValidated returns registrations with status Validée whose
	// inscription date falls within [start, end], inclusive on both ends.
	ListValidated(ctx context.Context, start, end time.Time) ([]*Inscription, error)
}
