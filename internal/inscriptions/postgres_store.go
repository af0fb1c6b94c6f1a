package inscriptions

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed inscriptions store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListValidated returns validated registrations within the date range,
// inclusive, ordered by merchant ID.
func (p *PostgresStore) ListValidated(ctx context.Context, start, end time.Time) ([]*Inscription, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT
			merchant_id,
			raison_sociale,
			type_marchand,
			rccm,
			nif,
			secteur_activite,
			ville,
			quartier,
			date_inscription,
			etat,
			nom_representant,
			tel_representant
		FROM inscriptions
		WHERE date_inscription BETWEEN $1 AND $2
		  AND etat = $3
		ORDER BY merchant_id
	`, start, end, StatusValidated)
	if err != nil {
		return nil, fmt.Errorf("list inscriptions: %w", err)
	}
	defer rows.Close()

	var out []*Inscription
	for rows.Next() {
		var (
			ins          Inscription
			merchantType sql.NullString
			rccm         sql.NullString
			nif          sql.NullString
			sector       sql.NullString
			city         sql.NullString
			district     sql.NullString
			registeredAt sql.NullTime
			repName      sql.NullString
			repTel       sql.NullString
		)
		err := rows.Scan(
			&ins.MerchantID,
			&ins.LegalName,
			&merchantType,
			&rccm,
			&nif,
			&sector,
			&city,
			&district,
			&registeredAt,
			&ins.Status,
			&repName,
			&repTel,
		)
		if err != nil {
			return nil, fmt.Errorf("scan inscription: %w", err)
		}
		ins.MerchantType = merchantType.String
		ins.RCCM = rccm.String
		ins.NIF = nif.String
		ins.Sector = sector.String
		ins.City = city.String
		ins.District = district.String
		ins.RepresentativeName = repName.String
		ins.RepresentativeTel = repTel.String
		if registeredAt.Valid {
			d := Date{registeredAt.Time}
			ins.RegisteredAt = &d
		}
		out = append(out, &ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inscriptions: %w", err)
	}
	return out, nil
}
