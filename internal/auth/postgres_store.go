package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// Compile-time check that PostgresUserStore implements UserStore.
var _ UserStore = (*PostgresUserStore)(nil)

// PostgresUserStore implements UserStore backed by PostgreSQL.
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a new PostgreSQL-backed user store.
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// Migrate creates the users table if it doesn't exist.
func (p *PostgresUserStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			username   VARCHAR(64) PRIMARY KEY,
			password   TEXT NOT NULL,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	return err
}

// GetByUsername retrieves a user by username.
func (p *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := p.db.QueryRowContext(ctx, `
		SELECT username, password, name FROM users WHERE username = $1
	`, username).Scan(&user.Username, &user.Password, &user.Name)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}
