package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// RequiredTables lists the tables the store reads and writes.
var RequiredTables = []string{"circles", "memberships", "invitations", "rides", "ride_passengers", "ratings", "profiles"}

// EnsureSchema creates any missing tables and indexes. Statements are
// idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ValidateSchema checks that every required table exists.
func ValidateSchema(ctx context.Context, db *sql.DB) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	`

	for _, table := range RequiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("missing table '%s' - run with AUTO_MIGRATE=true or apply schema.sql", table)
		}
		if err != nil {
			return fmt.Errorf("failed to check schema: %w", err)
		}
	}
	return nil
}
