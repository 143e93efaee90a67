// Package migrate applies ordered, versioned SQL migrations per component.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrator records applied versions in schema_migrations, keyed by component
// so that independent packages can version their schemas separately.
type Migrator struct {
	db     *sql.DB
	logger *observability.Logger
}

// New creates a migrator
func New(db *sql.DB, logger *observability.Logger) *Migrator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Migrator{db: db, logger: logger}
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		component VARCHAR(64) NOT NULL,
		version INTEGER NOT NULL,
		description TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL,
		PRIMARY KEY (component, version)
	)
`

// Up applies every migration of component that has not been applied yet.
// Each migration runs in its own transaction together with its bookkeeping row.
func (m *Migrator) Up(ctx context.Context, component string, migrations []Migration) error {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := m.appliedVersions(ctx, component)
	if err != nil {
		return err
	}

	ordered := append([]Migration(nil), migrations...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	for _, mig := range ordered {
		if applied[mig.Version] {
			continue
		}
		if err := m.apply(ctx, component, mig); err != nil {
			return err
		}
		m.logger.WithFields(map[string]interface{}{
			"component": component,
			"version":   mig.Version,
		}).Infof("applied migration: %s", mig.Description)
	}

	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context, component string) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations WHERE component = $1`, component)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, component string, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s/%d: %w", component, mig.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("failed to apply migration %s/%d (%s): %w", component, mig.Version, mig.Description, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (component, version, description, applied_at) VALUES ($1, $2, $3, $4)`,
		component, mig.Version, mig.Description, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to record migration %s/%d: %w", component, mig.Version, err)
	}

	return tx.Commit()
}
