package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	Driver      string
	DSN         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Open opens and pings the database described by config
func Open(ctx context.Context, config ConnectionConfig, logger *observability.Logger) (*sql.DB, Dialect, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	dialect, err := ParseDialect(config.Driver)
	if err != nil {
		return nil, 0, err
	}

	db, err := sql.Open(dialect.DriverName(), config.DSN)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to an in-memory SQLite database is a separate database
	if dialect == DialectSQLite && strings.Contains(config.DSN, ":memory:") {
		db.SetMaxOpenConns(1)
	} else {
		if config.MaxConns > 0 {
			db.SetMaxOpenConns(config.MaxConns)
		}
		if config.MinConns > 0 {
			db.SetMaxIdleConns(config.MinConns)
		}
	}
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, 0, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"driver":    dialect.DriverName(),
		"max_conns": config.MaxConns,
	}).Info("database connection established")

	return db, dialect, nil
}
