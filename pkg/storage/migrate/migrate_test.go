package migrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

var widgetMigrations = []Migration{
	{Version: 2, Description: "add color", SQL: `ALTER TABLE widgets ADD COLUMN color TEXT`},
	{Version: 1, Description: "create widgets", SQL: `CREATE TABLE widgets (id TEXT PRIMARY KEY)`},
}

func TestMigrator_UpAppliesInOrderOnce(t *testing.T) {
	db := setupTestDB(t)
	m := New(db, nil)
	ctx := context.Background()

	require.NoError(t, m.Up(ctx, "widgets", widgetMigrations))
	// Second run is a no-op; re-applying the ALTER would fail.
	require.NoError(t, m.Up(ctx, "widgets", widgetMigrations))

	_, err := db.Exec(`INSERT INTO widgets (id, color) VALUES ('w1', 'red')`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE component = 'widgets'`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrator_ComponentsAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	m := New(db, nil)
	ctx := context.Background()

	require.NoError(t, m.Up(ctx, "a", []Migration{{Version: 1, Description: "a", SQL: `CREATE TABLE a (id TEXT)`}}))
	require.NoError(t, m.Up(ctx, "b", []Migration{{Version: 1, Description: "b", SQL: `CREATE TABLE b (id TEXT)`}}))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").WithArgs("widgets").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE widgets").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = New(db, nil).Up(context.Background(), "widgets", widgetMigrations[1:])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migration widgets/1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
