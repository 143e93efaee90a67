package sqlstore

import "fmt"

// Dialect selects the SQL variations between the supported backends
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// ParseDialect maps a database/sql driver name to a Dialect
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// DriverName is the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

func (d Dialect) String() string {
	return d.DriverName()
}

// lockClause is appended to SELECTs that take a row write lock. SQLite
// serializes writers at the database level and has no row locks.
func (d Dialect) lockClause(forUpdate bool) string {
	if forUpdate && d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// noLimit is the LIMIT value meaning "all rows", needed when only OFFSET is set
func (d Dialect) noLimit() string {
	if d == DialectSQLite {
		return "-1"
	}
	return "ALL"
}

func (d Dialect) supportsReadOnlyTx() bool {
	return d == DialectPostgres
}
