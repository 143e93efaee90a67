// Package sqlstore implements templates.Store on database/sql for PostgreSQL
// and SQLite.
//
// Queries use $N placeholders, which both drivers accept. Row locks are
// taken with SELECT ... FOR UPDATE on PostgreSQL; SQLite serializes writers
// itself. The partial unique indexes created by GetMigrations back the
// engine's uniqueness checks, and violations come back as the engine's
// sentinel errors.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

// Store implements templates.Store
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now for created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store over an open database
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTransaction implements templates.Store
func (s *Store) WithTransaction(ctx context.Context, fn func(tx templates.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return translate(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// View implements templates.Store
func (s *Store) View(ctx context.Context, fn func(tx templates.Tx) error) error {
	var opts *sql.TxOptions
	if s.dialect.supportsReadOnlyTx() {
		opts = &sql.TxOptions{ReadOnly: true}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&sqlTx{tx: tx, dialect: s.dialect, now: s.now})
}

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
	now     func() time.Time
}

const templateColumns = `id, name, category, category_label, industry, description, version, status,
	effective_from, supersedes_version, supersedes_template_id, created_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row scanner) (*templates.Template, error) {
	var (
		t             templates.Template
		status        string
		effectiveFrom sql.NullTime
		supersedes    sql.NullInt64
		sourceID      sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Category, &t.CategoryLabel, &t.Industry, &t.Description, &t.Version, &status,
		&effectiveFrom, &supersedes, &sourceID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = templates.Status(status)
	if effectiveFrom.Valid {
		ef := effectiveFrom.Time.UTC()
		t.EffectiveFrom = &ef
	}
	if supersedes.Valid {
		v := int(supersedes.Int64)
		t.SupersedesVersion = &v
	}
	if sourceID.Valid {
		t.SupersedesTemplateID = &sourceID.String
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func (t *sqlTx) findOne(ctx context.Context, query string, args ...interface{}) (*templates.Template, error) {
	tpl, err := scanTemplate(t.tx.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query template: %w", err)
	}
	return tpl, nil
}

func (t *sqlTx) FindTemplate(ctx context.Context, id string, forUpdate bool) (*templates.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1` + t.dialect.lockClause(forUpdate)
	return t.findOne(ctx, query, id)
}

func (t *sqlTx) FindActiveTemplateInCategory(ctx context.Context, category string, forUpdate bool) (*templates.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE category = $1 AND status = $2` + t.dialect.lockClause(forUpdate)
	return t.findOne(ctx, query, category, string(templates.StatusActive))
}

func (t *sqlTx) FindSuccessor(ctx context.Context, sourceID string) (*templates.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE supersedes_template_id = $1`
	return t.findOne(ctx, query, sourceID)
}

func (t *sqlTx) ListTemplates(ctx context.Context, filter templates.ListFilter) ([]*templates.Template, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Category != "" {
		conditions = append(conditions, "category = "+arg(filter.Category))
	}
	if filter.Status != templates.StatusNone {
		conditions = append(conditions, "status = "+arg(string(filter.Status)))
	}
	if filter.Search != "" {
		conditions = append(conditions, "LOWER(name) LIKE "+arg("%"+strings.ToLower(filter.Search)+"%"))
	}

	query := `SELECT ` + templateColumns + ` FROM templates`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY category ASC, version DESC, created_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT ` + t.dialect.noLimit()
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	result := []*templates.Template{}
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		result = append(result, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return result, nil
}

func (t *sqlTx) CountByStatus(ctx context.Context) (map[templates.Status]int, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT status, COUNT(*) FROM templates GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count templates: %w", err)
	}
	defer rows.Close()

	counts := make(map[templates.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[templates.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}
	return counts, nil
}

func (t *sqlTx) CreateTemplate(ctx context.Context, in *templates.Template) (*templates.Template, error) {
	tpl := *in
	tpl.Blocks = nil
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	now := t.now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now

	var effectiveFrom sql.NullTime
	if tpl.EffectiveFrom != nil {
		effectiveFrom = sql.NullTime{Time: tpl.EffectiveFrom.UTC(), Valid: true}
	}
	var supersedes sql.NullInt64
	if tpl.SupersedesVersion != nil {
		supersedes = sql.NullInt64{Int64: int64(*tpl.SupersedesVersion), Valid: true}
	}
	var sourceID sql.NullString
	if tpl.SupersedesTemplateID != nil {
		sourceID = sql.NullString{String: *tpl.SupersedesTemplateID, Valid: true}
	}

	query := `
		INSERT INTO templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := t.tx.ExecContext(ctx, query,
		tpl.ID, tpl.Name, tpl.Category, tpl.CategoryLabel, tpl.Industry, tpl.Description, tpl.Version,
		string(tpl.Status), effectiveFrom, supersedes, sourceID, tpl.CreatedBy, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to insert template: %w", err))
	}
	return &tpl, nil
}

func (t *sqlTx) UpdateTemplate(ctx context.Context, id string, patch templates.TemplatePatch) (*templates.Template, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.CategoryLabel != nil {
		set("category_label", *patch.CategoryLabel)
	}
	if patch.Industry != nil {
		set("industry", *patch.Industry)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.EffectiveFrom != nil {
		set("effective_from", patch.EffectiveFrom.UTC())
	}
	set("updated_at", t.now().UTC())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE templates SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to update template: %w", err))
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("template %s not found", id)
	}

	tpl, err := t.FindTemplate(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %s not found", id)
	}
	return tpl, nil
}

// DeleteTemplate deletes children explicitly so the cascade does not depend
// on SQLite's foreign_keys pragma
func (t *sqlTx) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM template_fields WHERE template_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete fields: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM template_blocks WHERE template_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete blocks: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("template %s not found", id)
	}
	return nil
}
