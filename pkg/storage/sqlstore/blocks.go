package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

const fieldColumns = `id, template_id, block_id, label, field_key, field_type, required, regulatory_required,
	repeatable, config, sort_order, introduced_in_version`

func scanField(row scanner) (*templates.Field, error) {
	var (
		f          templates.Field
		fieldType  string
		config     sql.NullString
		introduced sql.NullInt64
	)
	err := row.Scan(
		&f.ID, &f.TemplateID, &f.BlockID, &f.Label, &f.Key, &fieldType, &f.Required, &f.RegulatoryRequired,
		&f.Repeatable, &config, &f.Order, &introduced,
	)
	if err != nil {
		return nil, err
	}
	f.Type = templates.FieldType(fieldType)
	if config.Valid && config.String != "" {
		f.Config = json.RawMessage(config.String)
	}
	if introduced.Valid {
		f.IntroducedInVersion = int(introduced.Int64)
	}
	return &f, nil
}

func nullConfig(config json.RawMessage) sql.NullString {
	if len(config) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(config), Valid: true}
}

// nullVersion stores a missing provenance as NULL, matching legacy rows
func nullVersion(v int) sql.NullInt64 {
	if v <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func (t *sqlTx) ListBlocksWithFields(ctx context.Context, templateID string) ([]templates.Block, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, template_id, name, sort_order
		FROM template_blocks
		WHERE template_id = $1
		ORDER BY sort_order ASC, created_at ASC, id ASC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}

	var blocks []templates.Block
	index := make(map[string]int)
	for rows.Next() {
		var b templates.Block
		if err := rows.Scan(&b.ID, &b.TemplateID, &b.Name, &b.Order); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		index[b.ID] = len(blocks)
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating blocks: %w", err)
	}
	rows.Close()

	if len(blocks) == 0 {
		return blocks, nil
	}

	fieldRows, err := t.tx.QueryContext(ctx, `
		SELECT `+fieldColumns+`
		FROM template_fields
		WHERE template_id = $1
		ORDER BY sort_order ASC, created_at ASC, id ASC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer fieldRows.Close()

	for fieldRows.Next() {
		f, err := scanField(fieldRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		if i, ok := index[f.BlockID]; ok {
			blocks[i].Fields = append(blocks[i].Fields, *f)
		}
	}
	if err := fieldRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}
	return blocks, nil
}

func (t *sqlTx) CloneBlocksAndFields(ctx context.Context, sourceTemplateID, targetTemplateID string, versionStamp int) error {
	blocks, err := t.ListBlocksWithFields(ctx, sourceTemplateID)
	if err != nil {
		return err
	}

	for _, b := range blocks {
		nb, err := t.CreateBlock(ctx, &templates.Block{
			TemplateID: targetTemplateID,
			Name:       b.Name,
			Order:      b.Order,
		})
		if err != nil {
			return err
		}

		for _, f := range b.Fields {
			nf := f
			nf.ID = ""
			nf.TemplateID = targetTemplateID
			nf.BlockID = nb.ID
			if nf.IntroducedInVersion <= 0 {
				nf.IntroducedInVersion = versionStamp
			}
			if _, err := t.CreateField(ctx, &nf); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *sqlTx) FindBlock(ctx context.Context, id string) (*templates.Block, error) {
	var b templates.Block
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, template_id, name, sort_order FROM template_blocks WHERE id = $1
	`, id).Scan(&b.ID, &b.TemplateID, &b.Name, &b.Order)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query block: %w", err)
	}
	return &b, nil
}

func (t *sqlTx) CreateBlock(ctx context.Context, in *templates.Block) (*templates.Block, error) {
	b := *in
	b.Fields = nil
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO template_blocks (id, template_id, name, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, b.ID, b.TemplateID, b.Name, b.Order, t.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert block: %w", err)
	}
	return &b, nil
}

func (t *sqlTx) UpdateBlock(ctx context.Context, id string, patch templates.BlockPatch) (*templates.Block, error) {
	var (
		sets []string
		args []interface{}
	)
	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Order != nil {
		args = append(args, *patch.Order)
		sets = append(sets, fmt.Sprintf("sort_order = $%d", len(args)))
	}

	if len(sets) > 0 {
		args = append(args, id)
		query := fmt.Sprintf(`UPDATE template_blocks SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to update block: %w", err)
		}
	}

	b, err := t.FindBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("block %s not found", id)
	}
	return b, nil
}

func (t *sqlTx) DeleteBlock(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM template_fields WHERE block_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete fields: %w", err)
	}
	result, err := t.tx.ExecContext(ctx, `DELETE FROM template_blocks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("block %s not found", id)
	}
	return nil
}

func (t *sqlTx) FindField(ctx context.Context, id string) (*templates.Field, error) {
	f, err := scanField(t.tx.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM template_fields WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query field: %w", err)
	}
	return f, nil
}

func (t *sqlTx) CreateField(ctx context.Context, in *templates.Field) (*templates.Field, error) {
	f := *in
	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO template_fields (`+fieldColumns+`, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		f.ID, f.TemplateID, f.BlockID, f.Label, f.Key, string(f.Type), f.Required, f.RegulatoryRequired,
		f.Repeatable, nullConfig(f.Config), f.Order, nullVersion(f.IntroducedInVersion), t.now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert field: %w", err)
	}
	return &f, nil
}

func (t *sqlTx) UpdateField(ctx context.Context, id string, patch templates.FieldPatch) (*templates.Field, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Label != nil {
		set("label", *patch.Label)
	}
	if patch.Key != nil {
		set("field_key", *patch.Key)
	}
	if patch.Type != nil {
		set("field_type", string(*patch.Type))
	}
	if patch.Required != nil {
		set("required", *patch.Required)
	}
	if patch.RegulatoryRequired != nil {
		set("regulatory_required", *patch.RegulatoryRequired)
	}
	if patch.Repeatable != nil {
		set("repeatable", *patch.Repeatable)
	}
	if patch.Config != nil {
		set("config", nullConfig(*patch.Config))
	}
	if patch.Order != nil {
		set("sort_order", *patch.Order)
	}
	if patch.IntroducedInVersion != nil {
		set("introduced_in_version", nullVersion(*patch.IntroducedInVersion))
	}

	if len(sets) > 0 {
		args = append(args, id)
		query := fmt.Sprintf(`UPDATE template_fields SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to update field: %w", err)
		}
	}

	f, err := t.FindField(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("field %s not found", id)
	}
	return f, nil
}

func (t *sqlTx) DeleteField(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM template_fields WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("field %s not found", id)
	}
	return nil
}
