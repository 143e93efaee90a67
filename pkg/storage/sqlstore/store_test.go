package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/storage/migrate"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := migrate.New(db, nil).Up(context.Background(), MigrationComponent, GetMigrations()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *sql.DB) (*templates.Service, rbac.Session) {
	members := rbac.NewStaticStore(rbac.Membership{UserID: "admin", OrganizationID: "org", Role: "ORG_ADMIN"})
	svc := templates.NewService(New(db, DialectSQLite), rbac.NewPermissionChecker(members))
	return svc, rbac.Session{ActorID: "admin", OrganizationID: "org"}
}

func insertTemplate(t *testing.T, s *Store, tpl templates.Template) *templates.Template {
	t.Helper()
	var created *templates.Template
	require.NoError(t, s.WithTransaction(context.Background(), func(tx templates.Tx) error {
		var err error
		created, err = tx.CreateTemplate(context.Background(), &tpl)
		return err
	}))
	return created
}

func intPtr(i int) *int { return &i }

func TestLifecycleOnSQLite(t *testing.T) {
	db := setupTestDB(t)
	svc, admin := newTestService(t, db)
	ctx := context.Background()

	draft, err := svc.CreateTemplate(ctx, admin, templates.CreateTemplateRequest{
		Name:     "Möbelpass",
		Category: "Möbel",
		Blocks: []templates.BlockInput{{
			Name: "Basisdaten",
			Fields: []templates.FieldInput{
				{Label: "Produktname", Required: true},
				{Label: "Maße", Type: templates.FieldText, Config: []byte(`{"unit":"cm"}`)},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "FURNITURE", draft.Category)
	require.Len(t, draft.Blocks, 1)
	require.Len(t, draft.Blocks[0].Fields, 2)
	assert.Equal(t, "masse", draft.Blocks[0].Fields[1].Key)
	assert.JSONEq(t, `{"unit":"cm"}`, string(draft.Blocks[0].Fields[1].Config))

	v1, err := svc.ActivateTemplate(ctx, admin, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, v1.EffectiveFrom)

	v2ID, err := svc.CreateSuccessorVersion(ctx, admin, v1.ID)
	require.NoError(t, err)

	_, err = svc.CreateSuccessorVersion(ctx, admin, v1.ID)
	assert.ErrorIs(t, err, templates.ErrSuccessorConflict)

	v2, err := svc.GetTemplate(ctx, admin, v2ID)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	require.NotNil(t, v2.SupersedesVersion)
	assert.Equal(t, 1, *v2.SupersedesVersion)
	require.Len(t, v2.Blocks, 1)
	require.Len(t, v2.Blocks[0].Fields, 2)
	assert.Equal(t, 1, v2.Blocks[0].Fields[0].IntroducedInVersion)
	assert.NotEqual(t, v1.Blocks[0].ID, v2.Blocks[0].ID)

	other, err := svc.CreateTemplate(ctx, admin, templates.CreateTemplateRequest{Name: "Other", Category: "FURNITURE"})
	require.NoError(t, err)
	_, err = svc.ActivateTemplate(ctx, admin, other.ID)
	assert.ErrorIs(t, err, templates.ErrDuplicateActiveTemplate)

	_, err = svc.ActivateTemplate(ctx, admin, v2ID)
	require.NoError(t, err)

	old, err := svc.GetTemplate(ctx, admin, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, templates.StatusArchived, old.Status)

	require.NoError(t, svc.DeleteTemplate(ctx, admin, other.ID))
	counts, err := svc.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[templates.Status]int{templates.StatusActive: 1, templates.StatusArchived: 1}, counts)
}

func TestUniqueIndexesAreTranslated(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, DialectSQLite)
	ctx := context.Background()

	a := insertTemplate(t, s, templates.Template{Name: "A", Category: "TEXTILE", Version: 1, Status: templates.StatusActive, CreatedBy: "u"})
	draft := insertTemplate(t, s, templates.Template{Name: "B", Category: "TEXTILE", Version: 1, Status: templates.StatusDraft, CreatedBy: "u"})

	active := templates.StatusActive
	err := s.WithTransaction(ctx, func(tx templates.Tx) error {
		_, err := tx.UpdateTemplate(ctx, draft.ID, templates.TemplatePatch{Status: &active})
		return err
	})
	assert.ErrorIs(t, err, templates.ErrDuplicateActiveTemplate)

	a2 := insertTemplate(t, s, templates.Template{Name: "A v2", Category: "TEXTILE", Version: 2, Status: templates.StatusDraft, SupersedesVersion: intPtr(1), SupersedesTemplateID: &a.ID, CreatedBy: "u"})
	err = s.WithTransaction(ctx, func(tx templates.Tx) error {
		_, err := tx.CreateTemplate(ctx, &templates.Template{Name: "A v2b", Category: "TEXTILE", Version: 2, Status: templates.StatusDraft, SupersedesVersion: intPtr(1), SupersedesTemplateID: &a.ID, CreatedBy: "u"})
		return err
	})
	assert.ErrorIs(t, err, templates.ErrSuccessorConflict)

	// another chain in the same category may have its own successor of version 1
	b2 := insertTemplate(t, s, templates.Template{Name: "B v2", Category: "TEXTILE", Version: 2, Status: templates.StatusDraft, SupersedesVersion: intPtr(1), SupersedesTemplateID: &draft.ID, CreatedBy: "u"})

	require.NoError(t, s.View(ctx, func(tx templates.Tx) error {
		found, err := tx.FindSuccessor(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, a2.ID, found.ID)
		require.NotNil(t, found.SupersedesTemplateID)
		assert.Equal(t, a.ID, *found.SupersedesTemplateID)

		found, err = tx.FindSuccessor(ctx, draft.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, b2.ID, found.ID)
		return nil
	}))
}

func TestSuccessorLinkBackfill(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	migrator := migrate.New(db, nil)
	all := GetMigrations()
	require.NoError(t, migrator.Up(ctx, MigrationComponent, all[:3]))

	now := time.Now().UTC()
	insert := `INSERT INTO templates (id, name, category, version, status, supersedes_version, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'u', $7, $7)`
	_, err = db.Exec(insert, "t1", "Textile", "TEXTILE", 1, "archived", nil, now)
	require.NoError(t, err)
	_, err = db.Exec(insert, "t2", "Textile", "TEXTILE", 2, "active", 1, now)
	require.NoError(t, err)
	_, err = db.Exec(insert, "f2", "Furniture", "FURNITURE", 2, "draft", 1, now)
	require.NoError(t, err)

	require.NoError(t, migrator.Up(ctx, MigrationComponent, all))

	var source sql.NullString
	require.NoError(t, db.QueryRow(`SELECT supersedes_template_id FROM templates WHERE id = 't2'`).Scan(&source))
	assert.Equal(t, "t1", source.String)

	// no version 1 to link to
	require.NoError(t, db.QueryRow(`SELECT supersedes_template_id FROM templates WHERE id = 'f2'`).Scan(&source))
	assert.False(t, source.Valid)
}

func TestCloneStampsLegacyFieldsOnly(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, DialectSQLite)
	ctx := context.Background()

	src := insertTemplate(t, s, templates.Template{Name: "v4", Category: "TEXTILE", Version: 4, Status: templates.StatusActive, CreatedBy: "u"})
	dst := insertTemplate(t, s, templates.Template{Name: "v5", Category: "TEXTILE", Version: 5, Status: templates.StatusDraft, SupersedesVersion: intPtr(4), SupersedesTemplateID: &src.ID, CreatedBy: "u"})

	require.NoError(t, s.WithTransaction(ctx, func(tx templates.Tx) error {
		b, err := tx.CreateBlock(ctx, &templates.Block{TemplateID: src.ID, Name: "Materials"})
		require.NoError(t, err)
		_, err = tx.CreateField(ctx, &templates.Field{TemplateID: src.ID, BlockID: b.ID, Label: "Fibre", Key: "fibre", Type: templates.FieldText, IntroducedInVersion: 2})
		require.NoError(t, err)
		// a row written before provenance existed
		_, err = tx.CreateField(ctx, &templates.Field{TemplateID: src.ID, BlockID: b.ID, Label: "Legacy", Key: "legacy", Type: templates.FieldText, Order: 1})
		require.NoError(t, err)
		return tx.CloneBlocksAndFields(ctx, src.ID, dst.ID, src.Version)
	}))

	var stored sql.NullInt64
	require.NoError(t, db.QueryRow(`SELECT introduced_in_version FROM template_fields WHERE template_id = $1 AND field_key = 'legacy'`, src.ID).Scan(&stored))
	assert.False(t, stored.Valid)

	require.NoError(t, s.View(ctx, func(tx templates.Tx) error {
		blocks, err := tx.ListBlocksWithFields(ctx, dst.ID)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		require.Len(t, blocks[0].Fields, 2)
		assert.Equal(t, 2, blocks[0].Fields[0].IntroducedInVersion)
		assert.Equal(t, 4, blocks[0].Fields[1].IntroducedInVersion)
		return nil
	}))
}

func TestDeleteTemplateCascades(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, DialectSQLite)
	ctx := context.Background()
	tpl := insertTemplate(t, s, templates.Template{Name: "T", Category: "TEXTILE", Version: 1, Status: templates.StatusDraft, CreatedBy: "u"})

	require.NoError(t, s.WithTransaction(ctx, func(tx templates.Tx) error {
		b, err := tx.CreateBlock(ctx, &templates.Block{TemplateID: tpl.ID, Name: "B"})
		require.NoError(t, err)
		_, err = tx.CreateField(ctx, &templates.Field{TemplateID: tpl.ID, BlockID: b.ID, Label: "F", Key: "f", Type: templates.FieldText})
		require.NoError(t, err)
		return tx.DeleteTemplate(ctx, tpl.ID)
	}))

	for _, table := range []string{"templates", "template_blocks", "template_fields"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}

	err := s.WithTransaction(ctx, func(tx templates.Tx) error {
		return tx.DeleteTemplate(ctx, tpl.ID)
	})
	assert.Error(t, err)
}

func TestListTemplatesOnSQLite(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(db, DialectSQLite, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	insertTemplate(t, s, templates.Template{Name: "Textile v1", Category: "TEXTILE", Version: 1, Status: templates.StatusArchived, CreatedBy: "u"})
	insertTemplate(t, s, templates.Template{Name: "Textile v2", Category: "TEXTILE", Version: 2, Status: templates.StatusActive, SupersedesVersion: intPtr(1), CreatedBy: "u"})
	insertTemplate(t, s, templates.Template{Name: "Sofa", Category: "FURNITURE", Version: 1, Status: templates.StatusDraft, CreatedBy: "u"})

	require.NoError(t, s.View(ctx, func(tx templates.Tx) error {
		all, err := tx.ListTemplates(ctx, templates.ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Sofa", all[0].Name)
		assert.Equal(t, "Textile v2", all[1].Name)
		assert.True(t, now.Equal(all[0].CreatedAt))

		filtered, err := tx.ListTemplates(ctx, templates.ListFilter{Category: "TEXTILE", Status: templates.StatusArchived, Search: "TEXTILE"})
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, 1, filtered[0].Version)

		skipped, err := tx.ListTemplates(ctx, templates.ListFilter{Offset: 2})
		require.NoError(t, err)
		require.Len(t, skipped, 1)
		assert.Equal(t, "Textile v1", skipped[0].Name)

		page, err := tx.ListTemplates(ctx, templates.ListFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "Textile v2", page[0].Name)
		return nil
	}))
}

func TestBlockAndFieldUpdates(t *testing.T) {
	db := setupTestDB(t)
	s := New(db, DialectSQLite)
	ctx := context.Background()
	tpl := insertTemplate(t, s, templates.Template{Name: "T", Category: "TEXTILE", Version: 3, Status: templates.StatusDraft, CreatedBy: "u"})

	require.NoError(t, s.WithTransaction(ctx, func(tx templates.Tx) error {
		b, err := tx.CreateBlock(ctx, &templates.Block{TemplateID: tpl.ID, Name: "B"})
		require.NoError(t, err)
		f, err := tx.CreateField(ctx, &templates.Field{TemplateID: tpl.ID, BlockID: b.ID, Label: "F", Key: "f", Type: templates.FieldText, IntroducedInVersion: 1})
		require.NoError(t, err)

		name, order := "Renamed", 5
		ub, err := tx.UpdateBlock(ctx, b.ID, templates.BlockPatch{Name: &name, Order: &order})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", ub.Name)
		assert.Equal(t, 5, ub.Order)

		key, version, required := "g", 3, true
		raw := json.RawMessage(`{"max":10}`)
		uf, err := tx.UpdateField(ctx, f.ID, templates.FieldPatch{Key: &key, IntroducedInVersion: &version, Required: &required, Config: &raw})
		require.NoError(t, err)
		assert.Equal(t, "g", uf.Key)
		assert.Equal(t, 3, uf.IntroducedInVersion)
		assert.True(t, uf.Required)
		assert.JSONEq(t, `{"max":10}`, string(uf.Config))

		require.NoError(t, tx.DeleteBlock(ctx, b.ID))
		gone, err := tx.FindField(ctx, f.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
		return nil
	}))
}
