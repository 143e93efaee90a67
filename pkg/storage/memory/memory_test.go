package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

func intPtr(i int) *int { return &i }

func createTemplate(t *testing.T, s *Store, tpl templates.Template) *templates.Template {
	t.Helper()
	var created *templates.Template
	err := s.WithTransaction(context.Background(), func(tx templates.Tx) error {
		var err error
		created, err = tx.CreateTemplate(context.Background(), &tpl)
		return err
	})
	require.NoError(t, err)
	return created
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTransaction(ctx, func(tx templates.Tx) error {
		_, err := tx.CreateTemplate(ctx, &templates.Template{Name: "T", Category: "TEXTILE", Version: 1, Status: templates.StatusDraft})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.View(ctx, func(tx templates.Tx) error {
		list, err := tx.ListTemplates(ctx, templates.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, list)
		return nil
	})
	require.NoError(t, err)
}

func TestView_IsReadOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.View(ctx, func(tx templates.Tx) error {
		_, err := tx.CreateTemplate(ctx, &templates.Template{Name: "T", Category: "TEXTILE"})
		return err
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestUniqueActivePerCategory(t *testing.T) {
	s := New()
	ctx := context.Background()
	createTemplate(t, s, templates.Template{Name: "A", Category: "TEXTILE", Version: 1, Status: templates.StatusActive})
	draft := createTemplate(t, s, templates.Template{Name: "B", Category: "TEXTILE", Version: 1, Status: templates.StatusDraft})

	active := templates.StatusActive
	err := s.WithTransaction(ctx, func(tx templates.Tx) error {
		_, err := tx.UpdateTemplate(ctx, draft.ID, templates.TemplatePatch{Status: &active})
		return err
	})
	assert.ErrorIs(t, err, templates.ErrDuplicateActiveTemplate)

	// other categories are unaffected
	createTemplate(t, s, templates.Template{Name: "C", Category: "FURNITURE", Version: 1, Status: templates.StatusActive})
}

func TestUniqueSuccessor(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := createTemplate(t, s, templates.Template{Name: "A", Category: "TEXTILE", Version: 1, Status: templates.StatusArchived})
	b := createTemplate(t, s, templates.Template{Name: "B", Category: "TEXTILE", Version: 1, Status: templates.StatusActive})
	a2 := createTemplate(t, s, templates.Template{Name: "A v2", Category: "TEXTILE", Version: 2, Status: templates.StatusDraft, SupersedesVersion: intPtr(1), SupersedesTemplateID: &a.ID})

	err := s.WithTransaction(ctx, func(tx templates.Tx) error {
		_, err := tx.CreateTemplate(ctx, &templates.Template{Name: "A v2b", Category: "TEXTILE", Version: 2, Status: templates.StatusDraft, SupersedesVersion: intPtr(1), SupersedesTemplateID: &a.ID})
		return err
	})
	assert.ErrorIs(t, err, templates.ErrSuccessorConflict)

	// a second chain in the same category has its own version 2
	b2 := createTemplate(t, s, templates.Template{Name: "B v2", Category: "TEXTILE", Version: 2, Status: templates.StatusDraft, SupersedesVersion: intPtr(1), SupersedesTemplateID: &b.ID})

	require.NoError(t, s.View(ctx, func(tx templates.Tx) error {
		found, err := tx.FindSuccessor(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, a2.ID, found.ID)

		found, err = tx.FindSuccessor(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, b2.ID, found.ID)

		found, err = tx.FindSuccessor(ctx, b2.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
		return nil
	}))
}

func TestDeleteTemplate_Cascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	tpl := createTemplate(t, s, templates.Template{Name: "T", Category: "TEXTILE", Version: 1, Status: templates.StatusDraft})

	var blockID, fieldID string
	require.NoError(t, s.WithTransaction(ctx, func(tx templates.Tx) error {
		b, err := tx.CreateBlock(ctx, &templates.Block{TemplateID: tpl.ID, Name: "Basics"})
		require.NoError(t, err)
		f, err := tx.CreateField(ctx, &templates.Field{TemplateID: tpl.ID, BlockID: b.ID, Label: "Name", Key: "name", Type: templates.FieldText})
		require.NoError(t, err)
		blockID, fieldID = b.ID, f.ID
		return tx.DeleteTemplate(ctx, tpl.ID)
	}))

	require.NoError(t, s.View(ctx, func(tx templates.Tx) error {
		b, err := tx.FindBlock(ctx, blockID)
		require.NoError(t, err)
		assert.Nil(t, b)
		f, err := tx.FindField(ctx, fieldID)
		require.NoError(t, err)
		assert.Nil(t, f)
		return nil
	}))
}

func TestCloneBlocksAndFields_KeepsProvenance(t *testing.T) {
	s := New()
	ctx := context.Background()
	src := createTemplate(t, s, templates.Template{Name: "v3", Category: "TEXTILE", Version: 3, Status: templates.StatusActive})
	dst := createTemplate(t, s, templates.Template{Name: "v4", Category: "TEXTILE", Version: 4, Status: templates.StatusDraft, SupersedesVersion: intPtr(3)})

	require.NoError(t, s.WithTransaction(ctx, func(tx templates.Tx) error {
		b, err := tx.CreateBlock(ctx, &templates.Block{TemplateID: src.ID, Name: "Materials", Order: 1})
		require.NoError(t, err)
		_, err = tx.CreateField(ctx, &templates.Field{TemplateID: src.ID, BlockID: b.ID, Label: "Fibre", Key: "fibre", Type: templates.FieldText, IntroducedInVersion: 1})
		require.NoError(t, err)
		_, err = tx.CreateField(ctx, &templates.Field{TemplateID: src.ID, BlockID: b.ID, Label: "Legacy", Key: "legacy", Type: templates.FieldText, Order: 1})
		require.NoError(t, err)
		return tx.CloneBlocksAndFields(ctx, src.ID, dst.ID, src.Version)
	}))

	require.NoError(t, s.View(ctx, func(tx templates.Tx) error {
		srcBlocks, err := tx.ListBlocksWithFields(ctx, src.ID)
		require.NoError(t, err)
		dstBlocks, err := tx.ListBlocksWithFields(ctx, dst.ID)
		require.NoError(t, err)

		require.Len(t, dstBlocks, 1)
		require.Len(t, dstBlocks[0].Fields, 2)
		assert.NotEqual(t, srcBlocks[0].ID, dstBlocks[0].ID)
		assert.Equal(t, "Materials", dstBlocks[0].Name)
		assert.Equal(t, 1, dstBlocks[0].Fields[0].IntroducedInVersion)
		assert.Equal(t, 3, dstBlocks[0].Fields[1].IntroducedInVersion)
		assert.Equal(t, dst.ID, dstBlocks[0].Fields[0].TemplateID)
		assert.Equal(t, 0, srcBlocks[0].Fields[1].IntroducedInVersion)
		return nil
	}))
}

func TestListTemplates_FilterAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	createTemplate(t, s, templates.Template{Name: "Textile v1", Category: "TEXTILE", Version: 1, Status: templates.StatusArchived})
	createTemplate(t, s, templates.Template{Name: "Textile v2", Category: "TEXTILE", Version: 2, Status: templates.StatusActive, SupersedesVersion: intPtr(1)})
	createTemplate(t, s, templates.Template{Name: "Sofa", Category: "FURNITURE", Version: 1, Status: templates.StatusDraft})

	require.NoError(t, s.View(ctx, func(tx templates.Tx) error {
		all, err := tx.ListTemplates(ctx, templates.ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "FURNITURE", all[0].Category)
		assert.Equal(t, 2, all[1].Version)

		textile, err := tx.ListTemplates(ctx, templates.ListFilter{Category: "TEXTILE", Search: "V1"})
		require.NoError(t, err)
		require.Len(t, textile, 1)
		assert.Equal(t, 1, textile[0].Version)

		paged, err := tx.ListTemplates(ctx, templates.ListFilter{Offset: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, 2, paged[0].Version)

		counts, err := tx.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[templates.StatusDraft])
		assert.Equal(t, 1, counts[templates.StatusActive])
		assert.Equal(t, 1, counts[templates.StatusArchived])
		return nil
	}))
}
