package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
)

type preparedBlock struct {
	block  Block
	fields []Field
}

// prepareBlocks validates initial blocks before any write. Fields are stamped
// with version.
func (s *Service) prepareBlocks(op string, inputs []BlockInput, version int) ([]preparedBlock, error) {
	blocks := make([]preparedBlock, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, invalid(op, "block %d: block name is required", i+1)
		}
		order := i
		if in.Order != nil {
			order = *in.Order
		}

		pb := preparedBlock{block: Block{Name: name, Order: order}}
		for j, fin := range in.Fields {
			if fin.Order == nil {
				o := j
				fin.Order = &o
			}
			f, err := s.prepareField(op, fin, pb.fields, version)
			if err != nil {
				return nil, err
			}
			pb.fields = append(pb.fields, *f)
		}
		blocks = append(blocks, pb)
	}
	return blocks, nil
}

// prepareField validates a new field against its siblings and resolves the
// key, type and order
func (s *Service) prepareField(op string, in FieldInput, siblings []Field, version int) (*Field, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return nil, invalid(op, "field label is required")
	}
	if containsReservedTerm(label) {
		return nil, categoryFieldError(op, label)
	}

	key, err := s.resolveKey(op, in.Key, label)
	if err != nil {
		return nil, err
	}
	if err := uniqueKey(op, key, "", siblings); err != nil {
		return nil, err
	}

	fieldType := in.Type
	if fieldType == "" {
		fieldType = FieldText
	}
	if !fieldType.Valid() {
		return nil, invalid(op, "field %q has unknown type %q", label, fieldType)
	}
	if len(in.Config) > 0 && !json.Valid(in.Config) {
		return nil, invalid(op, "config of field %q must be valid JSON", label)
	}

	order := len(siblings)
	if in.Order != nil {
		order = *in.Order
	}

	return &Field{
		Label:               label,
		Key:                 key,
		Type:                fieldType,
		Required:            in.Required,
		RegulatoryRequired:  in.RegulatoryRequired,
		Repeatable:          in.Repeatable,
		Config:              in.Config,
		Order:               order,
		IntroducedInVersion: version,
	}, nil
}

// resolveKey uses the explicit key when given, otherwise derives one from
// the label
func (s *Service) resolveKey(op, explicit, label string) (string, error) {
	key := strings.TrimSpace(explicit)
	if key == "" {
		key = s.keys.Key(label)
		if key == "" {
			return "", invalid(op, "could not derive a key from label %q; provide a key explicitly", label)
		}
	}
	if containsReservedTerm(key) {
		return "", categoryFieldError(op, key)
	}
	if err := validateKey(key); err != nil {
		return "", invalid(op, "%s", err.Error())
	}
	return key, nil
}

func uniqueKey(op, key, selfID string, siblings []Field) error {
	for _, f := range siblings {
		if f.ID != "" && f.ID == selfID {
			continue
		}
		if strings.EqualFold(f.Key, key) {
			return invalid(op, "key %q is already used by field %q in this block; choose a different key", key, f.Label)
		}
	}
	return nil
}

func categoryFieldError(op, value string) error {
	return invalid(op, "%q refers to the category; the category is a property of the template and cannot be a field", value)
}

// editableTemplate loads a template under lock and rejects anything but a draft
func editableTemplate(ctx context.Context, tx Tx, op, id string) (*Template, error) {
	t, err := loadTemplate(ctx, tx, op, id, true)
	if err != nil {
		return nil, err
	}
	if _, err := Next(t.Status, EventEdit); err != nil {
		return nil, withOp(err, op)
	}
	return t, nil
}

func blockOf(ctx context.Context, tx Tx, op, templateID, blockID string) (*Block, error) {
	b, err := tx.FindBlock(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load block: %w", err)
	}
	if b == nil || b.TemplateID != templateID {
		return nil, &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("block %s does not exist in template %s", blockID, templateID)}
	}
	return b, nil
}

func fieldOf(ctx context.Context, tx Tx, op, templateID, fieldID string) (*Field, error) {
	f, err := tx.FindField(ctx, fieldID)
	if err != nil {
		return nil, fmt.Errorf("failed to load field: %w", err)
	}
	if f == nil || f.TemplateID != templateID {
		return nil, &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("field %s does not exist in template %s", fieldID, templateID)}
	}
	return f, nil
}

// blockFields returns the current fields of one block
func blockFields(ctx context.Context, tx Tx, templateID, blockID string) ([]Field, error) {
	blocks, err := tx.ListBlocksWithFields(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	for _, b := range blocks {
		if b.ID == blockID {
			return b.Fields, nil
		}
	}
	return nil, nil
}

// AddBlock appends a block, optionally with fields, to a draft
func (s *Service) AddBlock(ctx context.Context, session rbac.Session, templateID string, in BlockInput) (_ *Block, err error) {
	const op = "AddBlock"
	ctx, done := s.start(ctx, op, string(EventEdit), attribute.String("template.id", templateID))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplateField, rbac.ActionCreate, op); err != nil {
		return nil, err
	}

	var created *Block
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		t, err := editableTemplate(ctx, tx, op, templateID)
		if err != nil {
			return err
		}
		existing, err := tx.ListBlocksWithFields(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to load blocks: %w", err)
		}
		if in.Order == nil {
			order := len(existing)
			in.Order = &order
		}
		prepared, err := s.prepareBlocks(op, []BlockInput{in}, t.Version)
		if err != nil {
			return err
		}

		pb := prepared[0]
		pb.block.TemplateID = t.ID
		b, err := tx.CreateBlock(ctx, &pb.block)
		if err != nil {
			return fmt.Errorf("failed to create block: %w", err)
		}
		for i := range pb.fields {
			f := pb.fields[i]
			f.TemplateID = t.ID
			f.BlockID = b.ID
			cf, err := tx.CreateField(ctx, &f)
			if err != nil {
				return fmt.Errorf("failed to create field: %w", err)
			}
			b.Fields = append(b.Fields, *cf)
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.record(ctx, AuditBlockAdded, created.ID, session, nil, *created)
	return created, nil
}

// UpdateBlock renames or reorders a block of a draft
func (s *Service) UpdateBlock(ctx context.Context, session rbac.Session, templateID, blockID string, req UpdateBlockRequest) (_ *Block, err error) {
	const op = "UpdateBlock"
	ctx, done := s.start(ctx, op, string(EventEdit), attribute.String("template.id", templateID))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplateField, rbac.ActionUpdate, op); err != nil {
		return nil, err
	}

	var before, after *Block
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		if _, err := editableTemplate(ctx, tx, op, templateID); err != nil {
			return err
		}
		b, err := blockOf(ctx, tx, op, templateID, blockID)
		if err != nil {
			return err
		}

		var patch BlockPatch
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return invalid(op, "block name must not be empty")
			}
			patch.Name = &name
		}
		patch.Order = req.Order

		before = b
		after, err = tx.UpdateBlock(ctx, blockID, patch)
		if err != nil {
			return fmt.Errorf("failed to update block: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.record(ctx, AuditBlockUpdated, blockID, session, *before, *after)
	return after, nil
}

// DeleteBlock removes a block and its fields from a draft
func (s *Service) DeleteBlock(ctx context.Context, session rbac.Session, templateID, blockID string) (err error) {
	const op = "DeleteBlock"
	ctx, done := s.start(ctx, op, string(EventEdit), attribute.String("template.id", templateID))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplateField, rbac.ActionDelete, op); err != nil {
		return err
	}

	var deleted *Block
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		if _, err := editableTemplate(ctx, tx, op, templateID); err != nil {
			return err
		}
		b, err := blockOf(ctx, tx, op, templateID, blockID)
		if err != nil {
			return err
		}
		if b.Fields, err = blockFields(ctx, tx, templateID, blockID); err != nil {
			return err
		}
		deleted = b
		if err := tx.DeleteBlock(ctx, blockID); err != nil {
			return fmt.Errorf("failed to delete block: %w", err)
		}
		return nil
	})
	if err != nil {
		return storeError(op, err)
	}

	s.record(ctx, AuditBlockDeleted, blockID, session, *deleted, nil)
	return nil
}

// AddField adds a field to a block of a draft. The field is stamped with
// the template's version.
func (s *Service) AddField(ctx context.Context, session rbac.Session, templateID, blockID string, in FieldInput) (_ *Field, err error) {
	const op = "AddField"
	ctx, done := s.start(ctx, op, string(EventEdit), attribute.String("template.id", templateID))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplateField, rbac.ActionCreate, op); err != nil {
		return nil, err
	}

	var created *Field
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		t, err := editableTemplate(ctx, tx, op, templateID)
		if err != nil {
			return err
		}
		if _, err := blockOf(ctx, tx, op, templateID, blockID); err != nil {
			return err
		}
		siblings, err := blockFields(ctx, tx, templateID, blockID)
		if err != nil {
			return err
		}

		f, err := s.prepareField(op, in, siblings, t.Version)
		if err != nil {
			return err
		}
		f.TemplateID = templateID
		f.BlockID = blockID
		created, err = tx.CreateField(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to create field: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.record(ctx, AuditFieldAdded, created.ID, session, nil, *created)
	return created, nil
}

// UpdateField edits a field of a draft. Changing the key restamps the field
// with the template's version; other edits keep its provenance.
func (s *Service) UpdateField(ctx context.Context, session rbac.Session, templateID, fieldID string, req UpdateFieldRequest) (_ *Field, err error) {
	const op = "UpdateField"
	ctx, done := s.start(ctx, op, string(EventEdit), attribute.String("template.id", templateID))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplateField, rbac.ActionUpdate, op); err != nil {
		return nil, err
	}

	var before, after *Field
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		t, err := editableTemplate(ctx, tx, op, templateID)
		if err != nil {
			return err
		}
		f, err := fieldOf(ctx, tx, op, templateID, fieldID)
		if err != nil {
			return err
		}

		patch, err := s.fieldPatch(ctx, tx, op, t, f, req)
		if err != nil {
			return err
		}

		before = f
		after, err = tx.UpdateField(ctx, fieldID, patch)
		if err != nil {
			return fmt.Errorf("failed to update field: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.record(ctx, AuditFieldUpdated, fieldID, session, *before, *after)
	return after, nil
}

func (s *Service) fieldPatch(ctx context.Context, tx Tx, op string, t *Template, f *Field, req UpdateFieldRequest) (FieldPatch, error) {
	patch := FieldPatch{
		Required:           req.Required,
		RegulatoryRequired: req.RegulatoryRequired,
		Repeatable:         req.Repeatable,
		Order:              req.Order,
	}

	label := f.Label
	if req.Label != nil {
		label = strings.TrimSpace(*req.Label)
		if label == "" {
			return patch, invalid(op, "field label must not be empty")
		}
		if containsReservedTerm(label) {
			return patch, categoryFieldError(op, label)
		}
		patch.Label = &label
	}

	if req.Key != nil {
		key, err := s.resolveKey(op, *req.Key, label)
		if err != nil {
			return patch, err
		}
		if key != f.Key {
			siblings, err := blockFields(ctx, tx, t.ID, f.BlockID)
			if err != nil {
				return patch, err
			}
			if err := uniqueKey(op, key, f.ID, siblings); err != nil {
				return patch, err
			}
			version := t.Version
			patch.Key = &key
			patch.IntroducedInVersion = &version
		}
	}

	if req.Type != nil {
		if !req.Type.Valid() {
			return patch, invalid(op, "field %q has unknown type %q", label, *req.Type)
		}
		patch.Type = req.Type
	}
	if req.Config != nil {
		if len(*req.Config) > 0 && !json.Valid(*req.Config) {
			return patch, invalid(op, "config of field %q must be valid JSON", label)
		}
		patch.Config = req.Config
	}
	return patch, nil
}

// DeleteField removes a field from a draft
func (s *Service) DeleteField(ctx context.Context, session rbac.Session, templateID, fieldID string) (err error) {
	const op = "DeleteField"
	ctx, done := s.start(ctx, op, string(EventEdit), attribute.String("template.id", templateID))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplateField, rbac.ActionDelete, op); err != nil {
		return err
	}

	var deleted *Field
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		if _, err := editableTemplate(ctx, tx, op, templateID); err != nil {
			return err
		}
		f, err := fieldOf(ctx, tx, op, templateID, fieldID)
		if err != nil {
			return err
		}
		deleted = f
		if err := tx.DeleteField(ctx, fieldID); err != nil {
			return fmt.Errorf("failed to delete field: %w", err)
		}
		return nil
	})
	if err != nil {
		return storeError(op, err)
	}

	s.record(ctx, AuditFieldDeleted, fieldID, session, *deleted, nil)
	return nil
}
