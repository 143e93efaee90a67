package templates

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
)

// CreateTemplate creates version 1 of a template as a draft, including any
// initial blocks and fields. The category is fixed from here on.
func (s *Service) CreateTemplate(ctx context.Context, session rbac.Session, req CreateTemplateRequest) (_ *Template, err error) {
	const op = "CreateTemplate"
	ctx, done := s.start(ctx, op, string(EventCreate), attribute.String("template.category", req.Category))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionCreate, op); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid(op, "template name is required")
	}
	category := NormalizeCategory(req.Category)
	if category == "" {
		return nil, invalid(op, "category is required; it is fixed once the template is created")
	}
	if !validCategory(category) {
		return nil, invalid(op, "category %q must be an upper-case key such as %s", req.Category, CategoryTextile)
	}
	label := strings.TrimSpace(req.CategoryLabel)
	if label == "" {
		label = DefaultCategoryLabel(category)
	}

	status, err := Next(StatusNone, EventCreate)
	if err != nil {
		return nil, withOp(err, op)
	}

	blocks, err := s.prepareBlocks(op, req.Blocks, 1)
	if err != nil {
		return nil, err
	}

	var created *Template
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		t, err := tx.CreateTemplate(ctx, &Template{
			Name:          name,
			Category:      category,
			CategoryLabel: label,
			Industry:      strings.TrimSpace(req.Industry),
			Description:   strings.TrimSpace(req.Description),
			Version:       1,
			Status:        status,
			CreatedBy:     session.ActorID,
		})
		if err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}

		for _, pb := range blocks {
			pb.block.TemplateID = t.ID
			b, err := tx.CreateBlock(ctx, &pb.block)
			if err != nil {
				return fmt.Errorf("failed to create block: %w", err)
			}
			for i := range pb.fields {
				f := pb.fields[i]
				f.TemplateID = t.ID
				f.BlockID = b.ID
				if _, err := tx.CreateField(ctx, &f); err != nil {
					return fmt.Errorf("failed to create field: %w", err)
				}
			}
		}

		created, err = withBlocks(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"template_id": created.ID,
		"category":    created.Category,
		"actor_id":    session.ActorID,
	}).Info("template created")
	s.record(ctx, AuditTemplateCreated, created.ID, session, nil, snapshot(created))

	return created, nil
}

// GetTemplate returns a template with its blocks and fields
func (s *Service) GetTemplate(ctx context.Context, session rbac.Session, id string) (_ *Template, err error) {
	const op = "GetTemplate"
	ctx, done := s.start(ctx, op, "read", attribute.String("template.id", id))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionRead, op); err != nil {
		return nil, err
	}

	var result *Template
	err = s.store.View(ctx, func(tx Tx) error {
		t, err := loadTemplate(ctx, tx, op, id, false)
		if err != nil {
			return err
		}
		result, err = withBlocks(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return result, nil
}

// ListTemplates returns templates without blocks, newest version first
func (s *Service) ListTemplates(ctx context.Context, session rbac.Session, filter ListFilter) (_ []*Template, err error) {
	const op = "ListTemplates"
	ctx, done := s.start(ctx, op, "read")
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionRead, op); err != nil {
		return nil, err
	}
	if filter.Status != StatusNone && !filter.Status.Valid() {
		return nil, invalid(op, "unknown status %q; use draft, active or archived", filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, invalid(op, "limit and offset must not be negative")
	}
	filter.Category = NormalizeCategory(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)

	var result []*Template
	err = s.store.View(ctx, func(tx Tx) error {
		var err error
		result, err = tx.ListTemplates(ctx, filter)
		return err
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return result, nil
}

// ActiveTemplateForCategory returns the active template of a category
func (s *Service) ActiveTemplateForCategory(ctx context.Context, session rbac.Session, category string) (_ *Template, err error) {
	const op = "ActiveTemplateForCategory"
	ctx, done := s.start(ctx, op, "read", attribute.String("template.category", category))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionRead, op); err != nil {
		return nil, err
	}
	category = NormalizeCategory(category)

	var result *Template
	err = s.store.View(ctx, func(tx Tx) error {
		t, err := tx.FindActiveTemplateInCategory(ctx, category, false)
		if err != nil {
			return fmt.Errorf("failed to load active template: %w", err)
		}
		if t == nil {
			return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("no active template exists for category %s", category)}
		}
		result, err = withBlocks(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	return result, nil
}

// UpdateTemplate edits the metadata of a draft. The category can never
// change; sending a different one is rejected before the draft check.
func (s *Service) UpdateTemplate(ctx context.Context, session rbac.Session, id string, req UpdateTemplateRequest) (_ *Template, err error) {
	const op = "UpdateTemplate"
	ctx, done := s.start(ctx, op, string(EventEdit), attribute.String("template.id", id))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionUpdate, op); err != nil {
		return nil, err
	}

	var before, after *Template
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		t, err := loadTemplate(ctx, tx, op, id, true)
		if err != nil {
			return err
		}

		if req.Category != nil {
			if requested := NormalizeCategory(*req.Category); requested != t.Category {
				return &Error{
					Kind: KindCategoryLocked,
					Op:   op,
					Message: fmt.Sprintf("category is fixed at creation and cannot change from %s to %s; create a new template in %s instead",
						t.Category, requested, requested),
				}
			}
		}
		if _, err := Next(t.Status, EventEdit); err != nil {
			return withOp(err, op)
		}

		var patch TemplatePatch
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return invalid(op, "template name must not be empty")
			}
			patch.Name = &name
		}
		if req.Description != nil {
			desc := strings.TrimSpace(*req.Description)
			patch.Description = &desc
		}
		if req.CategoryLabel != nil {
			label := strings.TrimSpace(*req.CategoryLabel)
			if label == "" {
				label = DefaultCategoryLabel(t.Category)
			}
			patch.CategoryLabel = &label
		}
		if req.Industry != nil {
			industry := strings.TrimSpace(*req.Industry)
			patch.Industry = &industry
		}

		before = snapshot(t)
		updated, err := tx.UpdateTemplate(ctx, id, patch)
		if err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}
		after, err = withBlocks(ctx, tx, updated)
		return err
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.record(ctx, AuditTemplateUpdated, id, session, before, snapshot(after))
	return after, nil
}

// ActivateTemplate makes a draft the active template of its category. When
// the draft was created from the currently active template, that template is
// archived in the same transaction; any other active template, including one
// from an unrelated chain with the same version number, blocks activation.
func (s *Service) ActivateTemplate(ctx context.Context, session rbac.Session, id string) (_ *Template, err error) {
	const op = "ActivateTemplate"
	ctx, done := s.start(ctx, op, string(EventActivate), attribute.String("template.id", id))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionPublish, op); err != nil {
		return nil, err
	}

	var activated, archived *Template
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		t, err := loadTemplate(ctx, tx, op, id, true)
		if err != nil {
			return err
		}
		to, err := Next(t.Status, EventActivate)
		if err != nil {
			return withOp(err, op)
		}
		if strings.TrimSpace(t.Name) == "" {
			return invalid(op, "template needs a name before it can be activated")
		}

		current, err := tx.FindActiveTemplateInCategory(ctx, t.Category, true)
		if err != nil {
			return fmt.Errorf("failed to load active template: %w", err)
		}
		if current != nil {
			if t.SupersedesTemplateID == nil || *t.SupersedesTemplateID != current.ID {
				return &Error{
					Kind: KindDuplicateActiveTemplate,
					Op:   op,
					Message: fmt.Sprintf("version %d is already active in category %s; archive it first or activate a new version created from it",
						current.Version, t.Category),
				}
			}
			archivedStatus, err := Next(current.Status, EventArchive)
			if err != nil {
				return withOp(err, op)
			}
			archived, err = tx.UpdateTemplate(ctx, current.ID, TemplatePatch{Status: &archivedStatus})
			if err != nil {
				return fmt.Errorf("failed to archive version %d: %w", current.Version, err)
			}
		}

		now := s.now().UTC()
		updated, err := tx.UpdateTemplate(ctx, id, TemplatePatch{Status: &to, EffectiveFrom: &now})
		if err != nil {
			return fmt.Errorf("failed to activate template: %w", err)
		}
		activated, err = withBlocks(ctx, tx, updated)
		return err
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"template_id": activated.ID,
		"category":    activated.Category,
		"version":     activated.Version,
	})
	if archived != nil {
		logger = logger.WithField("archived_template_id", archived.ID)
		s.record(ctx, AuditTemplateStatusChanged, archived.ID, session,
			map[string]interface{}{"status": StatusActive},
			map[string]interface{}{"status": archived.Status, "supersededBy": activated.ID})
	}
	logger.Info("template activated")
	s.record(ctx, AuditTemplateStatusChanged, activated.ID, session,
		map[string]interface{}{"status": StatusDraft},
		map[string]interface{}{"status": activated.Status, "effectiveFrom": activated.EffectiveFrom})

	return activated, nil
}

// ArchiveTemplate retires the active template of a category without a
// successor. Archived templates are never reactivated.
func (s *Service) ArchiveTemplate(ctx context.Context, session rbac.Session, id string) (_ *Template, err error) {
	const op = "ArchiveTemplate"
	ctx, done := s.start(ctx, op, string(EventArchive), attribute.String("template.id", id))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionArchive, op); err != nil {
		return nil, err
	}

	var archived *Template
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		t, err := loadTemplate(ctx, tx, op, id, true)
		if err != nil {
			return err
		}
		to, err := Next(t.Status, EventArchive)
		if err != nil {
			return withOp(err, op)
		}
		updated, err := tx.UpdateTemplate(ctx, id, TemplatePatch{Status: &to})
		if err != nil {
			return fmt.Errorf("failed to archive template: %w", err)
		}
		archived, err = withBlocks(ctx, tx, updated)
		return err
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	s.record(ctx, AuditTemplateStatusChanged, id, session,
		map[string]interface{}{"status": StatusActive},
		map[string]interface{}{"status": archived.Status})
	return archived, nil
}

// DeleteTemplate removes a draft together with its blocks and fields
func (s *Service) DeleteTemplate(ctx context.Context, session rbac.Session, id string) (err error) {
	const op = "DeleteTemplate"
	ctx, done := s.start(ctx, op, string(EventDelete), attribute.String("template.id", id))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionDelete, op); err != nil {
		return err
	}

	var deleted *Template
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		t, err := loadTemplate(ctx, tx, op, id, true)
		if err != nil {
			return err
		}
		if _, err := Next(t.Status, EventDelete); err != nil {
			return withOp(err, op)
		}
		if deleted, err = withBlocks(ctx, tx, t); err != nil {
			return err
		}
		if err := tx.DeleteTemplate(ctx, id); err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		return nil
	})
	if err != nil {
		return storeError(op, err)
	}

	s.record(ctx, AuditTemplateDeleted, id, session, snapshot(deleted), nil)
	return nil
}
