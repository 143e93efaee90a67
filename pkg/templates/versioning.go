package templates

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
)

// CreateSuccessorVersion creates draft version N+1 from the active version N
// of a category and returns its ID. Blocks and fields are deep-copied with new
// IDs and keep their IntroducedInVersion. The source stays active and
// unchanged until the successor is activated.
//
// Only one successor may exist per source template; a second attempt fails
// with SuccessorConflict whether it races the first or comes later. Other
// chains in the same category are unaffected.
func (s *Service) CreateSuccessorVersion(ctx context.Context, session rbac.Session, sourceID string) (_ string, err error) {
	const op = "CreateSuccessorVersion"
	ctx, done := s.start(ctx, op, string(EventCreateSuccessor), attribute.String("template.id", sourceID))
	defer func() { done(err) }()

	if err := s.authorize(ctx, session, rbac.ResourceTemplate, rbac.ActionCreateVersion, op); err != nil {
		return "", err
	}

	var source, successor *Template
	err = s.store.WithTransaction(ctx, func(tx Tx) error {
		src, err := loadTemplate(ctx, tx, op, sourceID, true)
		if err != nil {
			return err
		}
		if _, err := Next(src.Status, EventCreateSuccessor); err != nil {
			return withOp(err, op)
		}
		newStatus, err := Next(StatusNone, EventCreate)
		if err != nil {
			return withOp(err, op)
		}

		existing, err := tx.FindSuccessor(ctx, src.ID)
		if err != nil {
			return fmt.Errorf("failed to look up successor: %w", err)
		}
		if existing != nil {
			return &Error{
				Kind: KindSuccessorConflict,
				Op:   op,
				Message: fmt.Sprintf("template %s (version %d of category %s) already has a successor (%s, version %d, %s); edit that one instead",
					src.ID, src.Version, src.Category, existing.ID, existing.Version, existing.Status),
			}
		}

		supersedes, sourceID := src.Version, src.ID
		successor, err = tx.CreateTemplate(ctx, &Template{
			Name:                 src.Name,
			Category:             src.Category,
			CategoryLabel:        src.CategoryLabel,
			Industry:             src.Industry,
			Description:          src.Description,
			Version:              src.Version + 1,
			Status:               newStatus,
			SupersedesVersion:    &supersedes,
			SupersedesTemplateID: &sourceID,
			CreatedBy:            session.ActorID,
		})
		if err != nil {
			return fmt.Errorf("failed to create successor: %w", err)
		}

		if err := tx.CloneBlocksAndFields(ctx, src.ID, successor.ID, src.Version); err != nil {
			return fmt.Errorf("failed to copy blocks and fields: %w", err)
		}
		source = src
		return nil
	})
	if err != nil {
		return "", storeError(op, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"source_template_id": source.ID,
		"template_id":        successor.ID,
		"category":           successor.Category,
		"version":            successor.Version,
	}).Info("template version created")
	s.record(ctx, AuditTemplateVersioned, successor.ID, session,
		map[string]interface{}{"sourceTemplateId": source.ID, "version": source.Version},
		snapshot(successor))

	return successor.ID, nil
}
