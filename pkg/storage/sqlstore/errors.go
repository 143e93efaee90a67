package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

const (
	activeCategoryIndex = "ux_templates_active_category"
	successorIndex      = "ux_templates_successor"
)

// translate maps unique violations of the template indexes to the engine's
// sentinels. Everything else is returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case activeCategoryIndex:
			return fmt.Errorf("%s: %w", pqErr.Message, templates.ErrDuplicateActiveTemplate)
		case successorIndex:
			return fmt.Errorf("%s: %w", pqErr.Message, templates.ErrSuccessorConflict)
		}
		return err
	}

	// SQLite reports the columns, not the index name
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		msg := liteErr.Error()
		switch {
		case strings.Contains(msg, "templates.supersedes_template_id"):
			return fmt.Errorf("%s: %w", msg, templates.ErrSuccessorConflict)
		case strings.Contains(msg, "templates.category"):
			return fmt.Errorf("%s: %w", msg, templates.ErrDuplicateActiveTemplate)
		}
	}
	return err
}
