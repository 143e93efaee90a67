package templates

import "context"

// Store is the transactional persistence boundary of the engine.
//
// WithTransaction runs fn atomically: either every write made through tx is
// committed or none is. View runs fn against a consistent read-only snapshot.
// Implementations must enforce two uniqueness rules themselves, independent of
// the engine's own checks, and report violations wrapped around the matching
// sentinel:
//
//   - at most one template with status active per category
//     (ErrDuplicateActiveTemplate)
//   - at most one successor per source template, i.e. per
//     SupersedesTemplateID (ErrSuccessorConflict)
type Store interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of record operations available inside a transaction. Find
// methods return (nil, nil) when nothing matches.
type Tx interface {
	// FindTemplate loads a template without blocks. forUpdate takes a row
	// write lock where the backend supports it.
	FindTemplate(ctx context.Context, id string, forUpdate bool) (*Template, error)
	FindActiveTemplateInCategory(ctx context.Context, category string, forUpdate bool) (*Template, error)
	// FindSuccessor returns the template created from sourceID, whatever its
	// status
	FindSuccessor(ctx context.Context, sourceID string) (*Template, error)
	ListTemplates(ctx context.Context, filter ListFilter) ([]*Template, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// CreateTemplate inserts the template row only; ID and timestamps are
	// assigned by the store when empty.
	CreateTemplate(ctx context.Context, t *Template) (*Template, error)
	UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (*Template, error)
	// DeleteTemplate removes the template together with its blocks and fields
	DeleteTemplate(ctx context.Context, id string) error

	// ListBlocksWithFields returns blocks and their fields ordered by Order
	ListBlocksWithFields(ctx context.Context, templateID string) ([]Block, error)
	// CloneBlocksAndFields copies every block and field of source into target
	// with fresh IDs. Fields keep IntroducedInVersion; versionStamp is only
	// written to fields that have no recorded provenance.
	CloneBlocksAndFields(ctx context.Context, sourceTemplateID, targetTemplateID string, versionStamp int) error

	FindBlock(ctx context.Context, id string) (*Block, error)
	CreateBlock(ctx context.Context, b *Block) (*Block, error)
	UpdateBlock(ctx context.Context, id string, patch BlockPatch) (*Block, error)
	// DeleteBlock removes the block and its fields
	DeleteBlock(ctx context.Context, id string) error

	FindField(ctx context.Context, id string) (*Field, error)
	CreateField(ctx context.Context, f *Field) (*Field, error)
	UpdateField(ctx context.Context, id string, patch FieldPatch) (*Field, error)
	DeleteField(ctx context.Context, id string) error
}
