// Package memory provides an in-process templates.Store.
//
// Transactions are serialized by a single writer lock and run against a
// private copy of the state that replaces the committed state only when the
// transaction function returns nil. The same uniqueness rules as the SQL
// store are enforced on every write.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

var errReadOnly = errors.New("write attempted in a read-only transaction")

type row[T any] struct {
	val T
	seq uint64
}

type state struct {
	templates map[string]row[templates.Template]
	blocks    map[string]row[templates.Block]
	fields    map[string]row[templates.Field]
	seq       uint64
}

func newState() *state {
	return &state{
		templates: make(map[string]row[templates.Template]),
		blocks:    make(map[string]row[templates.Block]),
		fields:    make(map[string]row[templates.Field]),
	}
}

func (s *state) clone() *state {
	cp := &state{
		templates: make(map[string]row[templates.Template], len(s.templates)),
		blocks:    make(map[string]row[templates.Block], len(s.blocks)),
		fields:    make(map[string]row[templates.Field], len(s.fields)),
		seq:       s.seq,
	}
	for id, r := range s.templates {
		cp.templates[id] = r
	}
	for id, r := range s.blocks {
		cp.blocks[id] = r
	}
	for id, r := range s.fields {
		cp.fields[id] = r
	}
	return cp
}

func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

// Store is a templates.Store kept in memory
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now for created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{state: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTransaction implements templates.Store
func (s *Store) WithTransaction(ctx context.Context, fn func(tx templates.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// View implements templates.Store
func (s *Store) View(ctx context.Context, fn func(tx templates.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&tx{st: s.state, now: s.now, readOnly: true})
}

type tx struct {
	st       *state
	now      func() time.Time
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func copyTemplate(in templates.Template) *templates.Template {
	out := in
	out.Blocks = nil
	if in.EffectiveFrom != nil {
		ef := *in.EffectiveFrom
		out.EffectiveFrom = &ef
	}
	if in.SupersedesVersion != nil {
		sv := *in.SupersedesVersion
		out.SupersedesVersion = &sv
	}
	if in.SupersedesTemplateID != nil {
		src := *in.SupersedesTemplateID
		out.SupersedesTemplateID = &src
	}
	return &out
}

func copyField(in templates.Field) templates.Field {
	out := in
	if in.Config != nil {
		out.Config = append([]byte(nil), in.Config...)
	}
	return out
}

func (t *tx) FindTemplate(ctx context.Context, id string, forUpdate bool) (*templates.Template, error) {
	r, ok := t.st.templates[id]
	if !ok {
		return nil, nil
	}
	return copyTemplate(r.val), nil
}

func (t *tx) FindActiveTemplateInCategory(ctx context.Context, category string, forUpdate bool) (*templates.Template, error) {
	for _, r := range t.st.templates {
		if r.val.Category == category && r.val.Status == templates.StatusActive {
			return copyTemplate(r.val), nil
		}
	}
	return nil, nil
}

func (t *tx) FindSuccessor(ctx context.Context, sourceID string) (*templates.Template, error) {
	for _, r := range t.st.templates {
		if src := r.val.SupersedesTemplateID; src != nil && *src == sourceID {
			return copyTemplate(r.val), nil
		}
	}
	return nil, nil
}

func (t *tx) ListTemplates(ctx context.Context, filter templates.ListFilter) ([]*templates.Template, error) {
	search := strings.ToLower(filter.Search)
	var result []*templates.Template
	for _, r := range t.st.templates {
		if filter.Category != "" && r.val.Category != filter.Category {
			continue
		}
		if filter.Status != templates.StatusNone && r.val.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.val.Name), search) {
			continue
		}
		result = append(result, copyTemplate(r.val))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Version > result[j].Version
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*templates.Template{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (t *tx) CountByStatus(ctx context.Context) (map[templates.Status]int, error) {
	counts := make(map[templates.Status]int)
	for _, r := range t.st.templates {
		counts[r.val.Status]++
	}
	return counts, nil
}

// checkUnique enforces the active-per-category and one-successor-per-source
// rules for candidate as if it were stored
func (t *tx) checkUnique(candidate templates.Template) error {
	for id, r := range t.st.templates {
		if id == candidate.ID {
			continue
		}
		if candidate.Status == templates.StatusActive && r.val.Status == templates.StatusActive &&
			r.val.Category == candidate.Category {
			return fmt.Errorf("category %s already has active template %s: %w",
				candidate.Category, id, templates.ErrDuplicateActiveTemplate)
		}
		if candidate.SupersedesTemplateID != nil && r.val.SupersedesTemplateID != nil &&
			*candidate.SupersedesTemplateID == *r.val.SupersedesTemplateID {
			return fmt.Errorf("template %s already has successor %s: %w",
				*candidate.SupersedesTemplateID, id, templates.ErrSuccessorConflict)
		}
	}
	return nil
}

func (t *tx) CreateTemplate(ctx context.Context, in *templates.Template) (*templates.Template, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	tpl := *copyTemplate(*in)
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	if _, exists := t.st.templates[tpl.ID]; exists {
		return nil, fmt.Errorf("template %s already exists", tpl.ID)
	}
	now := t.now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now

	if err := t.checkUnique(tpl); err != nil {
		return nil, err
	}
	t.st.templates[tpl.ID] = row[templates.Template]{val: tpl, seq: t.st.next()}
	return copyTemplate(tpl), nil
}

func (t *tx) UpdateTemplate(ctx context.Context, id string, patch templates.TemplatePatch) (*templates.Template, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	r, ok := t.st.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s not found", id)
	}

	tpl := *copyTemplate(r.val)
	if patch.Name != nil {
		tpl.Name = *patch.Name
	}
	if patch.Description != nil {
		tpl.Description = *patch.Description
	}
	if patch.CategoryLabel != nil {
		tpl.CategoryLabel = *patch.CategoryLabel
	}
	if patch.Industry != nil {
		tpl.Industry = *patch.Industry
	}
	if patch.Status != nil {
		tpl.Status = *patch.Status
	}
	if patch.EffectiveFrom != nil {
		ef := *patch.EffectiveFrom
		tpl.EffectiveFrom = &ef
	}
	tpl.UpdatedAt = t.now().UTC()

	if err := t.checkUnique(tpl); err != nil {
		return nil, err
	}
	r.val = tpl
	t.st.templates[id] = r
	return copyTemplate(tpl), nil
}

func (t *tx) DeleteTemplate(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.templates[id]; !ok {
		return fmt.Errorf("template %s not found", id)
	}
	for fid, r := range t.st.fields {
		if r.val.TemplateID == id {
			delete(t.st.fields, fid)
		}
	}
	for bid, r := range t.st.blocks {
		if r.val.TemplateID == id {
			delete(t.st.blocks, bid)
		}
	}
	delete(t.st.templates, id)
	return nil
}

func (t *tx) ListBlocksWithFields(ctx context.Context, templateID string) ([]templates.Block, error) {
	var blockRows []row[templates.Block]
	for _, r := range t.st.blocks {
		if r.val.TemplateID == templateID {
			blockRows = append(blockRows, r)
		}
	}
	sort.Slice(blockRows, func(i, j int) bool {
		if blockRows[i].val.Order != blockRows[j].val.Order {
			return blockRows[i].val.Order < blockRows[j].val.Order
		}
		return blockRows[i].seq < blockRows[j].seq
	})

	fieldsByBlock := make(map[string][]row[templates.Field])
	for _, r := range t.st.fields {
		if r.val.TemplateID == templateID {
			fieldsByBlock[r.val.BlockID] = append(fieldsByBlock[r.val.BlockID], r)
		}
	}

	blocks := make([]templates.Block, 0, len(blockRows))
	for _, br := range blockRows {
		b := br.val
		b.Fields = nil
		frs := fieldsByBlock[b.ID]
		sort.Slice(frs, func(i, j int) bool {
			if frs[i].val.Order != frs[j].val.Order {
				return frs[i].val.Order < frs[j].val.Order
			}
			return frs[i].seq < frs[j].seq
		})
		for _, fr := range frs {
			b.Fields = append(b.Fields, copyField(fr.val))
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (t *tx) CloneBlocksAndFields(ctx context.Context, sourceTemplateID, targetTemplateID string, versionStamp int) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.templates[targetTemplateID]; !ok {
		return fmt.Errorf("template %s not found", targetTemplateID)
	}
	blocks, err := t.ListBlocksWithFields(ctx, sourceTemplateID)
	if err != nil {
		return err
	}

	for _, b := range blocks {
		nb := templates.Block{
			ID:         uuid.New().String(),
			TemplateID: targetTemplateID,
			Name:       b.Name,
			Order:      b.Order,
		}
		t.st.blocks[nb.ID] = row[templates.Block]{val: nb, seq: t.st.next()}

		for _, f := range b.Fields {
			nf := copyField(f)
			nf.ID = uuid.New().String()
			nf.TemplateID = targetTemplateID
			nf.BlockID = nb.ID
			if nf.IntroducedInVersion <= 0 {
				nf.IntroducedInVersion = versionStamp
			}
			t.st.fields[nf.ID] = row[templates.Field]{val: nf, seq: t.st.next()}
		}
	}
	return nil
}

func (t *tx) FindBlock(ctx context.Context, id string) (*templates.Block, error) {
	r, ok := t.st.blocks[id]
	if !ok {
		return nil, nil
	}
	b := r.val
	return &b, nil
}

func (t *tx) CreateBlock(ctx context.Context, in *templates.Block) (*templates.Block, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	if _, ok := t.st.templates[in.TemplateID]; !ok {
		return nil, fmt.Errorf("template %s not found", in.TemplateID)
	}
	b := *in
	b.Fields = nil
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	t.st.blocks[b.ID] = row[templates.Block]{val: b, seq: t.st.next()}
	return &b, nil
}

func (t *tx) UpdateBlock(ctx context.Context, id string, patch templates.BlockPatch) (*templates.Block, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	r, ok := t.st.blocks[id]
	if !ok {
		return nil, fmt.Errorf("block %s not found", id)
	}
	if patch.Name != nil {
		r.val.Name = *patch.Name
	}
	if patch.Order != nil {
		r.val.Order = *patch.Order
	}
	t.st.blocks[id] = r
	b := r.val
	return &b, nil
}

func (t *tx) DeleteBlock(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.blocks[id]; !ok {
		return fmt.Errorf("block %s not found", id)
	}
	for fid, r := range t.st.fields {
		if r.val.BlockID == id {
			delete(t.st.fields, fid)
		}
	}
	delete(t.st.blocks, id)
	return nil
}

func (t *tx) FindField(ctx context.Context, id string) (*templates.Field, error) {
	r, ok := t.st.fields[id]
	if !ok {
		return nil, nil
	}
	f := copyField(r.val)
	return &f, nil
}

func (t *tx) CreateField(ctx context.Context, in *templates.Field) (*templates.Field, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	b, ok := t.st.blocks[in.BlockID]
	if !ok || b.val.TemplateID != in.TemplateID {
		return nil, fmt.Errorf("block %s not found in template %s", in.BlockID, in.TemplateID)
	}
	f := copyField(*in)
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	t.st.fields[f.ID] = row[templates.Field]{val: f, seq: t.st.next()}
	out := copyField(f)
	return &out, nil
}

func (t *tx) UpdateField(ctx context.Context, id string, patch templates.FieldPatch) (*templates.Field, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	r, ok := t.st.fields[id]
	if !ok {
		return nil, fmt.Errorf("field %s not found", id)
	}
	f := copyField(r.val)
	if patch.Label != nil {
		f.Label = *patch.Label
	}
	if patch.Key != nil {
		f.Key = *patch.Key
	}
	if patch.Type != nil {
		f.Type = *patch.Type
	}
	if patch.Required != nil {
		f.Required = *patch.Required
	}
	if patch.RegulatoryRequired != nil {
		f.RegulatoryRequired = *patch.RegulatoryRequired
	}
	if patch.Repeatable != nil {
		f.Repeatable = *patch.Repeatable
	}
	if patch.Config != nil {
		f.Config = append([]byte(nil), (*patch.Config)...)
	}
	if patch.Order != nil {
		f.Order = *patch.Order
	}
	if patch.IntroducedInVersion != nil {
		f.IntroducedInVersion = *patch.IntroducedInVersion
	}
	r.val = f
	t.st.fields[id] = r
	out := copyField(f)
	return &out, nil
}

func (t *tx) DeleteField(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.fields[id]; !ok {
		return fmt.Errorf("field %s not found", id)
	}
	delete(t.st.fields, id)
	return nil
}
