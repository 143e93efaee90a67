package templates

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of one template version
type Status string

const (
	// StatusNone is the state before creation and after deletion
	StatusNone     Status = ""
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a stored lifecycle status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusArchived:
		return true
	}
	return false
}

// FieldType is the data-entry widget of a template field
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldNumber      FieldType = "number"
	FieldBoolean     FieldType = "boolean"
	FieldDate        FieldType = "date"
	FieldSelect      FieldType = "select"
	FieldMultiselect FieldType = "multiselect"
	FieldCountry     FieldType = "country"
	FieldURL         FieldType = "url"
	FieldFile        FieldType = "file"
)

// Valid reports whether t is a known field type
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldNumber, FieldBoolean, FieldDate,
		FieldSelect, FieldMultiselect, FieldCountry, FieldURL, FieldFile:
		return true
	}
	return false
}

// Template is one version of a regulatory document definition. A version
// chain is linked through SupersedesTemplateID; a category may hold several
// chains over time, so the version number alone does not identify the
// predecessor.
type Template struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Category             string     `json:"category"`
	CategoryLabel        string     `json:"categoryLabel,omitempty"`
	Industry             string     `json:"industry,omitempty"`
	Description          string     `json:"description,omitempty"`
	Version              int        `json:"version"`
	Status               Status     `json:"status"`
	EffectiveFrom        *time.Time `json:"effectiveFrom,omitempty"`
	SupersedesVersion    *int       `json:"supersedesVersion,omitempty"`
	SupersedesTemplateID *string    `json:"supersedesTemplateId,omitempty"`
	CreatedBy            string     `json:"createdBy"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	Blocks               []Block    `json:"blocks,omitempty"`
}

// Block groups fields of a template. Blocks are owned by exactly one template.
type Block struct {
	ID         string  `json:"id"`
	TemplateID string  `json:"templateId"`
	Name       string  `json:"name"`
	Order      int     `json:"order"`
	Fields     []Field `json:"fields,omitempty"`
}

// Field is a single data-entry field. IntroducedInVersion records the
// template version in which the field first appeared in its lineage.
type Field struct {
	ID                  string          `json:"id"`
	TemplateID          string          `json:"templateId"`
	BlockID             string          `json:"blockId"`
	Label               string          `json:"label"`
	Key                 string          `json:"key"`
	Type                FieldType       `json:"type"`
	Required            bool            `json:"required"`
	RegulatoryRequired  bool            `json:"regulatoryRequired"`
	Repeatable          bool            `json:"repeatable"`
	Config              json.RawMessage `json:"config,omitempty"`
	Order               int             `json:"order"`
	IntroducedInVersion int             `json:"introducedInVersion"`
}

// TemplatePatch lists the template columns a store update may touch. Nil
// pointers are left unchanged. Category and Version are absent on purpose.
type TemplatePatch struct {
	Name          *string
	Description   *string
	CategoryLabel *string
	Industry      *string
	Status        *Status
	EffectiveFrom *time.Time
}

// BlockPatch lists the block columns an update may touch
type BlockPatch struct {
	Name  *string
	Order *int
}

// FieldPatch lists the field columns an update may touch
type FieldPatch struct {
	Label               *string
	Key                 *string
	Type                *FieldType
	Required            *bool
	RegulatoryRequired  *bool
	Repeatable          *bool
	Config              *json.RawMessage
	Order               *int
	IntroducedInVersion *int
}

// ListFilter narrows ListTemplates. Zero values match everything.
type ListFilter struct {
	Category string
	Status   Status
	Search   string
	Limit    int
	Offset   int
}

// CreateTemplateRequest creates a version-1 draft
type CreateTemplateRequest struct {
	Name          string       `json:"name"`
	Category      string       `json:"category"`
	CategoryLabel string       `json:"categoryLabel,omitempty"`
	Industry      string       `json:"industry,omitempty"`
	Description   string       `json:"description,omitempty"`
	Blocks        []BlockInput `json:"blocks,omitempty"`
}

// BlockInput describes a block to add. A nil Order appends the block.
type BlockInput struct {
	Name   string       `json:"name"`
	Order  *int         `json:"order,omitempty"`
	Fields []FieldInput `json:"fields,omitempty"`
}

// FieldInput describes a field to add. An empty Key is derived from Label by
// the service's KeyStrategy. A nil Order appends the field.
type FieldInput struct {
	Label              string          `json:"label"`
	Key                string          `json:"key,omitempty"`
	Type               FieldType       `json:"type"`
	Required           bool            `json:"required"`
	RegulatoryRequired bool            `json:"regulatoryRequired"`
	Repeatable         bool            `json:"repeatable"`
	Config             json.RawMessage `json:"config,omitempty"`
	Order              *int            `json:"order,omitempty"`
}

// UpdateTemplateRequest edits a draft. Category may be sent but must equal
// the stored category.
type UpdateTemplateRequest struct {
	Name          *string `json:"name,omitempty"`
	Category      *string `json:"category,omitempty"`
	CategoryLabel *string `json:"categoryLabel,omitempty"`
	Industry      *string `json:"industry,omitempty"`
	Description   *string `json:"description,omitempty"`
}

// UpdateBlockRequest edits a block of a draft
type UpdateBlockRequest struct {
	Name  *string `json:"name,omitempty"`
	Order *int    `json:"order,omitempty"`
}

// UpdateFieldRequest edits a field of a draft
type UpdateFieldRequest struct {
	Label              *string          `json:"label,omitempty"`
	Key                *string          `json:"key,omitempty"`
	Type               *FieldType       `json:"type,omitempty"`
	Required           *bool            `json:"required,omitempty"`
	RegulatoryRequired *bool            `json:"regulatoryRequired,omitempty"`
	Repeatable         *bool            `json:"repeatable,omitempty"`
	Config             *json.RawMessage `json:"config,omitempty"`
	Order              *int             `json:"order,omitempty"`
}
