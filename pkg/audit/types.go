package audit

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Template lifecycle events
	EventTypeTemplateCreated       EventType = "template.created"
	EventTypeTemplateUpdated       EventType = "template.updated"
	EventTypeTemplateStatusChanged EventType = "template.status_changed"
	EventTypeTemplateDeleted       EventType = "template.deleted"
	EventTypeTemplateVersioned     EventType = "template.version_created"

	// Block and field edits on drafts
	EventTypeBlockAdded   EventType = "template.block_added"
	EventTypeBlockUpdated EventType = "template.block_updated"
	EventTypeBlockDeleted EventType = "template.block_deleted"
	EventTypeFieldAdded   EventType = "template.field_added"
	EventTypeFieldUpdated EventType = "template.field_updated"
	EventTypeFieldDeleted EventType = "template.field_deleted"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being changed
type ResourceType string

const (
	ResourceTypeTemplate ResourceType = "template"
	ResourceTypeBlock    ResourceType = "template_block"
	ResourceTypeField    ResourceType = "template_field"
)

// ResourceTypeFor derives the resource type from an event type
func ResourceTypeFor(eventType EventType) ResourceType {
	action := string(eventType)
	switch {
	case strings.HasPrefix(action, "template.block_"):
		return ResourceTypeBlock
	case strings.HasPrefix(action, "template.field_"):
		return ResourceTypeField
	case strings.HasPrefix(action, "template."):
		return ResourceTypeTemplate
	default:
		return ""
	}
}

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	// Core fields
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	ActorID        string `json:"actor_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Changes tracking (before/after for updates)
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*AuditEvent, error) {
	var event AuditEvent
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Actor filters
	ActorID        string
	OrganizationID string

	// Event filters
	EventTypes []EventType
	Status     *EventStatus

	// Resource filters
	ResourceType ResourceType
	ResourceID   string

	// Pagination
	Limit  int
	Offset int

	// "asc" or "desc" by timestamp
	SortOrder string
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)
