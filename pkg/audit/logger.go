package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// Searcher finds previously written audit events
type Searcher interface {
	Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error)
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	// Return a no-op logger if none is set
	return NoOpLogger()
}

// NoOpLogger returns a logger that drops every event
func NoOpLogger() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (noOpLogger) Close() error { return nil }

// newEvent creates an event carrying the request context
func newEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		Status:         status,
		ActorID:        contextkeys.GetActorID(ctx),
		OrganizationID: contextkeys.GetOrganizationID(ctx),
		RequestID:      contextkeys.GetRequestID(ctx),
		ResourceType:   ResourceTypeFor(eventType),
	}
}

// prepare fills the fields a caller may have left empty
func prepare(ctx context.Context, event *AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = EventStatusSuccess
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}
	if event.OrganizationID == "" {
		event.OrganizationID = contextkeys.GetOrganizationID(ctx)
	}
}
