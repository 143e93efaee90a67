package audit

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

// LogrusLogger writes audit events as structured log lines. It is the
// fallback trail when no database is configured.
type LogrusLogger struct {
	logger *observability.Logger
}

// NewLogrusLogger creates an audit logger on top of the application logger
func NewLogrusLogger(logger *observability.Logger) *LogrusLogger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogrusLogger{logger: logger.WithField("audit", true)}
}

// Log writes one line per event
func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	prepare(ctx, event)

	fields := logrus.Fields{
		"audit_id":      event.ID,
		"event_type":    string(event.EventType),
		"status":        string(event.Status),
		"resource_type": string(event.ResourceType),
		"resource_id":   event.ResourceID,
		"occurred_at":   event.Timestamp,
	}
	if event.ActorID != "" {
		fields["actor_id"] = event.ActorID
	}
	if event.OrganizationID != "" {
		fields["organization_id"] = event.OrganizationID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Changes != nil {
		fields["changes"] = event.Changes
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	message := event.Message
	if message == "" {
		message = string(event.EventType)
	}

	entry := l.logger.Entry().WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(message)
	} else {
		entry.Warn(message)
	}
	return nil
}

// Close is a no-op
func (l *LogrusLogger) Close() error {
	return nil
}
