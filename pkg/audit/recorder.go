package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// Recorder turns template mutations into audit events. It satisfies
// templates.AuditSink.
type Recorder struct {
	logger Logger
}

// NewRecorder creates a recorder writing to logger
func NewRecorder(logger Logger) *Recorder {
	if logger == nil {
		logger = NoOpLogger()
	}
	return &Recorder{logger: logger}
}

// Record writes one event with the before and after values of the entity
func (r *Recorder) Record(ctx context.Context, action, entityID, actorID string, oldValue, newValue interface{}) error {
	event := newEvent(ctx, EventType(action), EventStatusSuccess)
	event.ActorID = actorID
	event.ResourceID = entityID

	before, err := toMap(oldValue)
	if err != nil {
		return fmt.Errorf("failed to encode previous value: %w", err)
	}
	after, err := toMap(newValue)
	if err != nil {
		return fmt.Errorf("failed to encode new value: %w", err)
	}
	if before != nil || after != nil {
		event.Changes = &ChangeDetails{Before: before, After: after}
	}

	if err := r.logger.Log(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s: %w", action, err)
	}
	return nil
}

// toMap converts a value to its JSON object form. Non-object values are
// wrapped under "value".
func toMap(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err == nil {
		return out, nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return map[string]interface{}{"value": raw}, nil
}
