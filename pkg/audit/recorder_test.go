package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/contextkeys"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

// memoryLogger keeps events in memory
type memoryLogger struct {
	mu     sync.Mutex
	events []*AuditEvent
	err    error
	closed bool
}

func (m *memoryLogger) Log(ctx context.Context, event *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryLogger) Close() error {
	m.closed = true
	return nil
}

func (m *memoryLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*AuditEvent
	for _, e := range m.events {
		if filter.OrganizationID != "" && e.OrganizationID != filter.OrganizationID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type templateView struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Version int    `json:"version"`
}

func TestRecorder_Record(t *testing.T) {
	mem := &memoryLogger{}
	rec := NewRecorder(mem)

	ctx := contextkeys.WithRequestID(context.Background(), "req-7")
	ctx = contextkeys.WithOrganizationID(ctx, "org-1")

	before := templateView{Name: "Pass", Status: "draft", Version: 2}
	after := templateView{Name: "Pass", Status: "active", Version: 2}
	require.NoError(t, rec.Record(ctx, "template.status_changed", "tpl-1", "admin", before, &after))

	require.Len(t, mem.events, 1)
	e := mem.events[0]
	assert.Equal(t, EventTypeTemplateStatusChanged, e.EventType)
	assert.Equal(t, EventStatusSuccess, e.Status)
	assert.Equal(t, ResourceTypeTemplate, e.ResourceType)
	assert.Equal(t, "tpl-1", e.ResourceID)
	assert.Equal(t, "admin", e.ActorID)
	assert.Equal(t, "org-1", e.OrganizationID)
	assert.Equal(t, "req-7", e.RequestID)
	assert.NotEmpty(t, e.ID)

	require.NotNil(t, e.Changes)
	assert.Equal(t, "draft", e.Changes.Before["status"])
	assert.Equal(t, "active", e.Changes.After["status"])
	assert.Equal(t, float64(2), e.Changes.After["version"])
}

func TestRecorder_NilValues(t *testing.T) {
	mem := &memoryLogger{}
	rec := NewRecorder(mem)

	var missing *templateView
	require.NoError(t, rec.Record(context.Background(), "template.field_deleted", "fld-1", "editor", missing, nil))

	require.Len(t, mem.events, 1)
	assert.Nil(t, mem.events[0].Changes)
	assert.Equal(t, ResourceTypeField, mem.events[0].ResourceType)
}

func TestRecorder_ScalarValues(t *testing.T) {
	mem := &memoryLogger{}
	rec := NewRecorder(mem)

	require.NoError(t, rec.Record(context.Background(), "template.block_deleted", "blk-1", "editor", "Materials", nil))
	require.NotNil(t, mem.events[0].Changes)
	assert.Equal(t, "Materials", mem.events[0].Changes.Before["value"])
	assert.Nil(t, mem.events[0].Changes.After)
}

func TestRecorder_LoggerError(t *testing.T) {
	rec := NewRecorder(&memoryLogger{err: errors.New("db down")})
	err := rec.Record(context.Background(), "template.deleted", "tpl-1", "admin", nil, nil)
	assert.ErrorContains(t, err, "failed to record template.deleted")
	assert.ErrorContains(t, err, "db down")
}

func TestRecorder_UnencodableValue(t *testing.T) {
	rec := NewRecorder(&memoryLogger{})
	err := rec.Record(context.Background(), "template.updated", "tpl-1", "admin", nil, map[string]interface{}{"ch": make(chan int)})
	assert.ErrorContains(t, err, "failed to encode new value")
}

func TestResourceTypeFor(t *testing.T) {
	assert.Equal(t, ResourceTypeTemplate, ResourceTypeFor(EventTypeTemplateVersioned))
	assert.Equal(t, ResourceTypeBlock, ResourceTypeFor(EventTypeBlockUpdated))
	assert.Equal(t, ResourceTypeField, ResourceTypeFor(EventTypeFieldAdded))
	assert.Equal(t, ResourceType(""), ResourceTypeFor(EventTypeAuthzAccessDenied))
}

func TestContextLogger(t *testing.T) {
	assert.NoError(t, FromContext(context.Background()).Log(context.Background(), &AuditEvent{}))

	mem := &memoryLogger{}
	ctx := WithLogger(context.Background(), mem)
	assert.Same(t, mem, FromContext(ctx))
}

func TestMultiLogger_Sync(t *testing.T) {
	first := &memoryLogger{err: errors.New("first failed")}
	second := &memoryLogger{}

	multi := NewMultiLogger(first, second)
	multi.SetAsync(false)

	event := &AuditEvent{EventType: EventTypeTemplateCreated}
	err := multi.Log(context.Background(), event)
	assert.ErrorContains(t, err, "first failed")

	require.Len(t, second.events, 1)
	assert.NotEmpty(t, second.events[0].ID)

	require.NoError(t, multi.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestMultiLogger_Async(t *testing.T) {
	failing := &memoryLogger{err: errors.New("unavailable")}
	ok := &memoryLogger{}

	multi := NewMultiLogger(failing, ok)
	require.NoError(t, multi.Log(context.Background(), &AuditEvent{EventType: EventTypeTemplateDeleted}))
	multi.Wait()

	assert.Len(t, ok.events, 1)
	errs := multi.GetErrors()
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "unavailable")
	require.NoError(t, multi.Close())
}

func TestMultiLogger_Empty(t *testing.T) {
	assert.NoError(t, NewMultiLogger().Log(context.Background(), &AuditEvent{}))
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLogger(observability.NewLogger(observability.InfoLevel, &buf))

	ctx := contextkeys.WithRequestID(context.Background(), "req-9")
	require.NoError(t, logger.Log(ctx, &AuditEvent{
		EventType:  EventTypeTemplateVersioned,
		ActorID:    "editor",
		ResourceID: "tpl-2",
		Changes:    &ChangeDetails{After: map[string]interface{}{"version": 3}},
	}))
	require.NoError(t, logger.Close())

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "template.version_created", line["msg"])
	assert.Equal(t, "editor", line["actor_id"])
	assert.Equal(t, "req-9", line["request_id"])
	assert.Equal(t, "tpl-2", line["resource_id"])
	assert.Equal(t, true, line["audit"])
	assert.Equal(t, "info", line["level"])
}
