package templates

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from    Status
		event   Event
		want    Status
		wantErr error
	}{
		{StatusNone, EventCreate, StatusDraft, nil},
		{StatusDraft, EventEdit, StatusDraft, nil},
		{StatusDraft, EventActivate, StatusActive, nil},
		{StatusDraft, EventDelete, StatusNone, nil},
		{StatusActive, EventArchive, StatusArchived, nil},
		{StatusActive, EventCreateSuccessor, StatusActive, nil},

		{StatusActive, EventEdit, StatusActive, ErrTemplateImmutable},
		{StatusActive, EventActivate, StatusActive, ErrTemplateImmutable},
		{StatusActive, EventDelete, StatusActive, ErrTemplateImmutable},
		{StatusArchived, EventEdit, StatusArchived, ErrTemplateImmutable},
		{StatusArchived, EventActivate, StatusArchived, ErrTemplateImmutable},
		{StatusArchived, EventArchive, StatusArchived, ErrTemplateImmutable},
		{StatusDraft, EventArchive, StatusDraft, ErrTemplateImmutable},
		{StatusDraft, EventCreate, StatusDraft, ErrTemplateImmutable},
		{StatusDraft, EventCreateSuccessor, StatusDraft, ErrInvalidSourceState},
		{StatusArchived, EventCreateSuccessor, StatusArchived, ErrInvalidSourceState},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestRejectionMessages(t *testing.T) {
	_, err := Next(StatusActive, EventEdit)
	assert.Contains(t, err.Error(), "create a new version")

	_, err = Next(StatusDraft, EventCreateSuccessor)
	assert.Contains(t, err.Error(), "only be created from the active template")
}

func TestAllowedEvents(t *testing.T) {
	assert.Equal(t, []Event{EventEdit, EventActivate, EventDelete}, AllowedEvents(StatusDraft))
	assert.Equal(t, []Event{EventArchive, EventCreateSuccessor}, AllowedEvents(StatusActive))
	assert.Empty(t, AllowedEvents(StatusArchived))
	assert.True(t, CanTransition(StatusNone, EventCreate))
	assert.False(t, CanTransition(StatusArchived, EventActivate))
}
