package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetActorID(ctx))
	assert.Empty(t, GetOrganizationID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithActorID(ctx, "user-1")
	ctx = WithOrganizationID(ctx, "org-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-1", GetActorID(ctx))
	assert.Equal(t, "org-1", GetOrganizationID(ctx))
}

func TestGetString_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), ActorIDKey, 42)
	assert.Empty(t, GetActorID(ctx))
}
