package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

type failingStore struct{}

func (failingStore) ListMemberships(ctx context.Context, userID, organizationID string) ([]Membership, error) {
	return nil, errors.New("connection reset")
}

func TestEffectiveRole(t *testing.T) {
	store := NewStaticStore(
		Membership{UserID: "u1", OrganizationID: "org", Role: "VIEWER"},
		Membership{UserID: "u1", OrganizationID: "org", Role: "EDITOR"},
		Membership{UserID: "u2", OrganizationID: "org", Role: "ORG_OWNER"},
		Membership{UserID: "u3", OrganizationID: "org", Role: "WIZARD"},
		Membership{UserID: "u4", OrganizationID: "org", Role: "WIZARD"},
		Membership{UserID: "u4", OrganizationID: "org", Role: "VIEWER"},
		Membership{UserID: "u1", OrganizationID: "other", Role: "ORG_ADMIN"},
	)
	checker := NewPermissionChecker(store)
	ctx := context.Background()

	tests := []struct {
		name   string
		user   string
		org    string
		want   Role
		member bool
	}{
		{"highest of duplicates wins", "u1", "org", RoleEditor, true},
		{"legacy alias normalized", "u2", "org", RoleOrgAdmin, true},
		{"only unknown roles means not a member", "u3", "org", "", false},
		{"unknown role ignored beside known", "u4", "org", RoleViewer, true},
		{"no membership", "u9", "org", "", false},
		{"empty user", "", "org", "", false},
		{"memberships are per organization", "u1", "other", RoleOrgAdmin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, ok, err := checker.EffectiveRole(ctx, tt.user, tt.org)
			require.NoError(t, err)
			assert.Equal(t, tt.member, ok)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestCan(t *testing.T) {
	store := NewStaticStore(
		Membership{UserID: "admin", OrganizationID: "org", Role: "ORG_ADMIN"},
		Membership{UserID: "editor", OrganizationID: "org", Role: "EDITOR"},
		Membership{UserID: "viewer", OrganizationID: "org", Role: "VIEWER"},
	)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	checker := NewPermissionChecker(store, WithMetrics(metrics))
	ctx := context.Background()

	assert.True(t, checker.Can(ctx, "admin", "org", PermPublishTemplates))
	assert.True(t, checker.Can(ctx, "editor", "org", PermManageTemplates))
	assert.False(t, checker.Can(ctx, "editor", "org", PermPublishTemplates))
	assert.False(t, checker.Can(ctx, "viewer", "org", PermManageTemplates))
	assert.False(t, checker.Can(ctx, "stranger", "org", PermViewTemplates))
	assert.False(t, checker.Can(ctx, "admin", "org", Permission("bogus")))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PermissionDecisionsTotal.WithLabelValues("can_publish_templates", "deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PermissionDecisionsTotal.WithLabelValues("can_publish_templates", "allow")))
}

func TestCan_FailsClosedOnStoreError(t *testing.T) {
	checker := NewPermissionChecker(failingStore{})

	assert.False(t, checker.Can(context.Background(), "admin", "org", PermViewTemplates))

	_, _, err := checker.EffectiveRole(context.Background(), "admin", "org")
	assert.Error(t, err)
}

func TestRequirePermission(t *testing.T) {
	store := NewStaticStore(
		Membership{UserID: "editor", OrganizationID: "org", Role: "EDITOR"},
		Membership{UserID: "viewer", OrganizationID: "org", Role: "VIEWER"},
	)
	checker := NewPermissionChecker(store)
	ctx := context.Background()

	editor := Session{ActorID: "editor", OrganizationID: "org"}
	viewer := Session{ActorID: "viewer", OrganizationID: "org"}

	assert.NoError(t, checker.RequirePermission(ctx, editor, ResourceTemplate, ActionCreateVersion))
	assert.NoError(t, checker.RequirePermission(ctx, viewer, ResourceTemplate, ActionRead))
	assert.ErrorIs(t, checker.RequirePermission(ctx, viewer, ResourceTemplate, ActionCreateVersion), ErrForbidden)
	assert.ErrorIs(t, checker.RequirePermission(ctx, editor, ResourceTemplate, ActionPublish), ErrForbidden)
	assert.ErrorIs(t, checker.RequirePermission(ctx, Session{}, ResourceTemplate, ActionRead), ErrForbidden)
	assert.ErrorIs(t, checker.RequirePermission(ctx, editor, ResourceAuditLog, ActionDelete), ErrForbidden)

	t.Run("session memberships do not grant access", func(t *testing.T) {
		forged := Session{
			ActorID:        "viewer",
			OrganizationID: "org",
			Memberships:    []Membership{{UserID: "viewer", OrganizationID: "org", Role: "ORG_ADMIN"}},
		}
		assert.ErrorIs(t, checker.RequirePermission(ctx, forged, ResourceTemplate, ActionPublish), ErrForbidden)
	})
}

func TestPermissions(t *testing.T) {
	checker := NewPermissionChecker(NewStaticStore(Membership{UserID: "u", OrganizationID: "o", Role: "EDITOR"}))

	role, perms, err := checker.Permissions(context.Background(), Session{ActorID: "u", OrganizationID: "o"})
	require.NoError(t, err)
	assert.Equal(t, RoleEditor, role)
	assert.True(t, perms.CanManageTemplates)

	role, perms, err = checker.Permissions(context.Background(), Session{ActorID: "x", OrganizationID: "o"})
	require.NoError(t, err)
	assert.Equal(t, Role(""), role)
	assert.Equal(t, PermissionSet{}, perms)
}
