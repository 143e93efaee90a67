package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/contextkeys"
)

type brokenAuthorizer struct{}

func (brokenAuthorizer) RequirePermission(ctx context.Context, session Session, resource Resource, action Action) error {
	return errors.New("policy backend unavailable")
}

func withSession(r *http.Request, actorID, orgID string) *http.Request {
	ctx := r.Context()
	if actorID != "" {
		ctx = contextkeys.WithActorID(ctx, actorID)
	}
	if orgID != "" {
		ctx = contextkeys.WithOrganizationID(ctx, orgID)
	}
	return r.WithContext(ctx)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSessionFromContext(t *testing.T) {
	r := withSession(httptest.NewRequest(http.MethodGet, "/", nil), "alice", "acme")
	assert.Equal(t, Session{ActorID: "alice", OrganizationID: "acme"}, SessionFromContext(r.Context()))
	assert.Equal(t, Session{}, SessionFromContext(context.Background()))
}

func TestPermissionMiddleware_RequirePermission(t *testing.T) {
	checker := NewPermissionChecker(NewStaticStore(
		Membership{UserID: "admin", OrganizationID: "acme", Role: "ORG_ADMIN"},
		Membership{UserID: "viewer", OrganizationID: "acme", Role: "VIEWER"},
	))

	tests := []struct {
		name   string
		authz  Authorizer
		actor  string
		org    string
		status int
	}{
		{"admin", checker, "admin", "acme", http.StatusOK},
		{"viewer lacks permission", checker, "viewer", "acme", http.StatusForbidden},
		{"other organization", checker, "admin", "globex", http.StatusForbidden},
		{"no session", checker, "", "", http.StatusForbidden},
		{"no authorizer", nil, "admin", "acme", http.StatusForbidden},
		{"authorizer error", brokenAuthorizer{}, "admin", "acme", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPermissionMiddleware(tt.authz).RequirePermission(ResourceAuditLog, ActionRead)(okHandler)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/audit/events", nil), tt.actor, tt.org))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusForbidden {
				assert.JSONEq(t, `{"error":"forbidden","code":"forbidden"}`, rec.Body.String())
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	handler := RequireSession(okHandler)

	for _, tt := range []struct {
		actor, org string
		status     int
	}{
		{"alice", "acme", http.StatusOK},
		{"alice", "", http.StatusForbidden},
		{"", "acme", http.StatusForbidden},
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/me/permissions", nil), tt.actor, tt.org))
		assert.Equal(t, tt.status, rec.Code, "%s/%s", tt.actor, tt.org)
	}
}
