package middleware

import (
	"net/http"
	"strings"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/contextkeys"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
)

// Headers set by the upstream gateway after it authenticated the caller.
// Sessions are never issued here.
const (
	ActorHeader        = "X-Actor-ID"
	OrganizationHeader = "X-Organization-ID"
)

// SessionMiddleware copies the gateway identity headers into the request
// context. A request without them continues with an empty session, which
// every permission check denies.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorID := strings.TrimSpace(r.Header.Get(ActorHeader))
		orgID := strings.TrimSpace(r.Header.Get(OrganizationHeader))

		if actorID != "" {
			ctx = contextkeys.WithActorID(ctx, actorID)
		}
		if orgID != "" {
			ctx = contextkeys.WithOrganizationID(ctx, orgID)
		}
		if actorID != "" || orgID != "" {
			ctx = observability.WithLogger(ctx, observability.GetLogger(ctx).WithFields(map[string]interface{}{
				"actor_id":        actorID,
				"organization_id": orgID,
			}))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromRequest returns the session established by SessionMiddleware
func SessionFromRequest(r *http.Request) rbac.Session {
	return rbac.SessionFromContext(r.Context())
}
