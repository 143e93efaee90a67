package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/contextkeys"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/httputil"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

// Authorizer decides whether a session may perform action on resource
type Authorizer interface {
	RequirePermission(ctx context.Context, session Session, resource Resource, action Action) error
}

// SessionFromContext returns the session the API session middleware stored
// in ctx. Missing values stay empty.
func SessionFromContext(ctx context.Context) Session {
	return Session{
		ActorID:        contextkeys.GetActorID(ctx),
		OrganizationID: contextkeys.GetOrganizationID(ctx),
	}
}

// PermissionMiddleware gates whole routes before their handler runs
type PermissionMiddleware struct {
	authz Authorizer
}

// NewPermissionMiddleware creates a new permission middleware. A nil
// authorizer denies every request.
func NewPermissionMiddleware(authz Authorizer) *PermissionMiddleware {
	return &PermissionMiddleware{authz: authz}
}

// RequireSession rejects requests that carry no actor or no organization
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session.ActorID == "" || session.OrganizationID == "" {
			writeForbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission creates middleware that requires a specific permission
// in the session's organization
func (pm *PermissionMiddleware) RequirePermission(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pm.authz == nil {
				writeForbidden(w)
				return
			}

			err := pm.authz.RequirePermission(r.Context(), SessionFromContext(r.Context()), resource, action)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrForbidden):
				writeForbidden(w)
			default:
				observability.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
					"resource": string(resource),
					"action":   string(action),
				}).Error("permission check failed")
				httputil.WriteInternalError(w)
			}
		})
	}
}

// writeForbidden never says which permission was missing
func writeForbidden(w http.ResponseWriter) {
	httputil.WriteErrorCode(w, http.StatusForbidden, "forbidden", "forbidden")
}
