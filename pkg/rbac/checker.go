package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

// ErrForbidden is returned by RequirePermission. It deliberately carries no
// detail about the resource so callers cannot learn whether it exists.
var ErrForbidden = errors.New("forbidden")

// Checker answers authorization questions for the template engine
type Checker interface {
	// EffectiveRole returns the highest-priority role of userID in organizationID
	EffectiveRole(ctx context.Context, userID, organizationID string) (Role, bool, error)

	// Can reports whether userID holds perm in organizationID. It fails closed.
	Can(ctx context.Context, userID, organizationID string, perm Permission) bool

	// RequirePermission guards an operation; it returns ErrForbidden or nil
	RequirePermission(ctx context.Context, session Session, resource Resource, action Action) error
}

// PermissionChecker implements Checker over a MembershipStore
type PermissionChecker struct {
	store   MembershipStore
	logger  *observability.Logger
	metrics *observability.Metrics
}

// CheckerOption configures a PermissionChecker
type CheckerOption func(*PermissionChecker)

// WithLogger sets the logger used for denials and store failures
func WithLogger(logger *observability.Logger) CheckerOption {
	return func(pc *PermissionChecker) {
		if logger != nil {
			pc.logger = logger
		}
	}
}

// WithMetrics records every decision
func WithMetrics(metrics *observability.Metrics) CheckerOption {
	return func(pc *PermissionChecker) {
		pc.metrics = metrics
	}
}

// NewPermissionChecker creates a new permission checker
func NewPermissionChecker(store MembershipStore, opts ...CheckerOption) *PermissionChecker {
	pc := &PermissionChecker{
		store:  store,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// EffectiveRole returns the highest-priority known role across all memberships
// of the pair. Memberships with unrecognized role strings are ignored. The bool
// is false when the user is not a member.
func (pc *PermissionChecker) EffectiveRole(ctx context.Context, userID, organizationID string) (Role, bool, error) {
	if userID == "" || organizationID == "" {
		return "", false, nil
	}

	memberships, err := pc.store.ListMemberships(ctx, userID, organizationID)
	if err != nil {
		return "", false, fmt.Errorf("failed to list memberships: %w", err)
	}

	var best Role
	for _, m := range memberships {
		role, ok := ParseRole(m.Role)
		if !ok {
			pc.logger.WithFields(map[string]interface{}{
				"user_id":         userID,
				"organization_id": organizationID,
				"role":            m.Role,
			}).Warn("ignoring membership with unknown role")
			continue
		}
		if role.Priority() > best.Priority() {
			best = role
		}
	}

	if !best.Valid() {
		return "", false, nil
	}
	return best, true, nil
}

// Can reports whether the user holds perm. Store errors, missing membership
// and unknown permissions all resolve to false.
func (pc *PermissionChecker) Can(ctx context.Context, userID, organizationID string, perm Permission) bool {
	role, ok, err := pc.EffectiveRole(ctx, userID, organizationID)
	if err != nil {
		pc.logger.WithError(err).WithField("permission", string(perm)).Error("membership lookup failed, denying")
		pc.metrics.RecordPermissionDecision(string(perm), false)
		return false
	}

	allowed := ok && PermissionsFor(role).Has(perm)
	pc.metrics.RecordPermissionDecision(string(perm), allowed)
	return allowed
}

// RequirePermission guards the entry of a mutating or reading operation. It
// must run before any state read so that a denial reveals nothing.
func (pc *PermissionChecker) RequirePermission(ctx context.Context, session Session, resource Resource, action Action) error {
	perm, ok := PermissionFor(resource, action)
	if !ok {
		pc.logger.WithFields(map[string]interface{}{
			"resource": string(resource),
			"action":   string(action),
		}).Warn("no permission mapped for resource action, denying")
		return ErrForbidden
	}

	if !pc.Can(ctx, session.ActorID, session.OrganizationID, perm) {
		pc.logger.WithFields(map[string]interface{}{
			"actor_id":        session.ActorID,
			"organization_id": session.OrganizationID,
			"permission":      string(perm),
		}).Info("permission denied")
		return ErrForbidden
	}

	return nil
}

// Permissions returns the permission set of the session's actor in its organization
func (pc *PermissionChecker) Permissions(ctx context.Context, session Session) (Role, PermissionSet, error) {
	role, ok, err := pc.EffectiveRole(ctx, session.ActorID, session.OrganizationID)
	if err != nil {
		return "", PermissionSet{}, err
	}
	if !ok {
		return "", PermissionSet{}, nil
	}
	return role, PermissionsFor(role), nil
}
