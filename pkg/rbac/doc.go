// Package rbac provides the role catalog and permission core that gates every
// template lifecycle operation.
//
// # Roles
//
// Three fixed roles exist, ordered by privilege:
//
//	ORG_ADMIN > EDITOR > VIEWER
//
// The legacy role string ORG_OWNER is accepted from stored memberships and
// normalized to ORG_ADMIN by ParseRole. No other code interprets role strings.
//
// # Permission Matrix
//
//	                         ORG_ADMIN  EDITOR  VIEWER
//	can_edit_organization        x
//	can_edit_billing             x
//	can_invite_users             x
//	can_remove_users             x
//	can_manage_join_requests     x
//	can_create_dpp               x        x
//	can_edit_dpp                 x        x
//	can_publish_dpp              x
//	can_view_audit_logs          x
//	can_view_templates           x        x       x
//	can_manage_templates         x        x
//	can_publish_templates        x
//
// PermissionsFor is total: an unknown role yields the empty set.
//
// # Effective Role
//
// A user may hold several memberships in one organization (duplicate rows are
// tolerated). The effective role is the highest-priority known role among
// them; memberships with unknown role strings are ignored.
//
// # Checking Permissions
//
//	checker := rbac.NewPermissionChecker(rbac.NewSQLStore(db))
//	if err := checker.RequirePermission(ctx, session, rbac.ResourceTemplate, rbac.ActionPublish); err != nil {
//		return err // rbac.ErrForbidden
//	}
//
// Every failure mode resolves to a denial: store errors, missing memberships,
// unknown roles and unmapped resource/action pairs.
//
// # Caching
//
// CachedStore wraps any MembershipStore with an expirable in-process LRU and
// an optional Redis layer. Call Invalidate after changing a membership.
package rbac
