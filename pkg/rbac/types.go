package rbac

import (
	"sort"
	"strings"
)

// Role is one of the fixed organization roles. The zero value is "no role".
type Role string

const (
	RoleOrgAdmin Role = "ORG_ADMIN"
	RoleEditor   Role = "EDITOR"
	RoleViewer   Role = "VIEWER"
)

// legacyRoleOrgOwner is accepted from stored memberships only and normalized to ORG_ADMIN.
const legacyRoleOrgOwner = "ORG_OWNER"

// rolePriority is the single canonical privilege order.
var rolePriority = map[Role]int{
	RoleOrgAdmin: 3,
	RoleEditor:   2,
	RoleViewer:   1,
}

// ParseRole normalizes a stored role string. Legacy aliases are resolved here
// and nowhere else; unknown strings report false.
func ParseRole(s string) (Role, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	if normalized == legacyRoleOrgOwner {
		return RoleOrgAdmin, true
	}
	role := Role(normalized)
	if _, ok := rolePriority[role]; !ok {
		return "", false
	}
	return role, true
}

// Priority returns the privilege rank, 0 for unknown roles
func (r Role) Priority() int {
	return rolePriority[r]
}

// Valid reports whether r is one of the fixed roles
func (r Role) Valid() bool {
	return r.Priority() > 0
}

func (r Role) String() string {
	return string(r)
}

// Roles returns all roles from most to least privileged
func Roles() []Role {
	roles := make([]Role, 0, len(rolePriority))
	for r := range rolePriority {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Priority() > roles[j].Priority() })
	return roles
}

// Permission names a capability granted by the role catalog
type Permission string

const (
	PermEditOrganization   Permission = "can_edit_organization"
	PermEditBilling        Permission = "can_edit_billing"
	PermInviteUsers        Permission = "can_invite_users"
	PermRemoveUsers        Permission = "can_remove_users"
	PermManageJoinRequests Permission = "can_manage_join_requests"
	PermCreateDPP          Permission = "can_create_dpp"
	PermEditDPP            Permission = "can_edit_dpp"
	PermPublishDPP         Permission = "can_publish_dpp"
	PermViewAuditLogs      Permission = "can_view_audit_logs"
	PermViewTemplates      Permission = "can_view_templates"
	PermManageTemplates    Permission = "can_manage_templates"
	PermPublishTemplates   Permission = "can_publish_templates"
)

// Resource represents a resource type guarded by the permission core
type Resource string

const (
	ResourceTemplate      Resource = "template"
	ResourceTemplateField Resource = "template_field"
	ResourceOrganization  Resource = "organization"
	ResourceMembers       Resource = "members"
	ResourceDPP           Resource = "dpp"
	ResourceAuditLog      Resource = "audit_log"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate        Action = "create"
	ActionRead          Action = "read"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionPublish       Action = "publish"
	ActionArchive       Action = "archive"
	ActionCreateVersion Action = "create_version"
	ActionInvite        Action = "invite"
	ActionRemove        Action = "remove"
)

type resourceAction struct {
	resource Resource
	action   Action
}

var actionPermissions = map[resourceAction]Permission{
	{ResourceTemplate, ActionRead}:          PermViewTemplates,
	{ResourceTemplate, ActionCreate}:        PermManageTemplates,
	{ResourceTemplate, ActionUpdate}:        PermManageTemplates,
	{ResourceTemplate, ActionDelete}:        PermManageTemplates,
	{ResourceTemplate, ActionCreateVersion}: PermManageTemplates,
	{ResourceTemplate, ActionPublish}:       PermPublishTemplates,
	{ResourceTemplate, ActionArchive}:       PermPublishTemplates,
	{ResourceTemplateField, ActionRead}:     PermViewTemplates,
	{ResourceTemplateField, ActionCreate}:   PermManageTemplates,
	{ResourceTemplateField, ActionUpdate}:   PermManageTemplates,
	{ResourceTemplateField, ActionDelete}:   PermManageTemplates,
	{ResourceOrganization, ActionUpdate}:    PermEditOrganization,
	{ResourceMembers, ActionInvite}:         PermInviteUsers,
	{ResourceMembers, ActionRemove}:         PermRemoveUsers,
	{ResourceDPP, ActionCreate}:             PermCreateDPP,
	{ResourceDPP, ActionUpdate}:             PermEditDPP,
	{ResourceDPP, ActionPublish}:            PermPublishDPP,
	{ResourceAuditLog, ActionRead}:          PermViewAuditLogs,
}

// PermissionFor maps a resource and action to the catalog permission guarding it.
// Unmapped pairs report false and must be denied.
func PermissionFor(resource Resource, action Action) (Permission, bool) {
	p, ok := actionPermissions[resourceAction{resource, action}]
	return p, ok
}
