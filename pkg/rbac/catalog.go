package rbac

// PermissionSet is the full set of capabilities a role grants
type PermissionSet struct {
	CanEditOrganization   bool `json:"canEditOrganization"`
	CanEditBilling        bool `json:"canEditBilling"`
	CanInviteUsers        bool `json:"canInviteUsers"`
	CanRemoveUsers        bool `json:"canRemoveUsers"`
	CanManageJoinRequests bool `json:"canManageJoinRequests"`
	CanCreateDPP          bool `json:"canCreateDPP"`
	CanEditDPP            bool `json:"canEditDPP"`
	CanPublishDPP         bool `json:"canPublishDPP"`
	CanViewAuditLogs      bool `json:"canViewAuditLogs"`
	CanViewTemplates      bool `json:"canViewTemplates"`
	CanManageTemplates    bool `json:"canManageTemplates"`
	CanPublishTemplates   bool `json:"canPublishTemplates"`
}

var permissionMatrix = map[Role]PermissionSet{
	RoleOrgAdmin: {
		CanEditOrganization:   true,
		CanEditBilling:        true,
		CanInviteUsers:        true,
		CanRemoveUsers:        true,
		CanManageJoinRequests: true,
		CanCreateDPP:          true,
		CanEditDPP:            true,
		CanPublishDPP:         true,
		CanViewAuditLogs:      true,
		CanViewTemplates:      true,
		CanManageTemplates:    true,
		CanPublishTemplates:   true,
	},
	RoleEditor: {
		CanCreateDPP:       true,
		CanEditDPP:         true,
		CanViewTemplates:   true,
		CanManageTemplates: true,
	},
	RoleViewer: {
		CanViewTemplates: true,
	},
}

// PermissionsFor returns the permissions of role. It never fails: an unknown
// role yields the empty set.
func PermissionsFor(role Role) PermissionSet {
	return permissionMatrix[role]
}

// Has reports whether the set grants perm. Unknown permissions are never granted.
func (p PermissionSet) Has(perm Permission) bool {
	switch perm {
	case PermEditOrganization:
		return p.CanEditOrganization
	case PermEditBilling:
		return p.CanEditBilling
	case PermInviteUsers:
		return p.CanInviteUsers
	case PermRemoveUsers:
		return p.CanRemoveUsers
	case PermManageJoinRequests:
		return p.CanManageJoinRequests
	case PermCreateDPP:
		return p.CanCreateDPP
	case PermEditDPP:
		return p.CanEditDPP
	case PermPublishDPP:
		return p.CanPublishDPP
	case PermViewAuditLogs:
		return p.CanViewAuditLogs
	case PermViewTemplates:
		return p.CanViewTemplates
	case PermManageTemplates:
		return p.CanManageTemplates
	case PermPublishTemplates:
		return p.CanPublishTemplates
	default:
		return false
	}
}

// AllPermissions lists every permission in catalog order
func AllPermissions() []Permission {
	return []Permission{
		PermEditOrganization,
		PermEditBilling,
		PermInviteUsers,
		PermRemoveUsers,
		PermManageJoinRequests,
		PermCreateDPP,
		PermEditDPP,
		PermPublishDPP,
		PermViewAuditLogs,
		PermViewTemplates,
		PermManageTemplates,
		PermPublishTemplates,
	}
}

// List returns the granted permissions in catalog order
func (p PermissionSet) List() []Permission {
	granted := make([]Permission, 0)
	for _, perm := range AllPermissions() {
		if p.Has(perm) {
			granted = append(granted, perm)
		}
	}
	return granted
}
