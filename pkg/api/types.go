package api

import (
	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

// TemplateResponse is a template plus the lifecycle events its current
// status permits, so clients can enable the matching actions
type TemplateResponse struct {
	*templates.Template
	AllowedEvents []templates.Event `json:"allowedEvents"`
}

func newTemplateResponse(tpl *templates.Template) TemplateResponse {
	events := templates.AllowedEvents(tpl.Status)
	if events == nil {
		events = []templates.Event{}
	}
	return TemplateResponse{Template: tpl, AllowedEvents: events}
}

// ListTemplatesResponse is returned by GET /templates
type ListTemplatesResponse struct {
	Templates []*templates.Template `json:"templates"`
	Count     int                   `json:"count"`
}

// SuccessorResponse is returned by POST /templates/{id}/versions
type SuccessorResponse struct {
	ID       string `json:"id"`
	SourceID string `json:"sourceId"`
}

// PermissionsResponse is returned by GET /me/permissions. Role is empty
// when the caller holds no valid membership in the organization.
type PermissionsResponse struct {
	ActorID        string             `json:"actorId"`
	OrganizationID string             `json:"organizationId"`
	Role           rbac.Role          `json:"role,omitempty"`
	Permissions    rbac.PermissionSet `json:"permissions"`
	Granted        []rbac.Permission  `json:"granted"`
}
