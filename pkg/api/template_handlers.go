package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/httputil"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/middleware"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

// createTemplate handles POST /templates
func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req templates.CreateTemplateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tpl, err := s.service.CreateTemplate(r.Context(), middleware.SessionFromRequest(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, tpl)
}

// listTemplates handles GET /templates
func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter := templates.ListFilter{
		Category: httputil.ParseQueryString(r, "category", ""),
		Status:   templates.Status(httputil.ParseQueryString(r, "status", "")),
		Search:   httputil.ParseQueryString(r, "q", ""),
		Limit:    limit,
		Offset:   offset,
	}

	list, err := s.service.ListTemplates(r.Context(), middleware.SessionFromRequest(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*templates.Template{}
	}
	httputil.WriteSuccess(w, ListTemplatesResponse{Templates: list, Count: len(list)})
}

// getTemplate handles GET /templates/{id}
func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.service.GetTemplate(r.Context(), middleware.SessionFromRequest(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newTemplateResponse(tpl))
}

// updateTemplate handles PATCH /templates/{id}
func (s *Server) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templates.UpdateTemplateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tpl, err := s.service.UpdateTemplate(r.Context(), middleware.SessionFromRequest(r), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tpl)
}

// deleteTemplate handles DELETE /templates/{id}
func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTemplate(r.Context(), middleware.SessionFromRequest(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// activateTemplate handles POST /templates/{id}/activate
func (s *Server) activateTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.service.ActivateTemplate(r.Context(), middleware.SessionFromRequest(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tpl)
}

// archiveTemplate handles POST /templates/{id}/archive
func (s *Server) archiveTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.service.ArchiveTemplate(r.Context(), middleware.SessionFromRequest(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tpl)
}

// createSuccessorVersion handles POST /templates/{id}/versions
func (s *Server) createSuccessorVersion(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["id"]
	id, err := s.service.CreateSuccessorVersion(r.Context(), middleware.SessionFromRequest(r), sourceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/templates/"+id)
	httputil.WriteCreated(w, SuccessorResponse{ID: id, SourceID: sourceID})
}

// activeTemplateForCategory handles GET /categories/{category}/active-template
func (s *Server) activeTemplateForCategory(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.service.ActiveTemplateForCategory(r.Context(), middleware.SessionFromRequest(r), mux.Vars(r)["category"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newTemplateResponse(tpl))
}

// myPermissions handles GET /me/permissions. RequireSession runs first.
func (s *Server) myPermissions(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromRequest(r)
	role, perms, err := s.permissions.Permissions(r.Context(), session)
	if err != nil {
		s.logger.WithError(err).WithField("actor_id", session.ActorID).Error("failed to resolve permissions")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteSuccess(w, PermissionsResponse{
		ActorID:        session.ActorID,
		OrganizationID: session.OrganizationID,
		Role:           role,
		Permissions:    perms,
		Granted:        perms.List(),
	})
}
