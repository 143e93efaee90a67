package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/httputil"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/middleware"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

// addBlock handles POST /templates/{id}/blocks
func (s *Server) addBlock(w http.ResponseWriter, r *http.Request) {
	var in templates.BlockInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	block, err := s.service.AddBlock(r.Context(), middleware.SessionFromRequest(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, block)
}

// updateBlock handles PATCH /templates/{id}/blocks/{blockID}
func (s *Server) updateBlock(w http.ResponseWriter, r *http.Request) {
	var req templates.UpdateBlockRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	block, err := s.service.UpdateBlock(r.Context(), middleware.SessionFromRequest(r), vars["id"], vars["blockID"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, block)
}

// deleteBlock handles DELETE /templates/{id}/blocks/{blockID}
func (s *Server) deleteBlock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.service.DeleteBlock(r.Context(), middleware.SessionFromRequest(r), vars["id"], vars["blockID"]); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// addField handles POST /templates/{id}/blocks/{blockID}/fields
func (s *Server) addField(w http.ResponseWriter, r *http.Request) {
	var in templates.FieldInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	vars := mux.Vars(r)
	field, err := s.service.AddField(r.Context(), middleware.SessionFromRequest(r), vars["id"], vars["blockID"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, field)
}

// updateField handles PATCH /templates/{id}/fields/{fieldID}
func (s *Server) updateField(w http.ResponseWriter, r *http.Request) {
	var req templates.UpdateFieldRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	field, err := s.service.UpdateField(r.Context(), middleware.SessionFromRequest(r), vars["id"], vars["fieldID"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, field)
}

// deleteField handles DELETE /templates/{id}/fields/{fieldID}
func (s *Server) deleteField(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.service.DeleteField(r.Context(), middleware.SessionFromRequest(r), vars["id"], vars["fieldID"]); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
