package audit

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/httputil"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
)

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

// Authorizer gates the audit trail behind can_view_audit_logs
type Authorizer = rbac.Authorizer

// Handlers provides HTTP handlers for the audit log API
type Handlers struct {
	searcher Searcher
	authz    Authorizer
}

// NewHandlers creates new audit handlers
func NewHandlers(searcher Searcher, authz Authorizer) *Handlers {
	return &Handlers{searcher: searcher, authz: authz}
}

// RegisterRoutes registers audit log routes. Both routes require
// can_view_audit_logs; events are always scoped to the caller's organization.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	sub := router.PathPrefix("/audit").Subrouter()
	sub.Use(rbac.NewPermissionMiddleware(h.authz).RequirePermission(rbac.ResourceAuditLog, rbac.ActionRead))
	sub.HandleFunc("/events", h.listEvents).Methods(http.MethodGet)
	sub.HandleFunc("/export", h.exportEvents).Methods(http.MethodGet)
}

// listEvents handles GET /audit/events
func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	session := rbac.SessionFromContext(r.Context())

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.OrganizationID = session.OrganizationID

	events, err := h.searcher.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to search audit events")
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// exportEvents handles GET /audit/export
func (h *Handlers) exportEvents(w http.ResponseWriter, r *http.Request) {
	session := rbac.SessionFromContext(r.Context())

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.OrganizationID = session.OrganizationID

	format := ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = ExportFormatJSON
	}

	events, err := h.searcher.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to search audit events")
		return
	}

	data, err := Export(events, format)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to export audit events")
		return
	}

	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.json")
	}

	w.Write(data)
}

// parseFilter parses search filter from query parameters
func parseFilter(r *http.Request) (SearchFilter, error) {
	query := r.URL.Query()
	filter := SearchFilter{}

	if startStr := query.Get("start_time"); startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return filter, errors.New("start_time must be RFC3339")
		}
		filter.StartTime = &t
	}

	if endStr := query.Get("end_time"); endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return filter, errors.New("end_time must be RFC3339")
		}
		filter.EndTime = &t
	}

	filter.ActorID = query.Get("actor_id")

	for _, et := range strings.Split(query.Get("event_types"), ",") {
		if et = strings.TrimSpace(et); et != "" {
			filter.EventTypes = append(filter.EventTypes, EventType(et))
		}
	}

	if statusStr := query.Get("status"); statusStr != "" {
		status := EventStatus(statusStr)
		filter.Status = &status
	}

	filter.ResourceType = ResourceType(query.Get("resource_type"))
	filter.ResourceID = query.Get("resource_id")

	limit, err := httputil.ParseQueryInt(r, "limit", defaultSearchLimit)
	if err != nil {
		return filter, err
	}
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}
	filter.Limit = limit

	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		return filter, err
	}
	if offset < 0 {
		return filter, errors.New("offset must not be negative")
	}
	filter.Offset = offset

	filter.SortOrder = strings.ToLower(query.Get("sort_order"))
	if filter.SortOrder != "asc" {
		filter.SortOrder = "desc"
	}

	return filter, nil
}
