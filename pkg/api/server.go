package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/httputil"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/middleware"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

// APIPrefix is the path prefix of every route served by Server
const APIPrefix = "/api/v1"

// TemplateService is the subset of templates.Service used by the handlers
type TemplateService interface {
	CreateTemplate(ctx context.Context, session rbac.Session, req templates.CreateTemplateRequest) (*templates.Template, error)
	GetTemplate(ctx context.Context, session rbac.Session, id string) (*templates.Template, error)
	ListTemplates(ctx context.Context, session rbac.Session, filter templates.ListFilter) ([]*templates.Template, error)
	ActiveTemplateForCategory(ctx context.Context, session rbac.Session, category string) (*templates.Template, error)
	UpdateTemplate(ctx context.Context, session rbac.Session, id string, req templates.UpdateTemplateRequest) (*templates.Template, error)
	ActivateTemplate(ctx context.Context, session rbac.Session, id string) (*templates.Template, error)
	ArchiveTemplate(ctx context.Context, session rbac.Session, id string) (*templates.Template, error)
	DeleteTemplate(ctx context.Context, session rbac.Session, id string) error
	CreateSuccessorVersion(ctx context.Context, session rbac.Session, sourceID string) (string, error)

	AddBlock(ctx context.Context, session rbac.Session, templateID string, in templates.BlockInput) (*templates.Block, error)
	UpdateBlock(ctx context.Context, session rbac.Session, templateID, blockID string, req templates.UpdateBlockRequest) (*templates.Block, error)
	DeleteBlock(ctx context.Context, session rbac.Session, templateID, blockID string) error
	AddField(ctx context.Context, session rbac.Session, templateID, blockID string, in templates.FieldInput) (*templates.Field, error)
	UpdateField(ctx context.Context, session rbac.Session, templateID, fieldID string, req templates.UpdateFieldRequest) (*templates.Field, error)
	DeleteField(ctx context.Context, session rbac.Session, templateID, fieldID string) error
}

// PermissionReader resolves the role and permission set of a session
type PermissionReader interface {
	Permissions(ctx context.Context, session rbac.Session) (rbac.Role, rbac.PermissionSet, error)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// Options configures the optional collaborators of a Server
type Options struct {
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	RateLimit *middleware.RateLimitMiddleware
	// Registrars mount additional route groups, such as the audit API,
	// under the same prefix and middleware chain
	Registrars []RouteRegistrar
}

// Server serves the template HTTP API
type Server struct {
	service     TemplateService
	permissions PermissionReader
	router      *mux.Router
	api         *mux.Router
	logger      *observability.Logger
}

// NewServer creates a new API server
func NewServer(service TemplateService, permissions PermissionReader, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Server{
		service:     service,
		permissions: permissions,
		router:      mux.NewRouter(),
		logger:      logger,
	}
	s.api = s.router.PathPrefix(APIPrefix).Subrouter()

	// mux runs these after route matching so the logging middleware sees
	// the path template
	s.api.Use(
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware(opts.Metrics),
		httputil.RecoveryMiddleware,
		middleware.SessionMiddleware,
	)
	if opts.RateLimit != nil {
		s.api.Use(opts.RateLimit.Handler)
	}

	s.setupRoutes()
	for _, registrar := range opts.Registrars {
		s.RegisterRoutes(registrar)
	}
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Template routes
	s.api.HandleFunc("/templates", s.createTemplate).Methods(http.MethodPost)
	s.api.HandleFunc("/templates", s.listTemplates).Methods(http.MethodGet)
	s.api.HandleFunc("/templates/{id}", s.getTemplate).Methods(http.MethodGet)
	s.api.HandleFunc("/templates/{id}", s.updateTemplate).Methods(http.MethodPatch)
	s.api.HandleFunc("/templates/{id}", s.deleteTemplate).Methods(http.MethodDelete)

	// Lifecycle routes
	s.api.HandleFunc("/templates/{id}/activate", s.activateTemplate).Methods(http.MethodPost)
	s.api.HandleFunc("/templates/{id}/archive", s.archiveTemplate).Methods(http.MethodPost)
	s.api.HandleFunc("/templates/{id}/versions", s.createSuccessorVersion).Methods(http.MethodPost)

	// Block and field routes
	s.api.HandleFunc("/templates/{id}/blocks", s.addBlock).Methods(http.MethodPost)
	s.api.HandleFunc("/templates/{id}/blocks/{blockID}", s.updateBlock).Methods(http.MethodPatch)
	s.api.HandleFunc("/templates/{id}/blocks/{blockID}", s.deleteBlock).Methods(http.MethodDelete)
	s.api.HandleFunc("/templates/{id}/blocks/{blockID}/fields", s.addField).Methods(http.MethodPost)
	s.api.HandleFunc("/templates/{id}/fields/{fieldID}", s.updateField).Methods(http.MethodPatch)
	s.api.HandleFunc("/templates/{id}/fields/{fieldID}", s.deleteField).Methods(http.MethodDelete)

	s.api.HandleFunc("/categories/{category}/active-template", s.activeTemplateForCategory).Methods(http.MethodGet)
	s.api.Handle("/me/permissions", rbac.RequireSession(http.HandlerFunc(s.myPermissions))).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRoutes registers routes from a RouteRegistrar under the API prefix
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.api)
}
