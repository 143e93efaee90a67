package templates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/async"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/contextkeys"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/rbac"
)

const tracerName = "github.com/info-creator-nilreb/dpp-sub002/pkg/templates"

// Authorizer guards every operation before any state is read
type Authorizer interface {
	RequirePermission(ctx context.Context, session rbac.Session, resource rbac.Resource, action rbac.Action) error
}

// AuditSink receives a record after every committed mutation. Records are
// written asynchronously; a failing sink never undoes the mutation.
type AuditSink interface {
	Record(ctx context.Context, action, entityID, actorID string, oldValue, newValue interface{}) error
}

// Audit actions
const (
	AuditTemplateCreated       = "template.created"
	AuditTemplateUpdated       = "template.updated"
	AuditTemplateStatusChanged = "template.status_changed"
	AuditTemplateDeleted       = "template.deleted"
	AuditTemplateVersioned     = "template.version_created"
	AuditBlockAdded            = "template.block_added"
	AuditBlockUpdated          = "template.block_updated"
	AuditBlockDeleted          = "template.block_deleted"
	AuditFieldAdded            = "template.field_added"
	AuditFieldUpdated          = "template.field_updated"
	AuditFieldDeleted          = "template.field_deleted"
)

// Service implements the template lifecycle and versioning operations.
// Every operation authorizes first, then runs inside one store transaction
// that re-reads the template under a write lock and re-validates its guards.
type Service struct {
	store        Store
	authz        Authorizer
	audit        AuditSink
	keys         KeyStrategy
	now          func() time.Time
	logger       *observability.Logger
	metrics      *observability.Metrics
	tracer       trace.Tracer
	auditTimeout time.Duration
	pending      async.Tracker
}

// Option configures a Service
type Option func(*Service)

// WithAuditSink sets the audit sink
func WithAuditSink(sink AuditSink) Option {
	return func(s *Service) { s.audit = sink }
}

// WithKeyStrategy replaces the field key strategy
func WithKeyStrategy(keys KeyStrategy) Option {
	return func(s *Service) {
		if keys != nil {
			s.keys = keys
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithTracer replaces the OpenTelemetry tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithAuditTimeout bounds each asynchronous audit write
func WithAuditTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.auditTimeout = d
		}
	}
}

// NewService creates a template service
func NewService(store Store, authz Authorizer, opts ...Option) *Service {
	s := &Service{
		store:        store,
		authz:        authz,
		keys:         DefaultKeyStrategy(),
		now:          time.Now,
		logger:       observability.NopLogger(),
		tracer:       otel.Tracer(tracerName),
		auditTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WaitForAudit blocks until every pending audit write finished or ctx is done
func (s *Service) WaitForAudit(ctx context.Context) error {
	return s.pending.Wait(ctx)
}

// start opens a span and returns a finisher that records the outcome
func (s *Service) start(ctx context.Context, op, metricLabel string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	begin := time.Now()
	ctx, span := s.tracer.Start(ctx, "templates."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		outcome := "success"
		if err != nil {
			outcome = string(KindOf(err))
			if outcome == "" {
				outcome = "error"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
		s.metrics.RecordTransition(metricLabel, outcome, time.Since(begin))
	}
}

// authorize maps every authorizer failure to Forbidden
func (s *Service) authorize(ctx context.Context, session rbac.Session, resource rbac.Resource, action rbac.Action, op string) error {
	if s.authz == nil {
		return forbidden(op)
	}
	if err := s.authz.RequirePermission(ctx, session, resource, action); err != nil {
		if !errors.Is(err, rbac.ErrForbidden) {
			s.logger.WithError(err).WithField("op", op).Error("authorization check failed, denying")
		}
		return forbidden(op)
	}
	return nil
}

// storeError turns store-level uniqueness violations into typed errors and
// wraps everything else
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) && typed.Op != "" {
		return err
	}
	switch {
	case errors.Is(err, ErrDuplicateActiveTemplate):
		return &Error{
			Kind:    KindDuplicateActiveTemplate,
			Op:      op,
			Message: "another template is already active in this category; archive it or activate a successor version of it",
			Err:     err,
		}
	case errors.Is(err, ErrSuccessorConflict):
		return &Error{
			Kind:    KindSuccessorConflict,
			Op:      op,
			Message: "a new version of this template already exists; edit that draft instead",
			Err:     err,
		}
	case errors.As(err, &typed):
		return withOp(err, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// record dispatches an audit record without blocking the caller
func (s *Service) record(ctx context.Context, action, entityID string, session rbac.Session, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}

	// callers outside the HTTP layer have no organization on the context
	ctx = context.WithoutCancel(ctx)
	if session.OrganizationID != "" {
		ctx = contextkeys.WithOrganizationID(ctx, session.OrganizationID)
	}
	s.pending.Go(ctx, s.auditTimeout, "audit "+action, func(ctx context.Context) error {
		if err := s.audit.Record(ctx, action, entityID, session.ActorID, oldValue, newValue); err != nil {
			s.metrics.RecordAuditFailure(action)
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"action":    action,
				"entity_id": entityID,
				"actor_id":  session.ActorID,
			}).Error("failed to write audit record")
		}
		return nil
	})
}

// snapshot copies a template so async audit writes never see later mutations
func snapshot(t *Template) *Template {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Blocks != nil {
		cp.Blocks = make([]Block, len(t.Blocks))
		for i, b := range t.Blocks {
			cp.Blocks[i] = b
			cp.Blocks[i].Fields = append([]Field(nil), b.Fields...)
		}
	}
	return &cp
}

func loadTemplate(ctx context.Context, tx Tx, op, id string, forUpdate bool) (*Template, error) {
	t, err := tx.FindTemplate(ctx, id, forUpdate)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load template: %w", op, err)
	}
	if t == nil {
		return nil, notFound(op, "template", id)
	}
	return t, nil
}

func withBlocks(ctx context.Context, tx Tx, t *Template) (*Template, error) {
	blocks, err := tx.ListBlocksWithFields(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	t.Blocks = blocks
	return t, nil
}
