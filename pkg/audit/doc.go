// Package audit records template mutations for compliance review.
//
// # Overview
//
// Every committed change to a template, block, or field produces one
// AuditEvent carrying the acting user, the organization and request the
// change came from, and the before/after state of the entity.
//
// # Loggers
//
// DBLogger writes to the audit_logs table (see GetMigrations) and supports
// Search. LogrusLogger writes structured log lines. MultiLogger fans out to
// several loggers, synchronously or asynchronously.
//
// # Usage Example
//
// Wire the engine's audit sink:
//
//	dbLogger, _ := audit.NewDBLogger(db, sqlstore.DialectPostgres)
//	multi := audit.NewMultiLogger(dbLogger, audit.NewLogrusLogger(logger))
//	multi.SetAsync(false)
//	svc := templates.NewService(store, checker,
//		templates.WithAuditSink(audit.NewRecorder(multi)))
//
// Search audit logs:
//
//	events, err := dbLogger.Search(ctx, audit.SearchFilter{
//		EventTypes: []audit.EventType{audit.EventTypeTemplateStatusChanged},
//		ResourceID: templateID,
//		Limit:      50,
//	})
//
// # Export
//
// Export renders events as JSON, NDJSON or CSV; Handlers exposes search and
// export over HTTP, gated by can_view_audit_logs.
package audit
