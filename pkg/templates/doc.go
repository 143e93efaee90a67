// Package templates implements the lifecycle and versioning engine for
// Digital Product Passport templates.
//
// A template is one version of the regulatory data-entry form for a product
// category. Versions move through a fixed lifecycle:
//
//	(none) --create--> draft --activate--> active --archive--> archived
//	                   draft --delete----> (none)
//	                   active --create_successor--> new draft (version N+1)
//
// Only drafts are editable. At most one template per category is active, and
// activating the successor of the active version archives that version in the
// same transaction. Each field records the version in which it was introduced
// so data captured against older versions can be traced.
//
// Every operation authorizes the caller through an Authorizer before reading
// any state, runs inside one Store transaction, and reports failures as
// *Error values whose Kind can be matched with errors.Is against the
// exported sentinels:
//
//	_, err := svc.ActivateTemplate(ctx, session, id)
//	if errors.Is(err, templates.ErrDuplicateActiveTemplate) {
//	    // archive the other template first
//	}
//
// Audit records are written after commit on a background goroutine; use
// WaitForAudit to drain them.
package templates
