// Package api exposes the template engine over HTTP.
//
// # Routes
//
// Every route is mounted under /api/v1:
//
//	POST   /templates                                 create a version-1 draft
//	GET    /templates?category=&status=&q=             list templates
//	GET    /templates/{id}                            template with blocks and fields
//	PATCH  /templates/{id}                            edit draft metadata
//	DELETE /templates/{id}                            delete a draft
//	POST   /templates/{id}/activate                   draft to active
//	POST   /templates/{id}/archive                    active to archived
//	POST   /templates/{id}/versions                   successor draft of an active template
//	POST   /templates/{id}/blocks                     add a block
//	PATCH  /templates/{id}/blocks/{blockID}           edit a block
//	DELETE /templates/{id}/blocks/{blockID}           delete a block and its fields
//	POST   /templates/{id}/blocks/{blockID}/fields    add a field
//	PATCH  /templates/{id}/fields/{fieldID}           edit a field
//	DELETE /templates/{id}/fields/{fieldID}           delete a field
//	GET    /categories/{category}/active-template     active template of a category
//	GET    /me/permissions                            role and permissions of the caller
//
// # Sessions
//
// Callers are authenticated by the gateway in front of this service, which
// forwards the identity in the X-Actor-ID and X-Organization-ID headers.
//
// # Errors
//
// Engine errors are answered with {"error": message, "code": kind}:
//
//	forbidden                                   403
//	not_found                                   404
//	validation_error                            400
//	template_immutable, category_locked,
//	duplicate_active_template,
//	invalid_source_state, successor_conflict    409
//
// Anything else is logged and answered with 500 and a generic message.
package api
