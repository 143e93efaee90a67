package api

import (
	"net/http"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/httputil"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

// statusForKind maps engine error kinds to HTTP status codes
var statusForKind = map[templates.Kind]int{
	templates.KindForbidden:               http.StatusForbidden,
	templates.KindNotFound:                http.StatusNotFound,
	templates.KindValidation:              http.StatusBadRequest,
	templates.KindTemplateImmutable:       http.StatusConflict,
	templates.KindCategoryLocked:          http.StatusConflict,
	templates.KindDuplicateActiveTemplate: http.StatusConflict,
	templates.KindInvalidSourceState:      http.StatusConflict,
	templates.KindSuccessorConflict:       http.StatusConflict,
}

// writeError translates an engine error into a response. Forbidden answers
// never reveal whether the resource exists; untyped errors are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := templates.KindOf(err)
	status, ok := statusForKind[kind]
	if !ok {
		observability.FromContext(r.Context()).WithError(err).Error("unexpected template engine error")
		httputil.WriteInternalError(w)
		return
	}

	message := err.Error()
	if kind == templates.KindForbidden {
		message = "forbidden"
	}
	httputil.WriteErrorCode(w, status, string(kind), message)
}
