package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordTransition("activate", "success", 10*time.Millisecond)
	m.RecordTransition("activate", "duplicate_active_template", time.Millisecond)
	m.RecordPermissionDecision("can_manage_templates", false)
	m.RecordAuditFailure("template.created")
	m.SetTemplateCount("active", 3)
	m.RecordMembershipLookup("l1", "hit")
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/templates", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TemplateTransitionsTotal.WithLabelValues("activate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PermissionDecisionsTotal.WithLabelValues("can_manage_templates", "deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditFailuresTotal.WithLabelValues("template.created")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TemplatesByStatus.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MembershipLookupsTotal.WithLabelValues("l1", "hit")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("edit", "success", time.Second)
		m.RecordPermissionDecision("x", true)
		m.RecordAuditFailure("x")
		m.SetTemplateCount("draft", 1)
		m.RecordMembershipLookup("redis", "miss")
		m.RecordHTTPRequest("GET", "/", 200, time.Second)
	})
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.SetTemplateCount("draft", 2)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `dpp_templates{status="draft"} 2`))
}
