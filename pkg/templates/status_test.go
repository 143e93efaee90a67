package templates_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/templates"
)

func TestStartStatusReporter(t *testing.T) {
	f := newFixture(t)
	f.activeTextile(t)

	c, err := templates.StartStatusReporter(f.svc, "@every 1m")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	// gauges are filled without waiting for the first tick
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.TemplatesByStatus.WithLabelValues("active")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	<-c.Stop().Done()

	_, err = templates.StartStatusReporter(f.svc, "every minute please")
	assert.Error(t, err)
}
