package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(RenderRuns.WithLabelValues("pass"))
	IncRenderRun("pass")
	assert.Equal(t, before+1, testutil.ToFloat64(RenderRuns.WithLabelValues("pass")))

	before = testutil.ToFloat64(RequestStatusChanges.WithLabelValues("pending", "failed"))
	IncRequestStatusChange("pending", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(RequestStatusChanges.WithLabelValues("pending", "failed")))

	before = testutil.ToFloat64(LLMFallbacks)
	IncLLMFallback()
	assert.Equal(t, before+1, testutil.ToFloat64(LLMFallbacks))
}

func TestGaugesMoveBothWays(t *testing.T) {
	before := testutil.ToFloat64(ActiveRequests)
	IncActiveRequests()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveRequests))
	DecActiveRequests()
	assert.Equal(t, before, testutil.ToFloat64(ActiveRequests))

	before = testutil.ToFloat64(WebsocketConnections)
	IncWSConnections()
	DecWSConnections()
	assert.Equal(t, before, testutil.ToFloat64(WebsocketConnections))
}
