package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsAndReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.ObserveProvider("text", "openai", "success", time.Second)
	r.ObserveProvider("text", "openai", "failure", time.Second)
	r.ObserveProvider("text", "unknown", "precondition", 0)
	r.JobFinished("succeeded")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerRequests.WithLabelValues("text", "openai", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobs.WithLabelValues("succeeded")))
	assert.Equal(t, 3, testutil.CollectAndCount(r.providerRequests))
	assert.Equal(t, 1, testutil.CollectAndCount(r.providerDuration), "precondition failures carry no latency")

	again, err := New(reg)
	require.NoError(t, err)
	again.JobFinished("succeeded")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.jobs.WithLabelValues("succeeded")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveProvider("image", "bfl_flux", "success", time.Second)
		r.JobFinished("failed")
	})
}
