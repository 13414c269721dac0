package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "postcraft"

// Recorder exports provider and job metrics. A nil *Recorder is a no-op.
type Recorder struct {
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	jobs             *prometheus.CounterVec
}

// New registers the collectors on reg, reusing ones that are already registered.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider invocations by capability, provider and outcome.",
		}, []string{"capability", "provider", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Latency of provider invocations.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"capability", "provider"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_jobs_total",
			Help:      "Async generation jobs by final status.",
		}, []string{"status"}),
	}

	var err error
	if r.providerRequests, err = register(reg, r.providerRequests); err != nil {
		return nil, err
	}
	if r.providerDuration, err = register(reg, r.providerDuration); err != nil {
		return nil, err
	}
	if r.jobs, err = register(reg, r.jobs); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveProvider records one provider call. outcome is "success", "failure" or
// the failure kind of a call that never reached the provider.
func (r *Recorder) ObserveProvider(capability, provider, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.providerRequests.WithLabelValues(capability, provider, outcome).Inc()
	if outcome == "success" || outcome == "failure" {
		r.providerDuration.WithLabelValues(capability, provider).Observe(took.Seconds())
	}
}

func (r *Recorder) JobFinished(status string) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(status).Inc()
}
