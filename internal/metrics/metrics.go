// Package metrics exposes relay counters and latencies in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Outcome labels for relay requests.
const (
	OutcomeSuccess       = "success"
	OutcomeNoCredential  = "no_credential"
	OutcomeBadRequest    = "bad_request"
	OutcomeUpstreamError = "upstream_error"
	OutcomeInternalError = "internal_error"
)

// Recorder is what the HTTP handlers report to. A nil *Collector is a valid
// no-op Recorder, so metrics can be disabled without branching at call sites.
type Recorder interface {
	RecordRequest(outcome string)
	RecordUpstream(model string, statusCode int, duration time.Duration)
	RecordTokens(model string, prompt, completion int)
}

// Collector owns a private registry with the relay's metrics.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamStatus   *prometheus.CounterVec
	tokensTotal      *prometheus.CounterVec
}

// New creates a collector and registers its metrics, plus Go runtime and
// process collectors, on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Chat-completion relay requests by outcome",
			},
			[]string{"outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Duration of upstream chat-completion calls in seconds",
				// LLM latencies: 100ms to 60s
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		upstreamStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_responses_total",
				Help:      "Upstream HTTP responses by status code",
			},
			[]string{"code"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Tokens reported by upstream",
			},
			[]string{"model", "type"},
		),
	}

	c.registry.MustRegister(
		c.requestsTotal,
		c.upstreamDuration,
		c.upstreamStatus,
		c.tokensTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RecordRequest counts one relay request with its outcome.
func (c *Collector) RecordRequest(outcome string) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstream records one upstream round trip. statusCode 0 means the
// call failed before a response arrived.
func (c *Collector) RecordUpstream(model string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.upstreamDuration.WithLabelValues(model).Observe(duration.Seconds())
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	c.upstreamStatus.WithLabelValues(code).Inc()
}

// RecordTokens adds prompt and completion token counts.
func (c *Collector) RecordTokens(model string, prompt, completion int) {
	if c == nil {
		return
	}
	if prompt > 0 {
		c.tokensTotal.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		c.tokensTotal.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
