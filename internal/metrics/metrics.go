package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service. It is passed
// explicitly to the components that record metrics. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	generationsTotal      *prometheus.CounterVec
	generationChunksTotal *prometheus.CounterVec
	deploymentsTotal      *prometheus.CounterVec
	deploymentSessions    prometheus.Gauge
	gasEstimate           prometheus.Gauge
	walletRequestsTotal   *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contractgen_generations_total",
				Help: "Total number of contract generations by chain and final status",
			},
			[]string{"chain", "status"},
		),
		generationChunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contractgen_generation_chunks_total",
				Help: "Total number of streamed completion chunks appended to a response",
			},
			[]string{"chain"},
		),
		deploymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contractgen_deployments_total",
				Help: "Total number of deployment outcome transitions by chain and status",
			},
			[]string{"chain", "status"},
		),
		deploymentSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "contractgen_deployment_sessions",
				Help: "Number of open deployment sessions",
			},
		),
		gasEstimate: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "contractgen_gas_estimate",
				Help: "Last simulated gas estimate shown to users",
			},
		),
		walletRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contractgen_wallet_requests_total",
				Help: "Total number of wallet bridge requests by kind and result",
			},
			[]string{"kind", "result"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contractgen_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) RecordGeneration(chain, status string) {
	if m == nil {
		return
	}
	m.generationsTotal.WithLabelValues(chain, status).Inc()
}

func (m *Metrics) RecordGenerationChunk(chain string) {
	if m == nil {
		return
	}
	m.generationChunksTotal.WithLabelValues(chain).Inc()
}

func (m *Metrics) RecordDeployment(chain, status string) {
	if m == nil {
		return
	}
	m.deploymentsTotal.WithLabelValues(chain, status).Inc()
}

func (m *Metrics) DeploymentSessionOpened() {
	if m == nil {
		return
	}
	m.deploymentSessions.Inc()
}

func (m *Metrics) DeploymentSessionClosed() {
	if m == nil {
		return
	}
	m.deploymentSessions.Dec()
}

func (m *Metrics) SetGasEstimate(value int) {
	if m == nil {
		return
	}
	m.gasEstimate.Set(float64(value))
}

func (m *Metrics) RecordWalletRequest(kind, result string) {
	if m == nil {
		return
	}
	m.walletRequestsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
