package action

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cashierlink/link-sdk-go/types"
)

// Metrics 执行引擎指标，使用独立 registry
type Metrics struct {
	registry      *prometheus.Registry
	executions    *prometheus.CounterVec
	intentResults *prometheus.CounterVec
	batchLatency  prometheus.Histogram
}

// NewMetrics 创建指标
func NewMetrics() *Metrics {
	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linksdk_action_executions_total",
		Help: "Action execute calls by outcome",
	}, []string{"outcome"})

	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linksdk_intent_results_total",
		Help: "Intent states observed after each execute",
	}, []string{"state"})

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linksdk_batch_call_seconds",
		Help:    "Signer batch call latency",
		Buckets: prometheus.DefBuckets,
	})

	r := prometheus.NewRegistry()
	r.MustRegister(executions, intents, latency)

	return &Metrics{
		registry:      r,
		executions:    executions,
		intentResults: intents,
		batchLatency:  latency,
	}
}

// Registry 底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) incExecution(outcome string) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeIntents(a types.Action) {
	if m == nil {
		return
	}
	for _, it := range a.Intents {
		m.intentResults.WithLabelValues(string(it.State)).Inc()
	}
}

func (m *Metrics) observeBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchLatency.Observe(d.Seconds())
}
