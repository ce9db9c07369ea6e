// Package metrics instruments the relay scheduler with prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	reg *prometheus.Registry

	activeTasks    prometheus.Gauge
	ticks          prometheus.Counter
	tickFailures   prometheus.Counter
	degraded       prometheus.Counter
	published      prometheus.Counter
	publishDropped prometheus.Counter
	expired        prometheus.Counter
	fetchLatency   prometheus.Histogram
	publishLatency prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assetlink_active_tasks",
			Help: "Number of currently scheduled relay tasks",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlink_relay_ticks_total",
			Help: "Number of relay ticks executed",
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlink_relay_tick_failures_total",
			Help: "Number of relay ticks that failed to fetch",
		}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlink_tasks_degraded_total",
			Help: "Number of degraded-task warnings raised",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlink_results_published_total",
			Help: "Number of relay results delivered to the live channel",
		}),
		publishDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlink_results_dropped_total",
			Help: "Number of relay results dropped because the transport was unavailable",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlink_tasks_expired_total",
			Help: "Number of tasks retired by the expiry sweep",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assetlink_fetch_latency_seconds",
			Help:    "Latency of asset property fetches",
			Buckets: prometheus.DefBuckets,
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assetlink_publish_latency_seconds",
			Help:    "Latency of live channel publishes",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.activeTasks, m.ticks, m.tickFailures, m.degraded,
		m.published, m.publishDropped, m.expired, m.fetchLatency, m.publishLatency)
	return m
}

// Registry exposes the underlying registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) SetActiveTasks(n int) {
	if m == nil {
		return
	}
	m.activeTasks.Set(float64(n))
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) TickFailed() {
	if m == nil {
		return
	}
	m.tickFailures.Inc()
}

func (m *Metrics) TaskDegraded() {
	if m == nil {
		return
	}
	m.degraded.Inc()
}

func (m *Metrics) ResultPublished(took time.Duration) {
	if m == nil {
		return
	}
	m.published.Inc()
	m.publishLatency.Observe(took.Seconds())
}

func (m *Metrics) ResultDropped() {
	if m == nil {
		return
	}
	m.publishDropped.Inc()
}

func (m *Metrics) TaskExpired() {
	if m == nil {
		return
	}
	m.expired.Inc()
}

func (m *Metrics) FetchObserved(took time.Duration) {
	if m == nil {
		return
	}
	m.fetchLatency.Observe(took.Seconds())
}
