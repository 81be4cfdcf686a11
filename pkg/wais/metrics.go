package wais

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all wais Prometheus metrics on an isolated registry so
// they never collide with the global default registry (grounded on
// pkg/p2pnet/metrics.go's NewMetrics shape). This is additive
// observability (SPEC_FULL.md §6), not one of spec.md's functional
// components — every observe* method tolerates a nil receiver so callers
// that don't care about metrics (most unit tests) can pass nil. Handler
// does not.
type Metrics struct {
	Registry *prometheus.Registry

	AnnouncesSentTotal     prometheus.Counter
	AnnouncesReceivedTotal *prometheus.CounterVec
	PeerCacheSize          prometheus.Gauge
	RequestsTotal          *prometheus.CounterVec
	TransfersTotal         *prometheus.CounterVec
	BytesSentTotal         prometheus.Counter
	BytesReceivedTotal     prometheus.Counter
	CompressionRatio       prometheus.Histogram
	BuildInfo              *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance with all collectors registered on
// a fresh registry.
func NewMetrics(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		AnnouncesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wais_announces_sent_total",
			Help: "Total number of announces emitted by this node.",
		}),
		AnnouncesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wais_announces_received_total",
			Help: "Total number of announces observed, by filter outcome.",
		}, []string{"outcome"}),
		PeerCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wais_peer_cache_size",
			Help: "Current number of peers tracked in PeerCache.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wais_requests_total",
			Help: "Total number of requests handled, by action and status.",
		}, []string{"action", "status"}),
		TransfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wais_transfers_total",
			Help: "Total number of file transfers, by result.",
		}, []string{"result"}),
		BytesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wais_bytes_sent_total",
			Help: "Total wire bytes sent by FileSender.",
		}),
		BytesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wais_bytes_received_total",
			Help: "Total wire bytes received by FileReceiver.",
		}),
		CompressionRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wais_compression_ratio",
			Help:    "Ratio of wire size to original size for compressed transfers.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wais_info",
			Help: "Build information for the running wais instance.",
		}, []string{"version", "go_version"}),
	}

	reg.MustRegister(
		m.AnnouncesSentTotal,
		m.AnnouncesReceivedTotal,
		m.PeerCacheSize,
		m.RequestsTotal,
		m.TransfersTotal,
		m.BytesSentTotal,
		m.BytesReceivedTotal,
		m.CompressionRatio,
		m.BuildInfo,
	)
	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// Handler returns an http.Handler serving the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeTransfer(result string) {
	if m == nil {
		return
	}
	m.TransfersTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeBytes(n int64) {
	if m == nil {
		return
	}
	m.BytesSentTotal.Add(float64(n))
}

func (m *Metrics) observeRequest(action, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(action, status).Inc()
}

func (m *Metrics) observeAnnounceReceived(outcome string) {
	if m == nil {
		return
	}
	m.AnnouncesReceivedTotal.WithLabelValues(outcome).Inc()
}
