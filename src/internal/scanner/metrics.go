package scanner

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 扫描服务的 Prometheus 指标集，使用独立 registry
type Metrics struct {
	registry *prometheus.Registry

	ScansStarted   prometheus.Counter
	ScansCompleted prometheus.Counter
	ScansFailed    prometheus.Counter
	CacheHits      prometheus.Counter
	Attestations   *prometheus.CounterVec
	ScanDuration   prometheus.Histogram
}

// NewMetrics 创建并注册全部指标
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		ScansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinioscan",
			Name:      "scans_started_total",
			Help:      "Number of scans started.",
		}),
		ScansCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinioscan",
			Name:      "scans_completed_total",
			Help:      "Number of scans that produced a report.",
		}),
		ScansFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinioscan",
			Name:      "scans_failed_total",
			Help:      "Number of scans that ended in a fatal error.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinioscan",
			Name:      "cache_hits_total",
			Help:      "Number of scans served from the report cache.",
		}),
		Attestations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pinioscan",
			Name:      "attestations_total",
			Help:      "On-chain attestation outcomes.",
		}, []string{"result"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pinioscan",
			Name:      "scan_duration_seconds",
			Help:      "End-to-end scan duration.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
	}

	registry.MustRegister(m.ScansStarted, m.ScansCompleted, m.ScansFailed,
		m.CacheHits, m.Attestations, m.ScanDuration)
	return m
}

// Handler /metrics 的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
