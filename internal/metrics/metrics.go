package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK        = "ok"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
	ResultSkipped   = "skipped"
)

// Metrics is safe to use as a nil pointer, every method is then a no-op
type Metrics struct {
	events         *prometheus.CounterVec
	handleDuration *prometheus.HistogramVec
	ethPriceUSD    prometheus.Gauge
	sinkRows       *prometheus.CounterVec
	broadcastErrs  prometheus.Counter
}

// New registers the indexer collectors; reg nil -> prometheus.DefaultRegisterer
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "clmm_indexer"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Pool events handled by kind and result.",
		}, []string{"kind", "result"}),
		handleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handle_seconds",
			Help:      "Time spent applying one event.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"kind"}),
		ethPriceUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eth_price_usd",
			Help:      "Reference asset price in USD stored in the bundle.",
		}),
		sinkRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_rows_total",
			Help:      "Rows sent to the analytics sink by table and result.",
		}, []string{"table", "result"}),
		broadcastErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_errors_total",
			Help:      "Failed bucket patch publications.",
		}),
	}

	reg.MustRegister(m.events, m.handleDuration, m.ethPriceUSD, m.sinkRows, m.broadcastErrs)
	return m
}

func (m *Metrics) ObserveEvent(kind, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, result).Inc()
	if result == ResultOK {
		m.handleDuration.WithLabelValues(kind).Observe(took.Seconds())
	}
}

func (m *Metrics) SetEthPriceUSD(v float64) {
	if m == nil {
		return
	}
	m.ethPriceUSD.Set(v)
}

func (m *Metrics) SinkRows(table, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sinkRows.WithLabelValues(table, result).Add(float64(n))
}

func (m *Metrics) BroadcastFailed() {
	if m == nil {
		return
	}
	m.broadcastErrs.Inc()
}

func Handler() http.Handler {
	h := promhttp.Handler()
	return h
}
