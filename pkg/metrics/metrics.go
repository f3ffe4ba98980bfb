package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amoylab/grimrelay/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	namespace   string
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	httpInfl    *prometheus.GaugeVec
	connOpen    *prometheus.GaugeVec
	connTotal   *prometheus.CounterVec
	rejectCnt   *prometheus.CounterVec
	msgCnt      *prometheus.CounterVec
	msgDur      *prometheus.HistogramVec
	droppedCnt  *prometheus.CounterVec
	fanoutCnt   *prometheus.CounterVec
	deliveryCnt *prometheus.CounterVec
	sessions    prometheus.Gauge
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	// Register basic HTTP metrics
	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	// Connection metrics
	connOpen := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "connections_open"}, []string{"role"})
	connTotal := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "connections_total"}, []string{"role"})
	rejectCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "admissions_rejected_total"}, []string{"reason"})
	r.MustRegister(connOpen, connTotal, rejectCnt)

	// Message and fan-out metrics
	msgCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "messages_total"}, []string{"kind"})
	msgDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "message_duration_seconds", Buckets: cfg.Buckets}, []string{"kind"})
	droppedCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "messages_dropped_total"}, []string{"reason"})
	fanoutCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "broadcast_attempted_total"}, []string{"kind"})
	deliveryCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "broadcast_delivered_total"}, []string{"kind"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "sessions_active"})
	r.MustRegister(msgCnt, msgDur, droppedCnt, fanoutCnt, deliveryCnt, sessions)

	return &Metrics{
		registry:    r,
		namespace:   ns,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		httpInfl:    httpInfl,
		connOpen:    connOpen,
		connTotal:   connTotal,
		rejectCnt:   rejectCnt,
		msgCnt:      msgCnt,
		msgDur:      msgDur,
		droppedCnt:  droppedCnt,
		fanoutCnt:   fanoutCnt,
		deliveryCnt: deliveryCnt,
		sessions:    sessions,
	}
}

func (m *Metrics) ConnectionOpened(role string) {
	m.connOpen.WithLabelValues(role).Inc()
	m.connTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) ConnectionClosed(role string) {
	m.connOpen.WithLabelValues(role).Dec()
}

// ConnectionRebound moves an open connection between role gauges.
func (m *Metrics) ConnectionRebound(from, to string) {
	m.connOpen.WithLabelValues(from).Dec()
	m.connOpen.WithLabelValues(to).Inc()
}

func (m *Metrics) AdmissionRejected(reason string) {
	m.rejectCnt.WithLabelValues(reason).Inc()
}

func (m *Metrics) MessageHandled(kind string, since time.Time) {
	m.msgCnt.WithLabelValues(kind).Inc()
	m.msgDur.WithLabelValues(kind).Observe(time.Since(since).Seconds())
}

func (m *Metrics) MessageDropped(reason string) {
	m.droppedCnt.WithLabelValues(reason).Inc()
}

func (m *Metrics) Broadcasted(kind string, attempted, delivered int) {
	m.fanoutCnt.WithLabelValues(kind).Add(float64(attempted))
	m.deliveryCnt.WithLabelValues(kind).Add(float64(delivered))
}

func (m *Metrics) SessionsActive(n int) {
	m.sessions.Set(float64(n))
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatus(code int) string { return strconv.Itoa(code) }
