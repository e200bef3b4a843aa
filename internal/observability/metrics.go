package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/memipc/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	ipcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memipc",
			Subsystem: "ipc",
			Name:      "requests_total",
			Help:      "Total IPC requests by opcode and reply status.",
		},
		[]string{"op", "status"},
	)
	ipcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memipc",
			Subsystem: "ipc",
			Name:      "request_duration_seconds",
			Help:      "IPC dispatch duration in seconds.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
		[]string{"op"},
	)
	ipcConnections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memipc",
			Subsystem: "ipc",
			Name:      "connections_total",
			Help:      "Accepted IPC connections.",
		},
	)
	ipcActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "memipc",
			Subsystem: "ipc",
			Name:      "connection_active",
			Help:      "1 while a client connection is being served.",
		},
	)
	ipcWorkerExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memipc",
			Subsystem: "ipc",
			Name:      "worker_exits_total",
			Help:      "Accept worker terminations by reason.",
		},
		[]string{"reason"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memipc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memipc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ipcRequests, ipcDuration, ipcConnections, ipcActive, ipcWorkerExits,
			httpRequests, httpDuration,
		)
	})
}

func RecordIPCRequest(op, status string, duration time.Duration) {
	RegisterMetrics()
	ipcRequests.WithLabelValues(op, status).Inc()
	ipcDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordIPCConnection() {
	RegisterMetrics()
	ipcConnections.Inc()
}

func SetIPCConnectionActive(active bool) {
	RegisterMetrics()
	if active {
		ipcActive.Set(1)
		return
	}
	ipcActive.Set(0)
}

func RecordIPCWorkerExit(reason string) {
	RegisterMetrics()
	ipcWorkerExits.WithLabelValues(reason).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// ObserveDispatch has the shape of dispatch.Observer and feeds the IPC
// request metrics.
func ObserveDispatch(op protocol.Opcode, status protocol.Status, duration time.Duration) {
	name := "unknown"
	if op.Valid() {
		name = op.String()
	}
	RecordIPCRequest(name, status.String(), duration)
}
