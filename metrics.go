package hopon

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the Client. All record methods are nil-safe so an
// uninstrumented client pays nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	refreshes prometheus.Counter
}

// NewMetrics creates the client metric set and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hopon_client_requests_total",
			Help: "API requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hopon_client_request_failures_total",
			Help: "API requests that failed before a response arrived.",
		}, []string{"method", "path"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hopon_client_retries_total",
			Help: "Requests retried after a successful token refresh.",
		}, []string{"method", "path"}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hopon_client_token_refreshes_total",
			Help: "Successful silent token refreshes.",
		}),
	}

	reg.MustRegister(m.requests, m.failures, m.retries, m.refreshes)

	return m
}

func (m *Metrics) observeRequest(method, path string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func (m *Metrics) observeFailure(method, path string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(method, path).Inc()
}

func (m *Metrics) observeRetry(method, path string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method, path).Inc()
}

func (m *Metrics) observeRefresh() {
	if m == nil {
		return
	}
	m.refreshes.Inc()
}
