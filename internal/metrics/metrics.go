package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketclient/pkg/apierr"
)

type Metrics struct {
	//Request duration histogram with method, path, and status labels
	RequestDuration *prometheus.HistogramVec
	//Auth attempts counter (register, login, verify_otp) with status label
	AuthAttempts *prometheus.CounterVec
	//Session invalidations counter (401 observed by the transport)
	SessionInvalidations prometheus.Counter
	//Token refresh attempts counter with status label
	TokenRefreshes *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		//Request duration histogram with method, path, and status labels
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "Duration of outgoing API requests in seconds.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
			[]string{"method", "path", "status"},
		),
		//Auth attempts counter with operation and status labels
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "client_auth_attempts_total",
			Help: "Total number of authentication attempts.",
		},
			[]string{"operation", "status"},
		),
		//Session invalidations counter
		SessionInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "client_session_invalidations_total",
			Help: "Number of sessions ended by a 401 from the server.",
		}),
		//Token refresh attempts counter with status label
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "client_token_refreshes_total",
			Help: "Number of single-flight token refresh attempts.",
		},
			[]string{"status"},
		),
	}
	// Register metrics with the provided registry
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.AuthAttempts)
	reg.MustRegister(m.SessionInvalidations)
	reg.MustRegister(m.TokenRefreshes)
	return m
}

// ObserveRequest is a helper method to record the duration and outcome of
// outgoing requests in a consistent way.
func (m *Metrics) ObserveRequest(method, path string, start time.Time, err error) {
	duration := time.Since(start).Seconds()

	status := "ok"
	if err != nil {
		if errors.Is(err, apierr.ErrNetwork) {
			status = "network_error"
		} else {
			status = "api_error"
		}
	}

	m.RequestDuration.WithLabelValues(method, path, status).Observe(duration)
}

// ObserveAuth records one attempt of an auth-mutating operation.
func (m *Metrics) ObserveAuth(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AuthAttempts.WithLabelValues(operation, status).Inc()
}
