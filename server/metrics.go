package server

import "github.com/prometheus/client_golang/prometheus"

type serverMetrics struct {
	authRequests *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		authRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admin_session",
			Subsystem: "server",
			Name:      "auth_requests_total",
			Help:      "Auth endpoint calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
	reg.MustRegister(m.authRequests)
	return m
}

func (m *serverMetrics) observe(endpoint, outcome string) {
	m.authRequests.WithLabelValues(endpoint, outcome).Inc()
}
