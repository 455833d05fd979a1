package interceptor

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts refresh activity. A nil *Metrics records nothing.
type Metrics struct {
	refreshes  *prometheus.CounterVec
	queued     prometheus.Counter
	replayed   prometheus.Counter
	refreshing prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admin_session",
			Subsystem: "interceptor",
			Name:      "refresh_total",
			Help:      "Token refresh calls made after a 401, by outcome.",
		}, []string{"outcome"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "admin_session",
			Subsystem: "interceptor",
			Name:      "queued_requests_total",
			Help:      "Requests that waited behind an in-flight refresh.",
		}),
		replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "admin_session",
			Subsystem: "interceptor",
			Name:      "replayed_requests_total",
			Help:      "Requests replayed with a refreshed token.",
		}),
		refreshing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "admin_session",
			Subsystem: "interceptor",
			Name:      "refreshing",
			Help:      "1 while a refresh is in flight.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshes, m.queued, m.replayed, m.refreshing)
	}
	return m
}

func (m *Metrics) refreshStarted() {
	if m == nil {
		return
	}
	m.refreshing.Set(1)
}

func (m *Metrics) refreshDone(err error) {
	if m == nil {
		return
	}
	m.refreshing.Set(0)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) requestQueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *Metrics) requestReplayed() {
	if m == nil {
		return
	}
	m.replayed.Inc()
}
