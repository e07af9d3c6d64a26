package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation outcomes reported on the validations counter.
const (
	resultValid   = "valid"
	resultDenied  = "denied"
	resultUnknown = "unknown"
	resultExpired = "expired"
)

// Metrics exposes Registry counters and gauges to Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registered  prometheus.Counter
	refreshed   prometheus.Counter
	revoked     prometheus.Counter
	validations *prometheus.CounterVec
	swept       *prometheus.CounterVec

	active prometheus.Gauge
	denied prometheus.Gauge
}

// NewMetrics registers the session metrics with reg. A nil reg builds
// unregistered collectors, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registered: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cronapp",
			Subsystem: "session",
			Name:      "registered_total",
			Help:      "Sessions created in the registry.",
		}),
		refreshed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cronapp",
			Subsystem: "session",
			Name:      "refreshed_total",
			Help:      "Existing sessions whose expiry was extended by re-registration.",
		}),
		revoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cronapp",
			Subsystem: "session",
			Name:      "revoked_total",
			Help:      "Session IDs added to the denylist.",
		}),
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronapp",
			Subsystem: "session",
			Name:      "validations_total",
			Help:      "Session validations by result.",
		}, []string{"result"}),
		swept: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronapp",
			Subsystem: "session",
			Name:      "swept_total",
			Help:      "Expired records removed by the background sweep.",
		}, []string{"kind"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "cronapp",
			Subsystem: "session",
			Name:      "active",
			Help:      "Active sessions currently held (including not yet purged expired ones).",
		}),
		denied: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "cronapp",
			Subsystem: "session",
			Name:      "denylisted",
			Help:      "Session IDs currently held on the denylist.",
		}),
	}
}

func (m *Metrics) incRegistered() {
	if m != nil {
		m.registered.Inc()
	}
}

func (m *Metrics) incRefreshed() {
	if m != nil {
		m.refreshed.Inc()
	}
}

func (m *Metrics) addRevoked(n int) {
	if m != nil && n > 0 {
		m.revoked.Add(float64(n))
	}
}

func (m *Metrics) observeValidation(result string) {
	if m != nil {
		m.validations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) addSwept(sessions, denied int) {
	if m == nil {
		return
	}
	if sessions > 0 {
		m.swept.WithLabelValues("session").Add(float64(sessions))
	}
	if denied > 0 {
		m.swept.WithLabelValues("denylist").Add(float64(denied))
	}
}

func (m *Metrics) setSizes(active, denied int) {
	if m == nil {
		return
	}
	m.active.Set(float64(active))
	m.denied.Set(float64(denied))
}
