package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - набор метрик сервиса. Методы безопасно вызывать у nil
type Metrics struct {
	alertsCreated   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	polls           *prometheus.CounterVec
	activeAlerts    prometheus.Gauge
	openSessions    prometheus.Gauge
	locationSamples *prometheus.CounterVec
}

// New создает метрики и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sos",
			Name:      "alerts_created_total",
			Help:      "Number of alerts created by category",
		}, []string{"category"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sos",
			Name:      "alert_transitions_total",
			Help:      "Status transitions requested by responders",
		}, []string{"status", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sos",
			Name:      "notifications_total",
			Help:      "Contact notifications dispatched",
		}, []string{"result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sos",
			Name:      "responder_polls_total",
			Help:      "Responder queue polls",
		}, []string{"result"}),
		activeAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sos",
			Name:      "active_alerts",
			Help:      "Active alerts seen by the most recent poll",
		}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sos",
			Name:      "responder_sessions",
			Help:      "Open responder view sessions",
		}),
		locationSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sos",
			Name:      "location_samples_total",
			Help:      "Location samples taken by the sampler",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.alertsCreated,
		m.transitions,
		m.notifications,
		m.polls,
		m.activeAlerts,
		m.openSessions,
		m.locationSamples,
	)
	return m
}

func (m *Metrics) AlertCreated(category string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(category).Inc()
}

func (m *Metrics) Transition(status string, ok bool) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status, result(ok)).Inc()
}

func (m *Metrics) Notification(ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Poll(ok bool, active int) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result(ok)).Inc()
	if ok {
		m.activeAlerts.Set(float64(active))
	}
}

func (m *Metrics) Sessions(n int) {
	if m == nil {
		return
	}
	m.openSessions.Set(float64(n))
}

func (m *Metrics) LocationSample(ok bool) {
	if m == nil {
		return
	}
	m.locationSamples.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
