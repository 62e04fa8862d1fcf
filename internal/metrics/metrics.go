// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authbridge"

// Metrics groups the collectors exported by the auth layer. A nil *Metrics
// records nothing, so components can take it as an optional dependency.
type Metrics struct {
	loginAttempts *prometheus.CounterVec
	handshakes    *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	tabs          prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_handshakes_total",
			Help:      "Social login handshakes by provider and terminal result.",
		}, []string{"provider", "result"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_callbacks_total",
			Help:      "OAuth callback requests by provider and response status.",
		}, []string{"provider", "status"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logouts by whether the server call succeeded.",
		}, []string{"outcome"}),
		tabs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_tabs",
			Help:      "Browser tabs connected over the websocket bridge.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.loginAttempts, m.handshakes, m.callbacks, m.logouts, m.tabs)
	}
	return m
}

func (m *Metrics) LoginAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Handshake(provider, result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) Callback(provider, status string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) Logout(outcome string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TabConnected() {
	if m == nil {
		return
	}
	m.tabs.Inc()
}

func (m *Metrics) TabDisconnected() {
	if m == nil {
		return
	}
	m.tabs.Dec()
}
