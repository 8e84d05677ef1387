package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the WDF server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  prometheus.Counter
	errorsTotal    prometheus.Counter
	screensCreated *prometheus.CounterVec
	rotationsTotal *prometheus.CounterVec
	scoreResets    *prometheus.CounterVec
	lobbyJoins     *prometheus.CounterVec
	sessionsReaped prometheus.Counter
	jobFailures    *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// New creates and registers Prometheus metrics for the server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wdf_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wdf_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		screensCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wdf_screens_created_total",
			Help: "Playlist screens created, by slot",
		}, []string{"slot"}),
		rotationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wdf_playlist_rotations_total",
			Help: "Playlist rotations performed, by game version",
		}, []string{"version"}),
		scoreResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wdf_score_resets_total",
			Help: "Score resets triggered by playlist advance, by game version",
		}, []string{"version"}),
		lobbyJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wdf_lobby_joins_total",
			Help: "Lobby assignments, split by whether a new lobby was opened",
		}, []string{"lobby"}),
		sessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wdf_sessions_reaped_total",
			Help: "Sessions deleted for inactivity",
		}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wdf_scheduled_job_failures_total",
			Help: "Scheduled jobs that returned an error or panicked",
		}, []string{"job"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wdf_active_sessions",
			Help: "Number of connected sessions across all game versions",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.screensCreated,
		m.rotationsTotal,
		m.scoreResets,
		m.lobbyJoins,
		m.sessionsReaped,
		m.jobFailures,
		m.activeSessions,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m != nil {
		m.requestsTotal.Inc()
	}
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m != nil {
		m.errorsTotal.Inc()
	}
}

func (m *Metrics) IncScreensCreated(slot string) {
	if m != nil {
		m.screensCreated.WithLabelValues(slot).Inc()
	}
}

func (m *Metrics) IncRotations(version string) {
	if m != nil {
		m.rotationsTotal.WithLabelValues(version).Inc()
	}
}

func (m *Metrics) IncScoreResets(version string) {
	if m != nil {
		m.scoreResets.WithLabelValues(version).Inc()
	}
}

// IncLobbyJoins records a lobby assignment; created reports whether a fresh
// lobby id was generated.
func (m *Metrics) IncLobbyJoins(created bool) {
	if m == nil {
		return
	}
	label := "existing"
	if created {
		label = "new"
	}
	m.lobbyJoins.WithLabelValues(label).Inc()
}

func (m *Metrics) AddSessionsReaped(n int) {
	if m != nil && n > 0 {
		m.sessionsReaped.Add(float64(n))
	}
}

func (m *Metrics) IncJobFailures(job string) {
	if m != nil {
		m.jobFailures.WithLabelValues(job).Inc()
	}
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.activeSessions.Set(float64(n))
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
