package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
	)
	ProfileSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "profile_sync_total", Help: "Profile synchronisations by outcome"},
		[]string{"outcome"}, // created, merged, degraded
	)
	ProfileSyncShared = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "profile_sync_shared_total", Help: "Sync calls that joined an in-flight sync for the same user"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "sessions_active", Help: "Open page sessions"},
	)
	CredentialOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "credential_operations_total", Help: "Credential operations by result code"},
		[]string{"operation", "code"},
	)
)

// MustRegister registers every collector with the default registry.
func MustRegister() {
	prometheus.MustRegister(RequestsTotal, ReqDuration, InFlight,
		ProfileSyncs, ProfileSyncShared, ActiveSessions, CredentialOps)
}
