package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts playthroughs that reached IN_PROGRESS, including retakes.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Total number of quiz playthroughs started",
		},
	)

	SessionsFinished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_finished_total",
			Help: "Total number of quiz playthroughs that reached the finished state",
		},
	)

	// ActiveSessions tracks live players held by the session registry.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_active_sessions_current",
			Help: "Current number of live quiz sessions",
		},
	)

	// ClusterSessions is the number of live sessions marked in Redis by every instance.
	ClusterSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_cluster_sessions_current",
			Help: "Live quiz sessions across all instances sharing the Redis registry",
		},
	)

	SessionsAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_abandoned_total",
			Help: "Sessions ended or finished with nobody following them",
		},
	)

	TimerExpirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_timer_expirations_total",
			Help: "Total number of questions auto-advanced by the countdown",
		},
	)

	AttemptsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_persisted_total",
			Help: "Attempt persistence outcomes",
		},
		[]string{"status"}, // success/failure
	)
)
