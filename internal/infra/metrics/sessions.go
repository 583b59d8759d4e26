package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		sessionTransitionsTotal,
		sessionsTotal,
		sessionsExpiredTotal,
	)
}

var (
	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_session_transitions_total",
			Help: "Lifecycle transitions by target state.",
		},
		[]string{"to"}, // 'ringing', 'active', 'ended'
	)

	sessionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_sessions_total",
			Help: "Current number of chat sessions by status.",
		},
		[]string{"status"},
	)

	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_expired_total",
			Help: "Sessions auto-ended by the expiry sweep.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncSessionTransition(to string) {
	sessionTransitionsTotal.WithLabelValues(norm(to)).Inc()
}

func SetSessionsTotal(counts map[string]int) {
	for status, count := range counts {
		sessionsTotal.WithLabelValues(norm(status)).Set(float64(count))
	}
}

func IncSessionsExpired(count int) {
	sessionsExpiredTotal.Add(float64(count))
}
