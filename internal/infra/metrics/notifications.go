package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notifyFailuresTotal) }

var notifyFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_notify_failures_total",
		Help: "Notifications swallowed after the sink reported an error.",
	},
	[]string{"kind"},
)

func IncNotifyFailure(kind string) {
	notifyFailuresTotal.WithLabelValues(norm(kind)).Inc()
}
