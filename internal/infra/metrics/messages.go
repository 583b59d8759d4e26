package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatMessagesTotal) }

var chatMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Messages appended to session transcripts, by sender role.",
	},
	[]string{"role"}, // 'client', 'admin'
)

func IncChatMessage(role string) {
	chatMessagesTotal.WithLabelValues(norm(role)).Inc()
}
