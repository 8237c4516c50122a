package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "messages_sent_total",
		Help:      "Messages persisted, by message type.",
	}, []string{"type"})

	MembershipConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "membership_conflicts_total",
		Help:      "Membership inserts that lost a race against a concurrent insert.",
	})

	CommandExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "command_executions_total",
		Help:      "Command and card dispatches, by kind and outcome.",
	}, []string{"kind", "status"})

	FeedDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatcore",
		Name:      "feed_dropped_total",
		Help:      "Change notifications dropped because a subscriber was full.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatcore",
		Name:      "active_sessions",
		Help:      "Chat sessions currently open.",
	})
)
