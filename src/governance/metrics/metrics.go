// Package metrics exposes prometheus counters for governance decisions.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proposalsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bandgov",
		Subsystem: "proposals",
		Name:      "closed_total",
		Help:      "The total number of proposals resolved by tally",
	}, []string{"status", "reason"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bandgov",
		Subsystem: "proposals",
		Name:      "transitions_total",
		Help:      "The total number of proposal status transitions",
	}, []string{"from", "to"})

	votesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bandgov",
		Subsystem: "votes",
		Name:      "cast_total",
		Help:      "The total number of votes cast or changed",
	}, []string{"value"})

	effectExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bandgov",
		Subsystem: "effects",
		Name:      "executions_total",
		Help:      "The total number of effect execution attempts",
	}, []string{"success"})

	notificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bandgov",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "The total number of notifications that could not be delivered",
	})
)

// ObserveClose counts a tally resolution.
func ObserveClose(status, reason string) {
	proposalsClosed.WithLabelValues(status, reason).Inc()
}

// ObserveTransition counts a lifecycle transition.
func ObserveTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// ObserveVote counts a vote cast.
func ObserveVote(value string) {
	votesCast.WithLabelValues(value).Inc()
}

// ObserveExecution counts an effect execution attempt.
func ObserveExecution(success bool) {
	effectExecutions.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// ObserveNotifyFailure counts a swallowed notification failure.
func ObserveNotifyFailure() {
	notificationsFailed.Inc()
}
