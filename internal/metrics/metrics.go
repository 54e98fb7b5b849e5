// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompletionsRecorded counts mark-done requests.
	// Labels: outcome (new, duplicate)
	CompletionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "habitbot",
		Subsystem: "habits",
		Name:      "completions_total",
		Help:      "Total mark-done requests by outcome",
	}, []string{"outcome"})

	// RemindersSent counts reminders handed to the notifier.
	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "habitbot",
		Subsystem: "reminders",
		Name:      "sent_total",
		Help:      "Total reminders delivered to the notifier",
	})

	// SweepFailures counts failed reminder work.
	// Labels: kind (store, user, habit, notify)
	SweepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "habitbot",
		Subsystem: "reminders",
		Name:      "failures_total",
		Help:      "Total reminder sweep failures by kind",
	}, []string{"kind"})

	// SweepDuration measures one full reminder sweep.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "habitbot",
		Subsystem: "reminders",
		Name:      "sweep_duration_seconds",
		Help:      "Reminder sweep latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// StreakRepairs counts background streak recomputes.
	// Labels: status (ok, error, dropped)
	StreakRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "habitbot",
		Subsystem: "streaks",
		Name:      "repairs_total",
		Help:      "Total streak repair jobs by status",
	}, []string{"status"})
)
