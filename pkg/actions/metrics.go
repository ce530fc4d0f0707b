package actions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
	resultInvalid   = "invalid_input"
)

var (
	actionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "azdo_scaffolder_action_runs_total",
		Help: "Action executions by action and result",
	}, []string{"action", "result"})

	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "azdo_scaffolder_action_duration_seconds",
		Help:    "Action execution time",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"action"})
)
