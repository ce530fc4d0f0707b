package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsLaunched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "azdo_scaffolder_pipeline_runs_launched_total",
		Help: "Pipeline runs queued in Azure DevOps",
	})

	runPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "azdo_scaffolder_pipeline_run_polls_total",
		Help: "Interval status fetches of pipeline runs",
	})

	runTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "azdo_scaffolder_pipeline_run_timeouts_total",
		Help: "Pipeline runs still in progress when the polling timeout elapsed",
	})

	permissionUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "azdo_scaffolder_permission_updates_total",
		Help: "Pipeline permission updates by result",
	}, []string{"result"})
)
