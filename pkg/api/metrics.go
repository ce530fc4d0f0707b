package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "azdo_scaffolder_tasks_created_total",
		Help: "Tasks accepted by the API",
	})

	tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "azdo_scaffolder_tasks_finished_total",
		Help: "Tasks that reached a terminal phase",
	}, []string{"phase"})

	tasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "azdo_scaffolder_tasks_running",
		Help: "Tasks currently executing steps",
	})

	callbacksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "azdo_scaffolder_callbacks_failed_total",
		Help: "Task callbacks that could not be delivered",
	})
)
