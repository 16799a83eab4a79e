// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/teamtenx/workflow-engine/internal/domain"
)

var (
	initOnce sync.Once

	workflowsTotalCounter       *prometheus.CounterVec
	stepsTotalCounter           *prometheus.CounterVec
	stepExecutionDurationMetric prometheus.Histogram
	stepRetriesCounter          prometheus.Counter
	canvasMessagesCounter       *prometheus.CounterVec
	dashboardRequestsCounter    *prometheus.CounterVec
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		workflowsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflows_total",
				Help: "Total number of workflow status transitions by status.",
			},
			[]string{"status"},
		)

		stepsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_steps_total",
				Help: "Total number of step status transitions by status.",
			},
			[]string{"status"},
		)

		stepExecutionDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "workflow_step_duration_seconds",
				Help:    "Duration of step executor attempts in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		stepRetriesCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workflow_step_retries_total",
				Help: "Total number of retried step attempts.",
			},
		)

		canvasMessagesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_messages_total",
				Help: "Canvas WebSocket envelopes by type and direction.",
			},
			[]string{"type", "direction"},
		)

		dashboardRequestsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_requests_total",
				Help: "Dashboard API requests by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)

		prometheus.MustRegister(
			workflowsTotalCounter,
			stepsTotalCounter,
			stepExecutionDurationMetric,
			stepRetriesCounter,
			canvasMessagesCounter,
			dashboardRequestsCounter,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, status := range []domain.WorkflowStatus{
			domain.WorkflowDraft,
			domain.WorkflowApproved,
			domain.WorkflowExecuting,
			domain.WorkflowCompleted,
			domain.WorkflowFailed,
		} {
			workflowsTotalCounter.WithLabelValues(string(status))
		}

		for _, status := range []domain.StepStatus{
			domain.StepPending,
			domain.StepRunning,
			domain.StepCompleted,
			domain.StepFailed,
		} {
			stepsTotalCounter.WithLabelValues(string(status))
		}
	})
}

func IncWorkflowStatus(status string) {
	Init()
	workflowsTotalCounter.WithLabelValues(status).Inc()
}

func IncStepStatus(status string) {
	Init()
	stepsTotalCounter.WithLabelValues(status).Inc()
}

func ObserveStepDuration(d time.Duration) {
	Init()
	stepExecutionDurationMetric.Observe(d.Seconds())
}

func IncStepRetries() {
	Init()
	stepRetriesCounter.Inc()
}

func IncCanvasMessage(msgType, direction string) {
	Init()
	canvasMessagesCounter.WithLabelValues(msgType, direction).Inc()
}

func IncDashboardRequest(endpoint, outcome string) {
	Init()
	dashboardRequestsCounter.WithLabelValues(endpoint, outcome).Inc()
}
