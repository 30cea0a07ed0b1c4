// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// ChatTurns counts answered turns by path (direct|tools|error) and outcome.
	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Total number of chat turns handled",
		},
		[]string{"path", "outcome"},
	)

	ChatTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_turn_duration_seconds",
			Help:    "End-to-end duration of a chat turn",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"path"},
	)

	ChatToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_tool_calls_total",
			Help: "Tool invocations requested by the router",
		},
		[]string{"tool", "outcome"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chat_external_call_duration_seconds",
			Help: "Latency of calls to the reasoning, code-execution and embedding services",
		},
		[]string{"service"},
	)

	MemoryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_memory_errors_total",
			Help: "Conversation memory read/write failures",
		},
		[]string{"op"},
	)

	ResolverSimilarity = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_resolver_similarity",
			Help:    "Cosine similarity of the best name match",
			Buckets: []float64{0, 0.2, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
	)
)
