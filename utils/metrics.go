package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MetricApprovalActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_eval_approval_actions_total",
		Help: "Reviewer actions applied to test cases, by action and result",
	}, []string{"action", "result"})

	MetricGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_eval_generations_total",
		Help: "Test case generations, by source and result",
	}, []string{"source", "result"})

	MetricGenerationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_eval_generation_duration_seconds",
		Help:    "Duration of upstream generation calls, retries included",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"source"})

	MetricOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_eval_outcomes_total",
		Help: "Test case outcomes recorded by evaluation runs",
	}, []string{"result"})

	MetricAgentExecutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_eval_agent_execution_duration_seconds",
		Help:    "Duration of a single test case execution against the agent endpoint",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	MetricRunsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_eval_runs_finalized_total",
		Help: "Evaluation runs finalized, by final state",
	}, []string{"state"})

	MetricJobs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_eval_job_duration_seconds",
		Help:    "Duration of background jobs, by kind and result",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 16),
	}, []string{"kind", "result"})
)
