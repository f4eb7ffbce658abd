// Package metrics declares the process-wide Prometheus collectors. They
// register on the default registry and are served by the ops router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GuardrailRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_guardrail_rejections_total",
			Help: "Agent queries rejected by the guardrail, by reason code",
		},
		[]string{"code"},
	)

	QuotaExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_agent_quota_exhausted_total",
			Help: "Agent searches refused because the daily quota was used up",
		},
	)

	AgentSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_agent_searches_total",
			Help: "Agent searches by outcome status",
		},
		[]string{"status"},
	)

	CompatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_compatibility_scores",
			Help:    "Distribution of candidate total scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	DropJobUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_drop_job_users_total",
			Help: "Users handled by the weekly drop job, by result",
		},
		[]string{"result"},
	)

	DropsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_drops_expired_total",
			Help: "Drops transitioned to expired by cleanup or lazy expiry",
		},
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_rpc_duration_seconds",
			Help:    "gRPC handler latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)
)
