// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "cam_sentinel"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// 媒体抓取指标
	MediaFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "fetch_total",
			Help:      "Total number of media fetch attempts",
		},
		[]string{"camera_id", "kind", "status"}, // kind: snapshot/frames/clip
	)

	MediaFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "fetch_duration_seconds",
			Help:      "Media fetch duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"camera_id", "kind"},
	)

	FramesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "frames_discarded_total",
			Help:      "Frames discarded by the quality filter",
		},
		[]string{"reason"}, // reason: blur/flat
	)

	FramesAllBelowThreshold = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "frames_all_below_threshold_total",
			Help:      "Filter runs where every frame scored below the quality thresholds",
		},
	)

	// 分析指标
	AnalysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "total",
			Help:      "Total number of event analyses",
		},
		[]string{"mode", "status"}, // status: ok/fallback/unavailable/skipped
	)

	FallbackTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "fallback_transitions_total",
			Help:      "Fallback state machine transitions",
		},
		[]string{"from", "cause"},
	)

	// 提供商指标
	ProviderCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_total",
			Help:      "Total number of provider calls",
		},
		[]string{"provider", "mode", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "mode"},
	)

	ProviderTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "tokens_used_total",
			Help:      "Total tokens used for provider calls",
		},
		[]string{"provider", "type"}, // type: input/output
	)

	// 预算指标
	BudgetSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "skipped_total",
			Help:      "Analyses skipped because a budget cap was reached",
		},
		[]string{"scope"}, // scope: daily/monthly
	)

	BudgetSpend = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "spend_usd",
			Help:      "Current period spend in USD as seen by the guard",
		},
		[]string{"scope"},
	)

	// 实体匹配指标
	EntityMatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "total",
			Help:      "Total number of entity match attempts",
		},
		[]string{"entity_type", "outcome"}, // outcome: signature/embedding/created
	)

	// 队列指标
	StreamProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "processed_total",
			Help:      "Total number of stream messages processed",
		},
		[]string{"stream", "status"},
	)

	// 流水线指标
	EventsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_in_flight",
			Help:      "Events currently being processed",
		},
	)
)
