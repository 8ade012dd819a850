package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	loopPosts           = "posts"
	loopAnalytics       = "analytics"
	loopRecommendations = "recommendations"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagepilot_scheduler_cycles_total",
			Help: "Scheduler cycles by loop and result (ran, skipped)",
		},
		[]string{"loop", "result"},
	)

	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagepilot_scheduler_items_total",
			Help: "Items processed by loop and outcome",
		},
		[]string{"loop", "outcome"},
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagepilot_scheduler_cycle_duration_seconds",
			Help:    "Duration of one scheduler cycle",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"loop"},
	)
)
