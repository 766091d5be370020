package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	forecastUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_units_total",
		Help: "Stock units evaluated by the forecast batch, by resulting risk level.",
	}, []string{"risk"})

	forecastUnitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_unit_failures_total",
		Help: "Stock units whose computation failed and was skipped.",
	})

	forecastNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_notifications_total",
		Help: "Notification outbox records written.",
	})

	forecastNotificationsSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forecast_notifications_suppressed_total",
		Help: "At-risk snapshots whose notification was suppressed by the cooldown.",
	})

	forecastBatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecast_batch_duration_seconds",
		Help:    "Wall time of one per-tenant forecast batch.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	notificationPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_notification_publishes_total",
		Help: "Outbox publish attempts by outcome.",
	}, []string{"outcome"})
)
