// Package metrics holds the prometheus collectors shared by the engines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var AutoModMessagesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_automod_messages_evaluated_total",
	Help: "Number of messages evaluated by the auto-moderation pipeline",
}, []string{"result"})

var AutoModViolations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_automod_violations_total",
	Help: "Number of auto-moderation violations by rule",
}, []string{"rule"})

var AutoModEvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "warden_automod_evaluation_seconds",
	Help:    "Duration of one auto-moderation evaluation",
	Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
})

var CasesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_cases_created_total",
	Help: "Number of moderation cases recorded",
}, []string{"action"})

var ModerationDenied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_moderation_denied_total",
	Help: "Number of moderation requests refused before acting",
}, []string{"kind"})

var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_level_ups_total",
	Help: "Number of level-up transitions",
})

var NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_notifications_failed_total",
	Help: "Number of notifications that could not be delivered",
}, []string{"channel"})
