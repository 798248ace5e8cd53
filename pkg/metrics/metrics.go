package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	// 慢查询耗时（秒）
	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
	)

	// Dashboard 聚合耗时（秒）
	DashboardComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_dashboard_duration_seconds",
			Help:    "Time spent computing a dashboard snapshot",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"result"}, // result: ok, empty, error
	)

	// 通知写入计数
	NotificationRecordedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_recorded_total",
			Help: "Total number of notifications appended to the ledger",
		},
		[]string{"type", "status"}, // status: success, failed
	)

	// 通知投递计数（worker 消费 notification.created）
	NotificationDeliveredCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivered_total",
			Help: "Total number of notification.created events handled by the worker",
		},
		[]string{"type", "status"}, // status: delivered, duplicate, failed
	)

	// 邀请结果计数
	InviteCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_invite_total",
			Help: "Total number of workspace invites by outcome",
		},
		[]string{"outcome"}, // outcome: created, not_found, conflict, notify_failed
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Outbox 发布计数
	OutboxPublishedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox events processed by the dispatcher",
		},
		[]string{"routing_key", "status"}, // status: sent, failed, breaker_open
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录一次慢查询
func IncrementSlowQuery(statement string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(statement).Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}

// RecordDashboardDuration 记录一次 dashboard 聚合
func RecordDashboardDuration(result string, duration time.Duration) {
	DashboardComputeDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// IncrementNotificationRecorded 增加通知写入计数
func IncrementNotificationRecorded(notificationType, status string) {
	NotificationRecordedCount.WithLabelValues(notificationType, status).Inc()
}

// IncrementNotificationDelivered 增加通知投递计数
func IncrementNotificationDelivered(notificationType, status string) {
	NotificationDeliveredCount.WithLabelValues(notificationType, status).Inc()
}

// IncrementInvite 增加邀请结果计数
func IncrementInvite(outcome string) {
	InviteCount.WithLabelValues(outcome).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementOutboxPublished 增加 outbox 发布计数
func IncrementOutboxPublished(routingKey, status string) {
	OutboxPublishedCount.WithLabelValues(routingKey, status).Inc()
}
