package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_events_processed_total",
			Help: "Total number of business events processed by the rules engine (count)",
		},
		[]string{"event_name", "status"},
	)

	RulesMatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_rules_matched_total",
			Help: "Total number of rule matches (count)",
		},
		[]string{"event_name"},
	)

	ActionsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_actions_dispatched_total",
			Help: "Total number of action messages published by the rules engine (count)",
		},
		[]string{"action_type", "queue"},
	)

	ActionsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_actions_executed_total",
			Help: "Total number of action executions by the executor (count)",
		},
		[]string{"action_type", "status"},
	)

	MatchingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_matching_duration_ms",
			Help:    "Duration of rule matching per event in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	ActionExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_action_duration_ms",
			Help:    "Duration of a single action execution in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"action_type", "status"},
	)

	ActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "automation_active_rules",
			Help: "Number of active automation rules in the matcher cache (count)",
		},
	)

	ConditionEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_condition_evaluations_total",
			Help: "Total number of rule condition evaluations (count)",
		},
		[]string{"rule_id", "result"},
	)

	ScheduledActionsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "automation_scheduled_pending",
			Help: "Number of actions waiting in the delayed queue (count)",
		},
	)

	ScheduledActionsReleasedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_scheduled_released_total",
			Help: "Total number of delayed actions released to the executor (count)",
		},
	)

	SchedulerReleaseLag = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "automation_scheduler_release_lag_ms",
			Help:    "Lag between an action's due time and its release in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	DuplicateExecutionsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_duplicate_executions_skipped_total",
			Help: "Total number of redelivered actions skipped by the idempotency ledger (count)",
		},
		[]string{"action_type"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests to outbound delivery gateways (count)",
		},
		[]string{"gateway", "status"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_ms",
			Help:    "Duration of outbound gateway requests in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"gateway"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterRulesEngineMetrics() {
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(RulesMatchedTotal)
	prometheus.MustRegister(ActionsDispatchedTotal)
	prometheus.MustRegister(MatchingDuration)
	prometheus.MustRegister(ActiveRules)
	prometheus.MustRegister(ConditionEvaluationsTotal)
}

func RegisterExecutorMetrics() {
	prometheus.MustRegister(ActionsExecutedTotal)
	prometheus.MustRegister(ActionExecutionDuration)
	prometheus.MustRegister(DuplicateExecutionsSkippedTotal)
	prometheus.MustRegister(GatewayRequestsTotal)
	prometheus.MustRegister(GatewayRequestDuration)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func RegisterSchedulerMetrics() {
	prometheus.MustRegister(ScheduledActionsPending)
	prometheus.MustRegister(ScheduledActionsReleasedTotal)
	prometheus.MustRegister(SchedulerReleaseLag)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveMatchingDuration(duration time.Duration, status string) {
	MatchingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveActionExecution(actionType, status string, duration time.Duration) {
	ActionsExecutedTotal.WithLabelValues(actionType, status).Inc()
	ActionExecutionDuration.WithLabelValues(actionType, status).Observe(float64(duration.Milliseconds()))
}

func SetActiveRules(count int) {
	ActiveRules.Set(float64(count))
}

func IncConditionEvaluation(ruleID, result string) {
	ConditionEvaluationsTotal.WithLabelValues(ruleID, result).Inc()
}

func ObserveSchedulerRelease(dueAt time.Time) {
	ScheduledActionsReleasedTotal.Inc()
	if lag := time.Since(dueAt); lag > 0 {
		SchedulerReleaseLag.Observe(float64(lag.Milliseconds()))
	}
}

func ObserveGatewayRequest(gateway, status string, duration time.Duration) {
	GatewayRequestsTotal.WithLabelValues(gateway, status).Inc()
	GatewayRequestDuration.WithLabelValues(gateway).Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
