package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	DefaultEventsTopic  = "funnelseye_events"
	DefaultActionsTopic = "funnelseye_actions"
	DefaultConfigTopic  = "funnelseye_config"
)

const (
	DefaultMongoDBName = "funnelseye"
)

// Redis key layout. The scheduled set holds serialized action envelopes
// scored by their due time; the in-flight set holds claimed envelopes scored
// by lease expiry; execution keys form the idempotency ledger.
const (
	ScheduledActionsKey         = "automation:scheduled"
	ScheduledActionsInFlightKey = "automation:scheduled:inflight"
	ExecutionKeyPrefix          = "automation:exec:"
	DefaultExecutionTTLS        = 86400
)

const (
	DefaultHandlerTimeout       = 30 * time.Second
	DefaultSchedulerPollPeriod  = 1 * time.Second
	DefaultSchedulerBatchSize   = 100
	DefaultSchedulerMaxAttempts = 5
	DefaultSchedulerLeaseTTL    = 60 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultPostgresMigrationsDir = "migrations/postgres"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

// Fallback behavior when a rule condition fails to evaluate.
const (
	FallbackSkip  = "skip"
	FallbackMatch = "match"
)
