package scheduler

import (
	"context"
	"time"

	"github.com/Varun2365/funnelseye/internal/broker"
	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/constants"
	"github.com/Varun2365/funnelseye/internal/logger"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/models"
	"github.com/Varun2365/funnelseye/pkg/retry"
	"github.com/Varun2365/funnelseye/pkg/tracing"
)

// Dispatcher runs a due action. The executor service satisfies this, so
// delayed actions flow through the same handlers and idempotency ledger as
// immediate ones.
type Dispatcher interface {
	HandleAction(ctx context.Context, msg models.MessageEnvelope) error
}

type Service struct {
	store        ScheduleStore
	dispatcher   Dispatcher
	producer     broker.Producer
	dlqTopic     string
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	retryCfg     config.RetryConfig
	logger       logger.Logger
}

func NewService(store ScheduleStore, dispatcher Dispatcher, producer broker.Producer, dlqTopic string, cfg config.SchedulerConfig, retryCfg config.RetryConfig, log logger.Logger) *Service {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = constants.DefaultSchedulerPollPeriod
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultSchedulerBatchSize
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultSchedulerMaxAttempts
	}

	return &Service{
		store:        store,
		dispatcher:   dispatcher,
		producer:     producer,
		dlqTopic:     dlqTopic,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
		retryCfg:     retryCfg,
		logger:       log,
	}
}

// Run polls the delayed queue until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Infow("Scheduler started",
		"poll_interval", s.pollInterval,
		"batch_size", s.batchSize,
		"max_attempts", s.maxAttempts,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.ReleaseDue(ctx, time.Now()); err != nil {
				s.logger.Errorw("Scheduler poll failed", "error", err)
			}
		}
	}
}

// ReleaseDue claims every action due at or before now and dispatches it.
// A dispatch failure never blocks the rest of the batch.
func (s *Service) ReleaseDue(ctx context.Context, now time.Time) error {
	ctx, span := tracing.GetTracer("scheduled-executor").Start(ctx, "scheduler.release_due")
	defer span.End()

	if pending, err := s.store.PendingCount(ctx); err == nil {
		metrics.ScheduledActionsPending.Set(float64(pending))
	}

	due, err := s.store.ClaimDue(ctx, now, s.batchSize)
	if err != nil {
		return err
	}

	for _, claim := range due {
		s.release(ctx, claim)
	}
	return nil
}

// release dispatches a claimed action and settles its lease. The lease is
// completed only after the outcome is durable (handled, rescheduled, or in
// the DLQ); on any earlier crash the lease expires and the action is
// redelivered.
func (s *Service) release(ctx context.Context, claim ClaimedAction) {
	msg := claim.Envelope

	if msg.Action != nil && msg.Action.ExecuteAt != nil {
		metrics.ObserveSchedulerRelease(*msg.Action.ExecuteAt)
	} else {
		metrics.ScheduledActionsReleasedTotal.Inc()
	}

	err := s.dispatcher.HandleAction(ctx, msg)
	if err == nil {
		s.complete(ctx, claim)
		return
	}

	attempt := schedulerAttempt(msg) + 1

	if apperrors.IsFatal(err) || attempt >= s.maxAttempts {
		if s.sendToDLQ(ctx, msg, err, attempt) {
			s.complete(ctx, claim)
		}
		return
	}

	// Park it again with exponential backoff instead of spinning on the
	// poll interval.
	delay := retry.CalculateBackoffDuration(attempt,
		s.retryCfg.InitialInterval, s.retryCfg.Multiplier, s.retryCfg.MaxInterval)
	setSchedulerAttempt(&msg, attempt)

	if scheduleErr := s.store.Schedule(ctx, msg, time.Now().Add(delay)); scheduleErr != nil {
		s.logger.ErrorwCtx(ctx, "Failed to reschedule action, parking in DLQ",
			"message_id", msg.ID,
			"error", scheduleErr,
		)
		if s.sendToDLQ(ctx, msg, err, attempt) {
			s.complete(ctx, claim)
		}
		return
	}

	s.complete(ctx, claim)
	s.logger.WarnwCtx(ctx, "Delayed action failed, rescheduled",
		"message_id", msg.ID,
		"attempt", attempt,
		"retry_in", delay,
		"error", err,
	)
}

func (s *Service) complete(ctx context.Context, claim ClaimedAction) {
	if err := s.store.Complete(ctx, claim); err != nil {
		// Worst case the lease expires and the action runs again; the
		// executor's idempotency ledger absorbs that.
		s.logger.WarnwCtx(ctx, "Failed to settle scheduled action lease",
			"message_id", claim.Envelope.ID,
			"error", err,
		)
	}
}

func (s *Service) sendToDLQ(ctx context.Context, msg models.MessageEnvelope, execErr error, attempt int) bool {
	reason := "max_retries_exceeded"
	if apperrors.IsFatal(execErr) {
		reason = "fatal_error"
	}

	if msg.Metadata.Delivery == nil {
		msg.Metadata.Delivery = map[string]interface{}{}
	}
	msg.Metadata.Delivery["dlq_reason"] = reason
	msg.Metadata.Delivery["dlq_source_topic"] = "scheduled"
	msg.Metadata.Delivery["dlq_timestamp"] = time.Now().Format(time.RFC3339)
	msg.Metadata.Delivery["dlq_error"] = execErr.Error()
	msg.Metadata.Delivery["scheduler_attempt"] = attempt

	if err := s.producer.Publish(ctx, s.dlqTopic, msg); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to publish scheduled action to DLQ",
			"message_id", msg.ID,
			"error", err,
		)
		return false
	}

	metrics.DLQMessagesTotal.WithLabelValues("scheduled-executor", s.dlqTopic, reason).Inc()
	s.logger.ErrorwCtx(ctx, "Scheduled action parked in DLQ",
		"message_id", msg.ID,
		"reason", reason,
		"attempt", attempt,
		"error", execErr,
	)
	return true
}

func schedulerAttempt(msg models.MessageEnvelope) int {
	if msg.Metadata.Delivery == nil {
		return 0
	}
	switch v := msg.Metadata.Delivery["scheduler_attempt"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func setSchedulerAttempt(msg *models.MessageEnvelope, attempt int) {
	if msg.Metadata.Delivery == nil {
		msg.Metadata.Delivery = map[string]interface{}{}
	}
	msg.Metadata.Delivery["scheduler_attempt"] = attempt
}
