// Package executor dispatches action messages to their side-effect
// handlers. One registry serves both the immediate and the scheduled
// executor, so delayed actions run through exactly the same code path.
package executor

import (
	"context"
	"time"

	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/constants"
	"github.com/Varun2365/funnelseye/internal/logger"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/models"
	"github.com/Varun2365/funnelseye/pkg/tracing"
)

// HandlerFunc executes one action. The payload is the triggering event's
// payload, handed through untouched by the matcher.
type HandlerFunc func(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error

// Recorder persists execution attempts for the audit trail. Implementations
// must be best-effort; a recorder failure never fails the action.
type Recorder interface {
	Record(ctx context.Context, action *models.ActionMessage, status string, execErr error, duration time.Duration)
}

type Service struct {
	handlers map[string]HandlerFunc
	ledger   Ledger
	recorder Recorder
	timeout  time.Duration
	logger   logger.Logger
}

func NewService(cfg config.ExecutorConfig, ledger Ledger, recorder Recorder, log logger.Logger) *Service {
	timeout := cfg.HandlerTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHandlerTimeout
	}

	if !cfg.Idempotency.Enabled {
		ledger = nil
	}

	return &Service{
		handlers: make(map[string]HandlerFunc),
		ledger:   ledger,
		recorder: recorder,
		timeout:  timeout,
		logger:   log,
	}
}

func (s *Service) Register(actionType string, handler HandlerFunc) {
	s.handlers[actionType] = handler
}

// RegisteredTypes lists the action types with a handler, for startup logs.
func (s *Service) RegisteredTypes() []string {
	types := make([]string, 0, len(s.handlers))
	for t := range s.handlers {
		types = append(types, t)
	}
	return types
}

// HandleAction is the broker consumer entry point. Error semantics double
// as ack semantics: nil commits the message, a retryable error redelivers
// it, a fatal error sends it to the DLQ.
func (s *Service) HandleAction(ctx context.Context, msg models.MessageEnvelope) error {
	ctx, span := tracing.GetTracer("action-executor").Start(ctx, "executor.handle_action")
	defer span.End()

	if msg.Action == nil {
		s.logger.WarnwCtx(ctx, "Dropping non-action message from actions topic",
			"message_id", msg.ID,
		)
		return nil
	}

	action := msg.Action

	handler, ok := s.handlers[action.Type]
	if !ok {
		err := apperrors.ErrUnknownAction.WithDetail("action_type", action.Type)
		s.recordExecution(ctx, action, "failed", err, 0)
		return err
	}

	claimed := false
	if s.ledger != nil {
		var err error
		claimed, err = s.ledger.Claim(ctx, action.ExecutionID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
		}
		if !claimed {
			metrics.DuplicateExecutionsSkippedTotal.WithLabelValues(action.Type).Inc()
			s.logger.InfowCtx(ctx, "Skipping duplicate execution",
				"execution_id", action.ExecutionID,
				"action_type", action.Type,
			)
			s.recordExecution(ctx, action, "duplicate", nil, 0)
			return nil
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := handler(execCtx, action, msg.Payload)
	duration := time.Since(start)

	if err != nil {
		// Let a redelivery take another run at it.
		if claimed {
			if releaseErr := s.ledger.Release(ctx, action.ExecutionID); releaseErr != nil {
				s.logger.ErrorwCtx(ctx, "Failed to release execution claim",
					"execution_id", action.ExecutionID,
					"error", releaseErr,
				)
			}
		}
		metrics.ObserveActionExecution(action.Type, "failed", duration)
		s.recordExecution(ctx, action, "failed", err, duration)
		s.logger.ErrorwCtx(ctx, "Action execution failed",
			"execution_id", action.ExecutionID,
			"action_type", action.Type,
			"rule_id", action.RuleID,
			"error", err,
		)
		return err
	}

	metrics.ObserveActionExecution(action.Type, "succeeded", duration)
	s.recordExecution(ctx, action, "succeeded", nil, duration)
	s.logger.InfowCtx(ctx, "Action executed",
		"execution_id", action.ExecutionID,
		"action_type", action.Type,
		"rule_id", action.RuleID,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

func (s *Service) recordExecution(ctx context.Context, action *models.ActionMessage, status string, execErr error, duration time.Duration) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, action, status, execErr, duration)
}
