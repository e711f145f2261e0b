package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	celgo "github.com/google/cel-go/cel"

	"github.com/Varun2365/funnelseye/internal/broker"
	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/constants"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/pkg/cel"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/models"
	"github.com/Varun2365/funnelseye/pkg/tracing"
)

// DelayStore holds action messages until their due time. The scheduled
// executor polls it and releases due entries into the dispatch path.
type DelayStore interface {
	Schedule(ctx context.Context, msg models.MessageEnvelope, dueAt time.Time) error
}

// compiledRule caches the rule together with its pre-compiled condition, so
// the hot path never recompiles CEL per event.
type compiledRule struct {
	rule    AutomationRule
	program celgo.Program
}

type Service struct {
	repo         Repository
	producer     broker.Producer
	delayStore   DelayStore
	actionsTopic string
	rulesConfig  config.RulesConfig
	evaluator    *cel.Evaluator
	rulesByEvent map[string][]compiledRule
	rulesCount   int
	rulesMu      sync.RWMutex
	logger       logger.Logger
}

func NewService(repo Repository, producer broker.Producer, delayStore DelayStore, actionsTopic string, cfg config.RulesConfig, log logger.Logger) (*Service, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	return &Service{
		repo:         repo,
		producer:     producer,
		delayStore:   delayStore,
		actionsTopic: actionsTopic,
		rulesConfig:  cfg,
		evaluator:    evaluator,
		rulesByEvent: make(map[string][]compiledRule),
		logger:       log,
	}, nil
}

// HandleEvent fans one business event out to action messages. The error
// return doubles as the ack decision: nil commits the event, non-nil leaves
// it for redelivery. Publishing is all-or-nothing from the broker's point of
// view because the event is only committed after every action went out;
// a mid-fanout crash therefore redelivers the whole event.
func (s *Service) HandleEvent(ctx context.Context, msg models.MessageEnvelope) error {
	ctx, span := tracing.GetTracer("rules-engine").Start(ctx, "rules.handle_event")
	defer span.End()

	if !msg.IsEvent() {
		s.logger.WarnwCtx(ctx, "Dropping non-event message from events topic",
			"message_id", msg.ID,
		)
		return nil
	}

	if !models.IsCatalogEvent(msg.EventName) {
		// Off-catalog names can never match a stored trigger; acked so the
		// typo is visible in logs instead of redelivering forever.
		s.logger.WarnwCtx(ctx, "Dropping event with unknown name",
			"message_id", msg.ID,
			"event_name", msg.EventName,
		)
		metrics.EventsProcessedTotal.WithLabelValues(msg.EventName, "unknown_event").Inc()
		return nil
	}

	start := time.Now()
	matched := 0

	for _, cr := range s.rulesFor(msg.EventName) {
		ok, err := s.ruleMatches(ctx, cr, msg)
		if err != nil {
			metrics.ObserveMatchingDuration(time.Since(start), "error")
			metrics.EventsProcessedTotal.WithLabelValues(msg.EventName, "error").Inc()
			return err
		}
		if !ok {
			continue
		}

		matched++
		metrics.RulesMatchedTotal.WithLabelValues(msg.EventName).Inc()

		if err := s.dispatchActions(ctx, cr.rule, msg); err != nil {
			metrics.ObserveMatchingDuration(time.Since(start), "error")
			metrics.EventsProcessedTotal.WithLabelValues(msg.EventName, "error").Inc()
			return err
		}
	}

	metrics.ObserveMatchingDuration(time.Since(start), "processed")
	metrics.EventsProcessedTotal.WithLabelValues(msg.EventName, "processed").Inc()

	s.logger.DebugwCtx(ctx, "Event processed",
		"event_name", msg.EventName,
		"matched_rules", matched,
	)
	return nil
}

// ruleMatches evaluates the rule's condition. Evaluation errors resolve via
// the configured fallback: "match" fires the rule anyway, anything else
// skips it. Either way the event itself keeps flowing.
func (s *Service) ruleMatches(ctx context.Context, cr compiledRule, msg models.MessageEnvelope) (bool, error) {
	if cr.rule.Condition == "" {
		return true, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	result, err := s.evaluator.EvaluateCompiled(ctx, cr.program, msg)
	if err != nil {
		metrics.IncConditionEvaluation(cr.rule.ID, "error")
		s.logger.ErrorwCtx(ctx, "Rule condition evaluation error",
			"rule_id", cr.rule.ID,
			"rule_name", cr.rule.Name,
			"error", err,
		)
		if s.rulesConfig.Fallback.OnConditionError == constants.FallbackMatch {
			return true, nil
		}
		return false, nil
	}

	if result {
		metrics.IncConditionEvaluation(cr.rule.ID, "matched")
	} else {
		metrics.IncConditionEvaluation(cr.rule.ID, "not_matched")
	}
	return result, nil
}

func (s *Service) dispatchActions(ctx context.Context, rule AutomationRule, event models.MessageEnvelope) error {
	for i, action := range rule.Actions {
		delay := action.Delay()

		if delay > 0 {
			dueAt := time.Now().Add(delay)
			envelope := models.NewActionEnvelope(event, rule.ID, rule.Name, action.Type, action.Config, i, &dueAt)
			if err := s.delayStore.Schedule(ctx, envelope, dueAt); err != nil {
				return fmt.Errorf("failed to schedule delayed action %s: %w", action.Type, err)
			}
			metrics.ActionsDispatchedTotal.WithLabelValues(action.Type, "scheduled").Inc()
			continue
		}

		envelope := models.NewActionEnvelope(event, rule.ID, rule.Name, action.Type, action.Config, i, nil)
		if err := s.producer.Publish(ctx, s.actionsTopic, envelope); err != nil {
			return fmt.Errorf("failed to publish action %s: %w", action.Type, err)
		}
		metrics.ActionsDispatchedTotal.WithLabelValues(action.Type, "immediate").Inc()
	}

	return nil
}

func (s *Service) rulesFor(eventName string) []compiledRule {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()

	cached := s.rulesByEvent[eventName]
	result := make([]compiledRule, len(cached))
	copy(result, cached)
	return result
}

// ActiveRuleCount reports the size of the cache, for health and logging.
func (s *Service) ActiveRuleCount() int {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()
	return s.rulesCount
}

func (s *Service) ReloadRules(ctx context.Context) error {
	s.logger.DebugwCtx(ctx, "Loading automation rules from database")

	loaded, err := s.repo.GetActiveRules(ctx)
	if err != nil {
		return err
	}

	byEvent := make(map[string][]compiledRule)
	count := 0
	for _, rule := range loaded {
		if err := ValidateRule(rule, nil); err != nil {
			s.logger.ErrorwCtx(ctx, "Skipping invalid rule",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"error", err,
			)
			continue
		}

		cr := compiledRule{rule: rule}
		if rule.Condition != "" {
			program, err := s.evaluator.CompileCondition(rule.Condition)
			if err != nil {
				s.logger.ErrorwCtx(ctx, "Skipping rule with invalid condition",
					"rule_id", rule.ID,
					"rule_name", rule.Name,
					"error", err,
				)
				continue
			}
			cr.program = program
		}

		byEvent[rule.TriggerEvent] = append(byEvent[rule.TriggerEvent], cr)
		count++
	}

	s.rulesMu.Lock()
	s.rulesByEvent = byEvent
	s.rulesCount = count
	s.rulesMu.Unlock()

	metrics.SetActiveRules(count)
	s.logger.InfowCtx(ctx, "Successfully reloaded rules",
		"rules_count", count,
	)
	return nil
}

func (s *Service) StartReloader(ctx context.Context) error {
	interval := time.Duration(s.rulesConfig.Reload.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.ReloadRules(ctx); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to reload rules",
			"error", err,
		)
	}

	for {
		select {
		case <-ticker.C:
			if err := s.ReloadRules(ctx); err != nil {
				s.logger.ErrorwCtx(ctx, "Failed to reload rules",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
