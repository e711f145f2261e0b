// Package admin is the management surface of the automation pipeline: rule
// CRUD, manual event ingestion and the execution audit trail. Rule writes go
// to MongoDB and are announced on the config topic so matchers reload.
package admin

import (
	"context"

	"github.com/Varun2365/funnelseye/internal/audit"
	"github.com/Varun2365/funnelseye/internal/broker"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/internal/rules"
	"github.com/Varun2365/funnelseye/pkg/cel"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/models"
)

// ExecutionLister is the audit query surface the admin API exposes. Nil
// when the deployment runs without PostgreSQL.
type ExecutionLister interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Execution, error)
}

type Service struct {
	repo        rules.AdminRepository
	evaluator   *cel.Evaluator
	producer    broker.Producer
	eventsTopic string
	notifier    *Notifier
	executions  ExecutionLister
	logger      logger.Logger
}

func NewService(repo rules.AdminRepository, evaluator *cel.Evaluator, producer broker.Producer, eventsTopic string, notifier *Notifier, executions ExecutionLister, log logger.Logger) *Service {
	return &Service{
		repo:        repo,
		evaluator:   evaluator,
		producer:    producer,
		eventsTopic: eventsTopic,
		notifier:    notifier,
		executions:  executions,
		logger:      log,
	}
}

func (s *Service) CreateRule(ctx context.Context, req CreateRuleRequest) (*rules.AutomationRule, error) {
	rule := rules.AutomationRule{
		Name:         req.Name,
		TriggerEvent: req.TriggerEvent,
		Condition:    req.Condition,
		Actions:      req.Actions,
		IsActive:     true,
		CreatedBy:    req.CreatedBy,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := rules.ValidateRule(rule, s.evaluator); err != nil {
		return nil, apperrors.ErrValidation.WithMessage(err.Error())
	}

	if err := s.repo.Create(ctx, &rule); err != nil {
		return nil, err
	}

	s.notifier.NotifyRuleChange(ctx, models.ActionCreate, rule.ID)
	s.logger.InfowCtx(ctx, "Rule created", "rule_id", rule.ID, "trigger_event", rule.TriggerEvent)
	return &rule, nil
}

func (s *Service) GetRule(ctx context.Context, id string) (*rules.AutomationRule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, limit, offset int) ([]rules.AutomationRule, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*rules.AutomationRule, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rule := *existing
	rule.Name = req.Name
	rule.TriggerEvent = req.TriggerEvent
	rule.Condition = req.Condition
	rule.Actions = req.Actions
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := rules.ValidateRule(rule, s.evaluator); err != nil {
		return nil, apperrors.ErrValidation.WithMessage(err.Error())
	}

	if err := s.repo.Update(ctx, &rule); err != nil {
		return nil, err
	}

	s.notifier.NotifyRuleChange(ctx, models.ActionUpdate, rule.ID)
	s.logger.InfowCtx(ctx, "Rule updated", "rule_id", rule.ID)
	return &rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.notifier.NotifyRuleChange(ctx, models.ActionDelete, id)
	s.logger.InfowCtx(ctx, "Rule deleted", "rule_id", id)
	return nil
}

func (s *Service) ToggleRule(ctx context.Context, id string, active bool) (*rules.AutomationRule, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}

	s.notifier.NotifyRuleChange(ctx, models.ActionToggle, id)
	s.logger.InfowCtx(ctx, "Rule toggled", "rule_id", id, "is_active", active)
	return s.repo.GetByID(ctx, id)
}

// PublishEvent injects a business event into the pipeline. Off-catalog
// names are rejected here even though the matcher would just ignore them,
// so callers learn about typos at the API instead of from silence.
func (s *Service) PublishEvent(ctx context.Context, req PublishEventRequest) (*PublishEventResponse, error) {
	if !models.IsCatalogEvent(req.EventName) {
		return nil, apperrors.ErrValidation.
			WithMessage("unknown event name " + req.EventName).
			WithDetail("event_name", req.EventName)
	}

	source := req.Source
	if source == "" {
		source = "admin-api"
	}
	payload := req.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	envelope := models.NewEventEnvelope(req.EventName, source, payload)
	if err := s.producer.Publish(ctx, s.eventsTopic, envelope); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
	}

	metrics.EventsProcessedTotal.WithLabelValues(req.EventName, "published").Inc()
	s.logger.InfowCtx(ctx, "Event published", "event_id", envelope.ID, "event_name", req.EventName)

	return &PublishEventResponse{
		EventID:   envelope.ID,
		EventName: envelope.EventName,
		Timestamp: envelope.Timestamp,
	}, nil
}

func (s *Service) ListExecutions(ctx context.Context, filter audit.Filter) ([]audit.Execution, error) {
	if s.executions == nil {
		return nil, apperrors.ErrServiceUnavailable.WithMessage("execution history is not configured")
	}
	return s.executions.List(ctx, filter)
}
