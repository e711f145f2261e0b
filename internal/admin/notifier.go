package admin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Varun2365/funnelseye/internal/broker"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/pkg/models"
)

// Notifier tells running matchers that the rule set changed. Failures are
// logged, not returned: the write already committed and the periodic reload
// will pick the change up anyway.
type Notifier struct {
	producer    broker.Producer
	configTopic string
	logger      logger.Logger
}

func NewNotifier(producer broker.Producer, configTopic string, log logger.Logger) *Notifier {
	return &Notifier{
		producer:    producer,
		configTopic: configTopic,
		logger:      log,
	}
}

func (n *Notifier) NotifyRuleChange(ctx context.Context, action, ruleID string) {
	event := models.RuleChangeEvent{
		EventType: models.EventTypeAutomationRuleUpdated,
		RuleID:    ruleID,
		Action:    action,
		Timestamp: time.Now(),
	}

	payload, err := toPayload(event)
	if err != nil {
		n.logger.ErrorwCtx(ctx, "Failed to encode rule change event", "error", err)
		return
	}

	envelope := models.NewEventEnvelope(models.EventTypeAutomationRuleUpdated, "admin-service", payload)
	if err := n.producer.Publish(ctx, n.configTopic, envelope); err != nil {
		n.logger.ErrorwCtx(ctx, "Failed to publish rule change event",
			"rule_id", ruleID,
			"action", action,
			"error", err,
		)
		return
	}

	n.logger.InfowCtx(ctx, "Published rule change event", "rule_id", ruleID, "action", action)
}

func toPayload(event models.RuleChangeEvent) (map[string]interface{}, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
