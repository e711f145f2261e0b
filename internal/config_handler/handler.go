// Package config_handler reacts to rule-change notifications on the config
// topic so services refresh their cached rules without waiting for the
// periodic reload.
package config_handler

import (
	"context"
	"encoding/json"

	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/pkg/models"
)

type RuleReloader interface {
	ReloadRules(ctx context.Context) error
}

type Handler struct {
	expectedEventType string
	reloader          RuleReloader
	logger            logger.Logger
}

func NewHandler(expectedEventType string, reloader RuleReloader, log logger.Logger) *Handler {
	return &Handler{
		expectedEventType: expectedEventType,
		reloader:          reloader,
		logger:            log,
	}
}

func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	eventType, ok := envelope.Payload["event_type"].(string)
	if !ok {
		h.logger.Warnw("Config event missing event_type", "id", envelope.ID)
		return nil
	}

	if eventType != h.expectedEventType {
		return nil
	}

	var event models.RuleChangeEvent
	eventJSON, err := json.Marshal(envelope.Payload)
	if err != nil {
		h.logger.Errorw("Failed to marshal event payload", "error", err, "id", envelope.ID)
		return err
	}

	if err := json.Unmarshal(eventJSON, &event); err != nil {
		h.logger.Errorw("Failed to unmarshal config event", "error", err, "id", envelope.ID)
		return err
	}

	h.logger.Infow("Received rule change event",
		"event_type", event.EventType,
		"action", event.Action,
		"rule_id", event.RuleID,
	)

	if h.reloader != nil {
		if err := h.reloader.ReloadRules(ctx); err != nil {
			h.logger.Errorw("Failed to reload rules after config update", "error", err)
			return err
		}
		h.logger.Infow("Rules reloaded successfully after config update", "action", event.Action)
	}

	return nil
}
