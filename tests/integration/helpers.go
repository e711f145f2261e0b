package integration

import (
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/internal/rules"
	"github.com/Varun2365/funnelseye/pkg/models"
)

const (
	containerStartupTimeout = 60
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestRule(name, triggerEvent, condition string, active bool) *rules.AutomationRule {
	return &rules.AutomationRule{
		Name:         name,
		TriggerEvent: triggerEvent,
		Condition:    condition,
		IsActive:     active,
		Actions: []rules.Action{
			{Type: models.ActionSendEmail, Config: map[string]interface{}{
				"subject": "Test",
				"body":    "Test body",
			}},
		},
	}
}

func createTestEvent(eventName string, payload map[string]interface{}) models.MessageEnvelope {
	return models.NewEventEnvelope(eventName, "integration-test", payload)
}
