package admin

import (
	"time"

	"github.com/Varun2365/funnelseye/internal/rules"
)

type CreateRuleRequest struct {
	Name         string         `json:"name" binding:"required"`
	TriggerEvent string         `json:"trigger_event" binding:"required"`
	Condition    string         `json:"condition"`
	Actions      []rules.Action `json:"actions" binding:"required"`
	IsActive     *bool          `json:"is_active"`
	CreatedBy    string         `json:"created_by"`
}

type UpdateRuleRequest struct {
	Name         string         `json:"name" binding:"required"`
	TriggerEvent string         `json:"trigger_event" binding:"required"`
	Condition    string         `json:"condition"`
	Actions      []rules.Action `json:"actions" binding:"required"`
	IsActive     *bool          `json:"is_active"`
}

type ToggleRuleRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// PublishEventRequest is the manual event-ingestion body. Source defaults
// to "admin-api" when the caller does not name the producing system.
type PublishEventRequest struct {
	EventName string                 `json:"event_name" binding:"required"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
}

type PublishEventResponse struct {
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
	Timestamp time.Time `json:"timestamp"`
}
