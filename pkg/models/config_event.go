package models

import "time"

// RuleChangeEvent is published on the config topic whenever an automation
// rule is created, updated, toggled or deleted, so running matchers reload
// their cache without waiting for the periodic refresh.
type RuleChangeEvent struct {
	EventType string                 `json:"event_type"`
	RuleID    string                 `json:"rule_id,omitempty"`
	Action    string                 `json:"action"`
	Timestamp time.Time              `json:"timestamp"`
	ChangedBy string                 `json:"changed_by,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const EventTypeAutomationRuleUpdated = "automation_rule_updated"

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
)
