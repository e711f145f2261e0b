package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageEnvelope is the single wire format used on every topic. Business
// events carry EventName; action messages carry Action. Payload always holds
// the triggering event's payload so executors never need to look the event up
// again.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	EventName string                 `json:"event_name,omitempty"`
	Action    *ActionMessage         `json:"action,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID   string                 `json:"trace_id,omitempty"`
	MatchedAt *time.Time             `json:"matched_at,omitempty"`
	Delivery  map[string]interface{} `json:"delivery,omitempty"`
}

// ActionMessage materializes one (rule, action) pair matched against an
// event. ExecutionID is deterministic across redeliveries so duplicate
// executions of the same logical action can be detected.
type ActionMessage struct {
	Type        string                 `json:"type"`
	Config      map[string]interface{} `json:"config"`
	RuleID      string                 `json:"rule_id"`
	RuleName    string                 `json:"rule_name"`
	EventID     string                 `json:"event_id"`
	EventName   string                 `json:"event_name"`
	ActionIndex int                    `json:"action_index"`
	ExecutionID string                 `json:"execution_id"`
	ExecuteAt   *time.Time             `json:"execute_at,omitempty"`
}

func (e *MessageEnvelope) IsEvent() bool {
	return e.EventName != "" && e.Action == nil
}

func (e *MessageEnvelope) IsAction() bool {
	return e.Action != nil
}

// NewEventEnvelope wraps a business event for publication. Producers that
// publish off-catalog names get zero matching rules, not an error.
func NewEventEnvelope(eventName, source string, payload map[string]interface{}) MessageEnvelope {
	return MessageEnvelope{
		ID:        uuid.New().String(),
		Source:    source,
		Timestamp: time.Now(),
		EventName: eventName,
		Payload:   payload,
	}
}

// NewActionEnvelope builds the action message for one action of one matched
// rule. The envelope keeps the event's payload untouched and reuses the event
// ID as its partition key through the broker, so actions fanned out from one
// event keep their array order.
func NewActionEnvelope(event MessageEnvelope, ruleID, ruleName, actionType string, config map[string]interface{}, actionIndex int, executeAt *time.Time) MessageEnvelope {
	now := time.Now()
	return MessageEnvelope{
		ID:        ExecutionID(ruleID, event.ID, actionIndex),
		Source:    "rules-engine",
		Timestamp: now,
		Payload:   event.Payload,
		Action: &ActionMessage{
			Type:        actionType,
			Config:      config,
			RuleID:      ruleID,
			RuleName:    ruleName,
			EventID:     event.ID,
			EventName:   event.EventName,
			ActionIndex: actionIndex,
			ExecutionID: ExecutionID(ruleID, event.ID, actionIndex),
			ExecuteAt:   executeAt,
		},
		Metadata: Metadata{
			TraceID:   event.Metadata.TraceID,
			MatchedAt: &now,
		},
	}
}

// ExecutionID derives the stable identity of a single action execution from
// the coordinates that produced it. Redelivered messages carry the same id.
func ExecutionID(ruleID, eventID string, actionIndex int) string {
	return fmt.Sprintf("%s:%s:%d", ruleID, eventID, actionIndex)
}

// PartitionKey returns the Kafka message key. Actions are keyed by the
// triggering event so one event's actions share a partition.
func (e *MessageEnvelope) PartitionKey() string {
	if e.Action != nil && e.Action.EventID != "" {
		return e.Action.EventID
	}
	return e.ID
}
