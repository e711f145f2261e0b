package rules

import (
	"time"
)

// Action is one entry of a rule's ordered action list. Config is handed to
// the executor untouched; the matcher only reads the delay keys out of it.
type Action struct {
	Type   string                 `bson:"type" json:"type"`
	Config map[string]interface{} `bson:"config" json:"config"`
}

// AutomationRule binds a trigger event to an ordered list of actions. The
// optional Condition is a CEL expression over the event; empty means the
// rule matches on trigger event alone.
type AutomationRule struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Name         string    `bson:"name" json:"name"`
	TriggerEvent string    `bson:"trigger_event" json:"trigger_event"`
	Condition    string    `bson:"condition,omitempty" json:"condition,omitempty"`
	Actions      []Action  `bson:"actions" json:"actions"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	CreatedBy    string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Delay reads the optional delay out of an action's config. Both
// delaySeconds and delayMinutes are honored; zero means immediate.
func (a Action) Delay() time.Duration {
	if v, ok := toFloat(a.Config["delaySeconds"]); ok && v > 0 {
		return time.Duration(v * float64(time.Second))
	}
	if v, ok := toFloat(a.Config["delayMinutes"]); ok && v > 0 {
		return time.Duration(v * float64(time.Minute))
	}
	return 0
}

// toFloat tolerates the numeric types JSON and BSON decoding produce.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
