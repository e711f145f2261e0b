package executor

import (
	"fmt"
	"time"
)

// Event payloads arrive as decoded JSON, so every lookup is defensive. The
// helpers below tolerate both flat keys ("leadId") and the embedded record
// form ("lead": {"id": ...}) the CRUD controllers publish.

func configString(config map[string]interface{}, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

func configNumber(config map[string]interface{}, key string) (float64, bool) {
	switch n := config[key].(type) {
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

func payloadString(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadMap(payload map[string]interface{}, key string) map[string]interface{} {
	if v, ok := payload[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func leadIDFrom(payload map[string]interface{}) string {
	if id := payloadString(payload, "leadId"); id != "" {
		return id
	}
	if lead := payloadMap(payload, "lead"); lead != nil {
		if id := payloadString(lead, "id"); id != "" {
			return id
		}
		return payloadString(lead, "_id")
	}
	return ""
}

func coachIDFrom(payload map[string]interface{}) string {
	if id := payloadString(payload, "coachId"); id != "" {
		return id
	}
	if coach := payloadMap(payload, "coach"); coach != nil {
		if id := payloadString(coach, "id"); id != "" {
			return id
		}
		return payloadString(coach, "_id")
	}
	return ""
}

// parseDueDate accepts the date forms rule authors actually type: RFC3339,
// date-only, or a relative "+<n>d"/"+<n>h" offset.
func parseDueDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty due date")
	}

	if len(raw) > 1 && raw[0] == '+' {
		unit := raw[len(raw)-1]
		var n int
		if _, err := fmt.Sscanf(raw[1:len(raw)-1], "%d", &n); err == nil && n > 0 {
			switch unit {
			case 'd':
				return time.Now().AddDate(0, 0, n), nil
			case 'h':
				return time.Now().Add(time.Duration(n) * time.Hour), nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid relative due date %q", raw)
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable due date %q", raw)
}
