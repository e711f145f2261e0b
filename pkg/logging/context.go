package logging

import (
	"context"
)

type contextKey string

const (
	traceIDKey     contextKey = "trace_id"
	messageIDKey   contextKey = "message_id"
	serviceNameKey contextKey = "service_name"
	eventNameKey   contextKey = "event_name"
	actionTypeKey  contextKey = "action_type"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, serviceNameKey, serviceName)
}

func WithEventName(ctx context.Context, eventName string) context.Context {
	return context.WithValue(ctx, eventNameKey, eventName)
}

func WithActionType(ctx context.Context, actionType string) context.Context {
	return context.WithValue(ctx, actionTypeKey, actionType)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, traceIDKey)
}

func GetMessageID(ctx context.Context) string {
	return stringValue(ctx, messageIDKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, serviceNameKey)
}

func GetEventName(ctx context.Context) string {
	return stringValue(ctx, eventNameKey)
}

func GetActionType(ctx context.Context) string {
	return stringValue(ctx, actionTypeKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetLogFields flattens the known context values into zap key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, "message_id", messageID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	if eventName := GetEventName(ctx); eventName != "" {
		fields = append(fields, "event_name", eventName)
	}

	if actionType := GetActionType(ctx); actionType != "" {
		fields = append(fields, "action_type", actionType)
	}

	return fields
}
