// Package cel evaluates optional rule conditions against incoming events.
// A condition is a CEL expression over the event's name, payload and
// metadata; a rule without a condition matches on trigger event alone.
package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/Varun2365/funnelseye/pkg/models"
)

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("event_name", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateCondition checks an expression at rule-save time: it must compile
// and must produce a bool.
func (e *Evaluator) ValidateCondition(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("condition expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

func (e *Evaluator) EvaluateCondition(ctx context.Context, expression string, msg models.MessageEnvelope) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("condition expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.ContextEval(ctx, e.vars(msg))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// CompileCondition pre-compiles an expression so the matcher can evaluate a
// cached rule without recompiling per event.
func (e *Evaluator) CompileCondition(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

// EvaluateCompiled runs a pre-compiled condition against an event.
func (e *Evaluator) EvaluateCompiled(ctx context.Context, program cel.Program, msg models.MessageEnvelope) (bool, error) {
	result, _, err := program.ContextEval(ctx, e.vars(msg))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func (e *Evaluator) vars(msg models.MessageEnvelope) map[string]interface{} {
	return map[string]interface{}{
		"id":         msg.ID,
		"source":     msg.Source,
		"timestamp":  msg.Timestamp,
		"event_name": msg.EventName,
		"payload":    msg.Payload,
		"metadata":   e.metadataToMap(msg.Metadata),
	}
}

func (e *Evaluator) metadataToMap(metadata models.Metadata) map[string]interface{} {
	result := make(map[string]interface{})

	if metadata.TraceID != "" {
		result["trace_id"] = metadata.TraceID
	}

	if metadata.MatchedAt != nil {
		result["matched_at"] = *metadata.MatchedAt
	}

	if metadata.Delivery != nil {
		result["delivery"] = metadata.Delivery
	}

	return result
}
