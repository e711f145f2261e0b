package cel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun2365/funnelseye/pkg/models"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateCondition(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name:      "valid simple expression",
			expr:      `payload.leadTemperature == "Hot"`,
			wantError: false,
		},
		{
			name:      "valid numeric comparison",
			expr:      `payload.amount > 100.0`,
			wantError: false,
		},
		{
			name:      "valid event name check",
			expr:      `event_name == "PAYMENT_RECEIVED"`,
			wantError: false,
		},
		{
			name:      "non-bool expression",
			expr:      `payload.amount`,
			wantError: true,
		},
		{
			name:      "invalid expression",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `undefinedVar == "test"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateCondition(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	msg := models.MessageEnvelope{
		ID:        "evt-1",
		Source:    "crm",
		Timestamp: time.Now(),
		EventName: "LEAD_TEMPERATURE_CHANGED",
		Payload: map[string]interface{}{
			"leadId":          "lead-42",
			"leadTemperature": "Hot",
			"score":           75.0,
			"lead": map[string]interface{}{
				"status": "Qualified",
			},
		},
		Metadata: models.Metadata{TraceID: "trace-1"},
	}

	tests := []struct {
		name      string
		expr      string
		want      bool
		wantError bool
	}{
		{
			name: "payload string match",
			expr: `payload.leadTemperature == "Hot"`,
			want: true,
		},
		{
			name: "payload string mismatch",
			expr: `payload.leadTemperature == "Cold"`,
			want: false,
		},
		{
			name: "numeric threshold",
			expr: `payload.score >= 50.0`,
			want: true,
		},
		{
			name: "nested payload field",
			expr: `payload.lead.status == "Qualified"`,
			want: true,
		},
		{
			name: "event name gate",
			expr: `event_name == "LEAD_TEMPERATURE_CHANGED" && payload.score > 70.0`,
			want: true,
		},
		{
			name: "metadata trace id",
			expr: `metadata.trace_id == "trace-1"`,
			want: true,
		},
		{
			name:      "missing payload field",
			expr:      `payload.doesNotExist == "x"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateCondition(context.Background(), tt.expr, msg)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileConditionAndEvaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	program, err := eval.CompileCondition(`payload.amount > 500.0`)
	require.NoError(t, err)

	msg := models.MessageEnvelope{
		ID:        "evt-2",
		EventName: "PAYMENT_RECEIVED",
		Timestamp: time.Now(),
		Payload:   map[string]interface{}{"amount": 750.0},
	}

	got, err := eval.EvaluateCompiled(context.Background(), program, msg)
	require.NoError(t, err)
	assert.True(t, got)

	msg.Payload["amount"] = 100.0
	got, err = eval.EvaluateCompiled(context.Background(), program, msg)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCompileConditionRejectsNonBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.CompileCondition(`payload.amount`)
	assert.Error(t, err)
}
