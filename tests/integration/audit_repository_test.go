package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun2365/funnelseye/internal/audit"
	"github.com/Varun2365/funnelseye/pkg/models"
)

func testActionMessage(ruleID, eventID, actionType string, index int) *models.ActionMessage {
	return &models.ActionMessage{
		Type:        actionType,
		RuleID:      ruleID,
		RuleName:    "test rule",
		EventID:     eventID,
		EventName:   models.EventLeadCreated,
		ActionIndex: index,
		ExecutionID: models.ExecutionID(ruleID, eventID, index),
	}
}

func TestAuditRepository_RecordAndList(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := audit.NewRepository(infra.PostgresDB, createTestLogger())
	ctx := context.Background()

	repo.Record(ctx, testActionMessage("rule-1", "event-1", models.ActionSendEmail, 0),
		"succeeded", nil, 120*time.Millisecond)
	repo.Record(ctx, testActionMessage("rule-1", "event-1", models.ActionUpdateLeadScore, 1),
		"failed", errors.New("lead store down"), 30*time.Millisecond)
	repo.Record(ctx, testActionMessage("rule-2", "event-2", models.ActionSendEmail, 0),
		"succeeded", nil, 80*time.Millisecond)

	all, err := repo.List(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byRule, err := repo.List(ctx, audit.Filter{RuleID: "rule-1"})
	require.NoError(t, err)
	assert.Len(t, byRule, 2)

	failed, err := repo.List(ctx, audit.Filter{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, models.ActionUpdateLeadScore, failed[0].ActionType)
	assert.Equal(t, models.EventLeadCreated, failed[0].EventName)
	assert.Contains(t, failed[0].ErrorMessage, "lead store down")
	assert.EqualValues(t, 30, failed[0].DurationMs)

	byType, err := repo.List(ctx, audit.Filter{ActionType: models.ActionSendEmail, Status: "succeeded"})
	require.NoError(t, err)
	assert.Len(t, byType, 2)
}

func TestAuditRepository_ListPagination(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := audit.NewRepository(infra.PostgresDB, createTestLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		repo.Record(ctx, testActionMessage("rule-1", "event-1", models.ActionSendSMS, i),
			"succeeded", nil, time.Millisecond)
	}

	page, err := repo.List(ctx, audit.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := repo.List(ctx, audit.Filter{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}
