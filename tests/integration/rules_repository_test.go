package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun2365/funnelseye/internal/rules"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

func TestRuleRepository_CRUD(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	repo := rules.NewRepository(infra.MongoDB)
	ctx := context.Background()

	rule := createTestRule("welcome email", models.EventLeadCreated, "", true)
	require.NoError(t, repo.Create(ctx, rule))
	require.NotEmpty(t, rule.ID)
	assert.False(t, rule.CreatedAt.IsZero())

	fetched, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, fetched.Name)
	assert.Equal(t, models.EventLeadCreated, fetched.TriggerEvent)
	assert.Len(t, fetched.Actions, 1)

	fetched.Name = "welcome email v2"
	fetched.Condition = `payload.score >= 50`
	require.NoError(t, repo.Update(ctx, fetched))

	updated, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome email v2", updated.Name)
	assert.Equal(t, `payload.score >= 50`, updated.Condition)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	require.NoError(t, repo.Delete(ctx, rule.ID))
	_, err = repo.GetByID(ctx, rule.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRuleRepository_GetActiveRulesFiltersAndOrders(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	repo := rules.NewRepository(infra.MongoDB)
	ctx := context.Background()

	first := createTestRule("first", models.EventLeadCreated, "", true)
	second := createTestRule("second", models.EventPaymentReceived, "", true)
	inactive := createTestRule("inactive", models.EventLeadCreated, "", false)

	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, inactive))

	active, err := repo.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	// Oldest first, so matchers fan actions out in authoring order.
	assert.Equal(t, "first", active[0].Name)
	assert.Equal(t, "second", active[1].Name)
}

func TestRuleRepository_SetActive(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	repo := rules.NewRepository(infra.MongoDB)
	ctx := context.Background()

	rule := createTestRule("toggle me", models.EventLeadCreated, "", true)
	require.NoError(t, repo.Create(ctx, rule))

	require.NoError(t, repo.SetActive(ctx, rule.ID, false))
	active, err := repo.GetActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.SetActive(ctx, rule.ID, true))
	active, err = repo.GetActiveRules(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	err = repo.SetActive(ctx, "no-such-rule", true)
	assert.True(t, apperrors.IsNotFound(err))
}
