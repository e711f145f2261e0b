package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun2365/funnelseye/internal/executor"
)

func TestRedisLedger_ClaimOncePerExecution(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)
	ledger := executor.NewRedisLedger(infra.RedisClient, 60)
	ctx := context.Background()

	claimed, err := ledger.Claim(ctx, "rule-1:event-1:0")
	require.NoError(t, err)
	assert.True(t, claimed)

	// The redelivery loses the claim.
	claimed, err = ledger.Claim(ctx, "rule-1:event-1:0")
	require.NoError(t, err)
	assert.False(t, claimed)

	// A different action of the same event is a separate execution.
	claimed, err = ledger.Claim(ctx, "rule-1:event-1:1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisLedger_ReleaseReopensClaim(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)
	ledger := executor.NewRedisLedger(infra.RedisClient, 60)
	ctx := context.Background()

	claimed, err := ledger.Claim(ctx, "rule-2:event-1:0")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, ledger.Release(ctx, "rule-2:event-1:0"))

	claimed, err = ledger.Claim(ctx, "rule-2:event-1:0")
	require.NoError(t, err)
	assert.True(t, claimed)
}
