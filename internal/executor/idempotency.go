package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Varun2365/funnelseye/internal/constants"
)

// Ledger records which execution ids have already run, so a redelivered
// action message is skipped instead of executed twice. Claims are released
// on handler failure so a later redelivery still gets its retry.
type Ledger interface {
	Claim(ctx context.Context, executionID string) (bool, error)
	Release(ctx context.Context, executionID string) error
}

type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttlSeconds int) *RedisLedger {
	if ttlSeconds <= 0 {
		ttlSeconds = constants.DefaultExecutionTTLS
	}
	return &RedisLedger{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

// Claim marks the execution id as taken. SetNX makes the claim atomic
// across competing workers; false means some worker already ran (or is
// running) this execution.
func (l *RedisLedger) Claim(ctx context.Context, executionID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(executionID), time.Now().Format(time.RFC3339Nano), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim execution %s: %w", executionID, err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, executionID string) error {
	if err := l.client.Del(ctx, l.key(executionID)).Err(); err != nil {
		return fmt.Errorf("failed to release execution %s: %w", executionID, err)
	}
	return nil
}

func (l *RedisLedger) key(executionID string) string {
	return constants.ExecutionKeyPrefix + executionID
}
