// Package scheduler holds delayed actions until they fall due and hands
// them to the executor. The queue is a Redis sorted set scored by due time,
// which survives restarts and lets any number of scheduler replicas poll it.
package scheduler

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Varun2365/funnelseye/internal/constants"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

// ClaimedAction is a due action under lease. The raw member is kept so
// Complete can remove exactly the entry that was claimed, even after the
// envelope has been mutated for rescheduling.
type ClaimedAction struct {
	Envelope models.MessageEnvelope
	member   string
}

// ScheduleStore is the durable delayed queue. Schedule is called by the
// rules engine when it matches a delayed action; ClaimDue is polled by the
// scheduled executor. A claim is a lease, not a removal: until Complete is
// called the entry sits in an in-flight set, and a claim whose lease expires
// becomes due again. A worker crash therefore redelivers, never loses.
type ScheduleStore interface {
	Schedule(ctx context.Context, msg models.MessageEnvelope, dueAt time.Time) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]ClaimedAction, error)
	Complete(ctx context.Context, claim ClaimedAction) error
	PendingCount(ctx context.Context) (int64, error)
}

type RedisScheduleStore struct {
	client      *redis.Client
	key         string
	inFlightKey string
	leaseTTL    time.Duration
}

func NewRedisScheduleStore(client *redis.Client) *RedisScheduleStore {
	return &RedisScheduleStore{
		client:      client,
		key:         constants.ScheduledActionsKey,
		inFlightKey: constants.ScheduledActionsInFlightKey,
		leaseTTL:    constants.DefaultSchedulerLeaseTTL,
	}
}

func (s *RedisScheduleStore) Schedule(ctx context.Context, msg models.MessageEnvelope, dueAt time.Time) error {
	member, err := json.Marshal(msg)
	if err != nil {
		return apperrors.ErrInternal.WithCause(err).AsFatal()
	}

	if err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: string(member),
	}).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
	}
	return nil
}

// ClaimDue leases up to limit actions whose due time has passed. A member is
// copied to the in-flight set before it is removed from the pending set, so
// a crash between the two steps redelivers instead of losing the action;
// ZREM on the pending set decides which competing poller won the claim.
func (s *RedisScheduleStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]ClaimedAction, error) {
	if err := s.reclaimExpired(ctx, now); err != nil {
		return nil, err
	}

	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
	}

	leaseExpiry := float64(now.Add(s.leaseTTL).UnixMilli())
	claimed := make([]ClaimedAction, 0, len(members))
	for _, member := range members {
		if err := s.client.ZAdd(ctx, s.inFlightKey, redis.Z{
			Score:  leaseExpiry,
			Member: member,
		}).Err(); err != nil {
			return claimed, apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
		}

		removed, err := s.client.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return claimed, apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
		}
		if removed == 0 {
			// Another replica claimed it first; its lease owns the
			// in-flight entry now.
			continue
		}

		var msg models.MessageEnvelope
		if err := json.Unmarshal([]byte(member), &msg); err != nil {
			// Unparseable members would wedge the queue head forever,
			// so they are dropped, lease and all.
			_ = s.client.ZRem(ctx, s.inFlightKey, member).Err()
			continue
		}
		claimed = append(claimed, ClaimedAction{Envelope: msg, member: member})
	}
	return claimed, nil
}

// Complete settles a lease once the action has been dispatched, rescheduled,
// or parked in the DLQ.
func (s *RedisScheduleStore) Complete(ctx context.Context, claim ClaimedAction) error {
	if err := s.client.ZRem(ctx, s.inFlightKey, claim.member).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
	}
	return nil
}

// reclaimExpired moves in-flight entries whose lease has lapsed back to the
// pending set, due immediately. The holder crashed or stalled; someone else
// gets to run the action.
func (s *RedisScheduleStore) reclaimExpired(ctx context.Context, now time.Time) error {
	expired, err := s.client.ZRangeByScore(ctx, s.inFlightKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
	}

	for _, member := range expired {
		removed, err := s.client.ZRem(ctx, s.inFlightKey, member).Result()
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
		}
		if removed == 0 {
			continue
		}
		if err := s.client.ZAdd(ctx, s.key, redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: member,
		}).Err(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
		}
	}
	return nil
}

func (s *RedisScheduleStore) PendingCount(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrServiceUnavailable)
	}
	return count, nil
}
