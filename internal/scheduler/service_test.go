package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/logger"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

type scheduledEntry struct {
	msg   models.MessageEnvelope
	dueAt time.Time
}

type memoryScheduleStore struct {
	entries   []scheduledEntry
	inFlight  map[string]scheduledEntry
	leaseTTL  time.Duration
	completed []string
	nextID    int
}

func newMemoryScheduleStore() *memoryScheduleStore {
	return &memoryScheduleStore{
		inFlight: map[string]scheduledEntry{},
		leaseTTL: time.Minute,
	}
}

func (s *memoryScheduleStore) Schedule(ctx context.Context, msg models.MessageEnvelope, dueAt time.Time) error {
	s.entries = append(s.entries, scheduledEntry{msg: msg, dueAt: dueAt})
	return nil
}

func (s *memoryScheduleStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]ClaimedAction, error) {
	// Expired leases fall back into the queue, due immediately.
	for member, e := range s.inFlight {
		if !e.dueAt.After(now) {
			delete(s.inFlight, member)
			s.entries = append(s.entries, scheduledEntry{msg: e.msg, dueAt: now})
		}
	}

	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].dueAt.Before(s.entries[j].dueAt) })

	var due []ClaimedAction
	var remaining []scheduledEntry
	for _, e := range s.entries {
		if len(due) < limit && !e.dueAt.After(now) {
			s.nextID++
			member := fmt.Sprintf("claim-%d", s.nextID)
			s.inFlight[member] = scheduledEntry{msg: e.msg, dueAt: now.Add(s.leaseTTL)}
			due = append(due, ClaimedAction{Envelope: e.msg, member: member})
		} else {
			remaining = append(remaining, e)
		}
	}
	s.entries = remaining
	return due, nil
}

func (s *memoryScheduleStore) Complete(ctx context.Context, claim ClaimedAction) error {
	delete(s.inFlight, claim.member)
	s.completed = append(s.completed, claim.Envelope.ID)
	return nil
}

func (s *memoryScheduleStore) PendingCount(ctx context.Context) (int64, error) {
	return int64(len(s.entries)), nil
}

type fakeDispatcher struct {
	handled  []models.MessageEnvelope
	failWith error
	failN    int
}

func (d *fakeDispatcher) HandleAction(ctx context.Context, msg models.MessageEnvelope) error {
	d.handled = append(d.handled, msg)
	if d.failWith != nil && (d.failN < 0 || len(d.handled) <= d.failN) {
		return d.failWith
	}
	return nil
}

type fakeDLQProducer struct {
	published []models.MessageEnvelope
	topics    []string
	failWith  error
}

func (p *fakeDLQProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.published = append(p.published, msg)
	p.topics = append(p.topics, topic)
	return nil
}

func (p *fakeDLQProducer) Close() error { return nil }

func newTestService(store *memoryScheduleStore, dispatcher *fakeDispatcher, producer *fakeDLQProducer) *Service {
	cfg := config.SchedulerConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    50,
		MaxAttempts:  3,
	}
	retryCfg := config.RetryConfig{
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2,
	}
	return NewService(store, dispatcher, producer, "funnelseye_dlq", cfg, retryCfg, logger.NopLogger())
}

func delayedAction(dueAt time.Time) models.MessageEnvelope {
	event := models.NewEventEnvelope(models.EventLeadCreated, "crm",
		map[string]interface{}{"leadId": "lead-1"})
	return models.NewActionEnvelope(event, "rule-1", "follow up", models.ActionSendEmail,
		map[string]interface{}{"subject": "s", "body": "b"}, 0, &dueAt)
}

func TestReleaseDue_DispatchesOnlyDueActions(t *testing.T) {
	store := newMemoryScheduleStore()
	dispatcher := &fakeDispatcher{}
	svc := newTestService(store, dispatcher, &fakeDLQProducer{})

	now := time.Now()
	due := delayedAction(now.Add(-time.Minute))
	future := delayedAction(now.Add(time.Hour))
	require.NoError(t, store.Schedule(context.Background(), due, now.Add(-time.Minute)))
	require.NoError(t, store.Schedule(context.Background(), future, now.Add(time.Hour)))

	require.NoError(t, svc.ReleaseDue(context.Background(), now))

	require.Len(t, dispatcher.handled, 1)
	assert.Equal(t, due.ID, dispatcher.handled[0].ID)
	assert.Len(t, store.entries, 1)
	assert.Empty(t, store.inFlight, "a handled action's lease is settled")
}

func TestReleaseDue_EmptyQueueIsANoOp(t *testing.T) {
	store := newMemoryScheduleStore()
	dispatcher := &fakeDispatcher{}
	svc := newTestService(store, dispatcher, &fakeDLQProducer{})

	require.NoError(t, svc.ReleaseDue(context.Background(), time.Now()))
	assert.Empty(t, dispatcher.handled)
}

func TestReleaseDue_RetryableFailureIsRescheduledWithBackoff(t *testing.T) {
	store := newMemoryScheduleStore()
	dispatcher := &fakeDispatcher{failWith: errors.New("gateway unreachable"), failN: -1}
	producer := &fakeDLQProducer{}
	svc := newTestService(store, dispatcher, producer)

	now := time.Now()
	msg := delayedAction(now.Add(-time.Second))
	require.NoError(t, store.Schedule(context.Background(), msg, now.Add(-time.Second)))

	require.NoError(t, svc.ReleaseDue(context.Background(), now))

	// Back in the queue, due later, with the attempt recorded.
	require.Len(t, store.entries, 1)
	assert.True(t, store.entries[0].dueAt.After(now))
	assert.Equal(t, 1, schedulerAttempt(store.entries[0].msg))
	assert.Empty(t, producer.published)
	assert.Empty(t, store.inFlight, "the old lease is settled once the reschedule is durable")
}

func TestReleaseDue_ExhaustedRetriesGoToDLQ(t *testing.T) {
	store := newMemoryScheduleStore()
	dispatcher := &fakeDispatcher{failWith: errors.New("gateway unreachable"), failN: -1}
	producer := &fakeDLQProducer{}
	svc := newTestService(store, dispatcher, producer)

	now := time.Now()
	msg := delayedAction(now.Add(-time.Second))
	require.NoError(t, store.Schedule(context.Background(), msg, now.Add(-time.Second)))

	// Three passes: two reschedules, then the third attempt hits the cap.
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.ReleaseDue(context.Background(), now.Add(time.Duration(i+1)*time.Hour)))
	}

	assert.Empty(t, store.entries)
	assert.Empty(t, store.inFlight)
	require.Len(t, producer.published, 1)
	assert.Equal(t, "funnelseye_dlq", producer.topics[0])
	assert.Equal(t, "max_retries_exceeded", producer.published[0].Metadata.Delivery["dlq_reason"])
}

func TestReleaseDue_FatalFailureGoesStraightToDLQ(t *testing.T) {
	store := newMemoryScheduleStore()
	dispatcher := &fakeDispatcher{failWith: apperrors.ErrValidation.WithMessage("no lead reference").AsFatal(), failN: -1}
	producer := &fakeDLQProducer{}
	svc := newTestService(store, dispatcher, producer)

	now := time.Now()
	msg := delayedAction(now.Add(-time.Second))
	require.NoError(t, store.Schedule(context.Background(), msg, now.Add(-time.Second)))

	require.NoError(t, svc.ReleaseDue(context.Background(), now))

	assert.Empty(t, store.entries)
	assert.Empty(t, store.inFlight)
	require.Len(t, producer.published, 1)
	assert.Equal(t, "fatal_error", producer.published[0].Metadata.Delivery["dlq_reason"])
}

func TestReleaseDue_OneFailureDoesNotBlockTheBatch(t *testing.T) {
	store := newMemoryScheduleStore()
	dispatcher := &fakeDispatcher{failWith: errors.New("boom"), failN: 1}
	producer := &fakeDLQProducer{}
	svc := newTestService(store, dispatcher, producer)

	now := time.Now()
	first := delayedAction(now.Add(-2 * time.Minute))
	second := delayedAction(now.Add(-time.Minute))
	require.NoError(t, store.Schedule(context.Background(), first, now.Add(-2*time.Minute)))
	require.NoError(t, store.Schedule(context.Background(), second, now.Add(-time.Minute)))

	require.NoError(t, svc.ReleaseDue(context.Background(), now))

	// Both were dispatched; only the failing one went back to the queue.
	assert.Len(t, dispatcher.handled, 2)
	assert.Len(t, store.entries, 1)
}

func TestReleaseDue_ExpiredLeaseIsRedelivered(t *testing.T) {
	store := newMemoryScheduleStore()
	dispatcher := &fakeDispatcher{}
	svc := newTestService(store, dispatcher, &fakeDLQProducer{})

	now := time.Now()
	msg := delayedAction(now.Add(-time.Second))
	require.NoError(t, store.Schedule(context.Background(), msg, now.Add(-time.Second)))

	// A worker claims the action and dies before dispatching it.
	crashed, err := store.ClaimDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, crashed, 1)

	// Before the lease lapses nobody else may run it.
	require.NoError(t, svc.ReleaseDue(context.Background(), now.Add(time.Second)))
	assert.Empty(t, dispatcher.handled)

	// After the lease lapses the action is claimable again.
	require.NoError(t, svc.ReleaseDue(context.Background(), now.Add(store.leaseTTL+time.Second)))
	require.Len(t, dispatcher.handled, 1)
	assert.Equal(t, msg.ID, dispatcher.handled[0].ID)
	assert.Empty(t, store.inFlight)
}

func TestReleaseDue_FailedDLQPublishKeepsTheLease(t *testing.T) {
	store := newMemoryScheduleStore()
	dispatcher := &fakeDispatcher{failWith: apperrors.ErrValidation.WithMessage("no lead reference").AsFatal(), failN: -1}
	producer := &fakeDLQProducer{failWith: errors.New("broker down")}
	svc := newTestService(store, dispatcher, producer)

	now := time.Now()
	msg := delayedAction(now.Add(-time.Second))
	require.NoError(t, store.Schedule(context.Background(), msg, now.Add(-time.Second)))

	require.NoError(t, svc.ReleaseDue(context.Background(), now))

	// The action is neither in the DLQ nor settled; the lease will expire
	// and another poll gets to try again.
	assert.Empty(t, producer.published)
	assert.Len(t, store.inFlight, 1)
	assert.Empty(t, store.completed)
}

func TestRedisStoreIsTheRulesEngineDelayStore(t *testing.T) {
	// Compile-time check that the rules engine can schedule through the
	// same store the scheduler drains.
	var _ interface {
		Schedule(ctx context.Context, msg models.MessageEnvelope, dueAt time.Time) error
	} = &RedisScheduleStore{}
}
