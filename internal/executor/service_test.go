package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/gateway"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/internal/store"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

type fakeLeadStore struct {
	leads      map[string]*store.Lead
	increments []int
	fields     map[string]interface{}
	statuses   []string
	failWith   error
}

func newFakeLeadStore(leads ...*store.Lead) *fakeLeadStore {
	s := &fakeLeadStore{leads: map[string]*store.Lead{}, fields: map[string]interface{}{}}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *fakeLeadStore) GetByID(ctx context.Context, id string) (*store.Lead, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	lead, ok := s.leads[id]
	if !ok {
		return nil, apperrors.ErrNotFound.WithDetail("lead_id", id)
	}
	return lead, nil
}

func (s *fakeLeadStore) IncrementScore(ctx context.Context, id string, delta int) error {
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.leads[id]; !ok {
		return apperrors.ErrNotFound.WithDetail("lead_id", id)
	}
	s.increments = append(s.increments, delta)
	s.leads[id].Score += delta
	return nil
}

func (s *fakeLeadStore) SetField(ctx context.Context, id string, field string, value interface{}) error {
	if _, ok := s.leads[id]; !ok {
		return apperrors.ErrNotFound.WithDetail("lead_id", id)
	}
	s.fields[field] = value
	return nil
}

func (s *fakeLeadStore) SetFunnelStage(ctx context.Context, id string, stage string) error {
	return s.SetField(ctx, id, "current_funnel_stage", stage)
}

func (s *fakeLeadStore) SetStatus(ctx context.Context, id string, status string) error {
	if err := s.SetField(ctx, id, "status", status); err != nil {
		return err
	}
	s.statuses = append(s.statuses, status)
	return nil
}

type fakeCoachStore struct {
	credits map[string]int
}

func (s *fakeCoachStore) GetByID(ctx context.Context, id string) (*store.Coach, error) {
	if _, ok := s.credits[id]; !ok {
		return nil, apperrors.ErrNotFound.WithDetail("coach_id", id)
	}
	return &store.Coach{ID: id, Credits: s.credits[id]}, nil
}

func (s *fakeCoachStore) AddCredits(ctx context.Context, id string, amount int) error {
	if _, ok := s.credits[id]; !ok {
		return apperrors.ErrNotFound.WithDetail("coach_id", id)
	}
	s.credits[id] += amount
	return nil
}

type fakeTaskStore struct {
	created []*store.Task
}

func (s *fakeTaskStore) Create(ctx context.Context, task *store.Task) error {
	s.created = append(s.created, task)
	return nil
}

type fakeEmailSender struct {
	sent     []gateway.EmailMessage
	failWith error
}

func (s *fakeEmailSender) SendEmail(ctx context.Context, msg gateway.EmailMessage) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeWhatsAppSender struct {
	sent []gateway.WhatsAppMessage
}

func (s *fakeWhatsAppSender) SendWhatsApp(ctx context.Context, msg gateway.WhatsAppMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

type fakeNotifier struct {
	sent []gateway.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, notification gateway.Notification) error {
	n.sent = append(n.sent, notification)
	return nil
}

type memoryLedger struct {
	claims map[string]bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{claims: map[string]bool{}}
}

func (l *memoryLedger) Claim(ctx context.Context, executionID string) (bool, error) {
	if l.claims[executionID] {
		return false, nil
	}
	l.claims[executionID] = true
	return true, nil
}

func (l *memoryLedger) Release(ctx context.Context, executionID string) error {
	delete(l.claims, executionID)
	return nil
}

type recordedExecution struct {
	actionType string
	status     string
	err        error
}

type fakeRecorder struct {
	records []recordedExecution
}

func (r *fakeRecorder) Record(ctx context.Context, action *models.ActionMessage, status string, execErr error, duration time.Duration) {
	r.records = append(r.records, recordedExecution{actionType: action.Type, status: status, err: execErr})
}

type testEnv struct {
	svc      *Service
	leads    *fakeLeadStore
	coaches  *fakeCoachStore
	tasks    *fakeTaskStore
	email    *fakeEmailSender
	whatsapp *fakeWhatsAppSender
	notifier *fakeNotifier
	ledger   *memoryLedger
	recorder *fakeRecorder
}

func newTestEnv(t *testing.T, idempotent bool) *testEnv {
	t.Helper()

	env := &testEnv{
		leads: newFakeLeadStore(&store.Lead{
			ID:     "lead-1",
			Name:   "Jordan",
			Score:  10,
			Status: "New",
			ContactInfo: store.ContactInfo{
				Email:    "jordan@example.com",
				Phone:    "+15550100",
				WhatsApp: "+15550100",
			},
		}),
		coaches:  &fakeCoachStore{credits: map[string]int{"coach-1": 100}},
		tasks:    &fakeTaskStore{},
		email:    &fakeEmailSender{},
		whatsapp: &fakeWhatsAppSender{},
		notifier: &fakeNotifier{},
		ledger:   newMemoryLedger(),
		recorder: &fakeRecorder{},
	}

	cfg := config.ExecutorConfig{
		HandlerTimeout: 5 * time.Second,
		Idempotency:    config.IdempotencyConfig{Enabled: idempotent},
	}

	env.svc = NewService(cfg, env.ledger, env.recorder, logger.NopLogger())

	handlers := NewHandlers(env.leads, env.coaches, env.tasks, nil,
		env.whatsapp, env.email, nil, nil, env.notifier)
	handlers.RegisterAll(env.svc)

	return env
}

func actionEnvelope(actionType string, cfg map[string]interface{}, payload map[string]interface{}) models.MessageEnvelope {
	event := models.NewEventEnvelope(models.EventLeadCreated, "crm", payload)
	return models.NewActionEnvelope(event, "rule-1", "welcome rule", actionType, cfg, 0, nil)
}

func TestHandleAction_SendEmail(t *testing.T) {
	env := newTestEnv(t, true)

	msg := actionEnvelope(models.ActionSendEmail,
		map[string]interface{}{"subject": "Welcome", "body": "Hello"},
		map[string]interface{}{"leadId": "lead-1"},
	)

	require.NoError(t, env.svc.HandleAction(context.Background(), msg))
	require.Len(t, env.email.sent, 1)
	assert.Equal(t, "jordan@example.com", env.email.sent[0].To)
	assert.Equal(t, "Welcome", env.email.sent[0].Subject)

	require.Len(t, env.recorder.records, 1)
	assert.Equal(t, "succeeded", env.recorder.records[0].status)
}

func TestHandleAction_SendWhatsAppUsesLeadNumber(t *testing.T) {
	env := newTestEnv(t, true)

	msg := actionEnvelope(models.ActionSendWhatsAppMessage,
		map[string]interface{}{"templateName": "welcome"},
		map[string]interface{}{"leadId": "lead-1"},
	)

	require.NoError(t, env.svc.HandleAction(context.Background(), msg))
	require.Len(t, env.whatsapp.sent, 1)
	assert.Equal(t, "+15550100", env.whatsapp.sent[0].To)
	assert.Equal(t, "welcome", env.whatsapp.sent[0].TemplateName)
}

func TestHandleAction_UpdateLeadScore(t *testing.T) {
	env := newTestEnv(t, true)

	msg := actionEnvelope(models.ActionUpdateLeadScore,
		map[string]interface{}{"scoreIncrement": float64(15)},
		map[string]interface{}{"leadId": "lead-1"},
	)

	require.NoError(t, env.svc.HandleAction(context.Background(), msg))
	assert.Equal(t, []int{15}, env.leads.increments)
	assert.Equal(t, 25, env.leads.leads["lead-1"].Score)
}

func TestHandleAction_CreateTask(t *testing.T) {
	env := newTestEnv(t, true)

	msg := actionEnvelope(models.ActionCreateTask,
		map[string]interface{}{
			"taskName":        "Call the lead",
			"taskDescription": "Follow up within a day",
			"dueDate":         "+1d",
		},
		map[string]interface{}{"leadId": "lead-1", "coachId": "coach-1"},
	)

	require.NoError(t, env.svc.HandleAction(context.Background(), msg))
	require.Len(t, env.tasks.created, 1)
	task := env.tasks.created[0]
	assert.Equal(t, "Call the lead", task.Name)
	assert.Equal(t, "coach-1", task.AssignedTo)
	assert.Equal(t, "lead-1", task.RelatedLead)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 1), task.DueDate, time.Minute)
}

func TestHandleAction_AddCoachCredits(t *testing.T) {
	env := newTestEnv(t, true)

	msg := actionEnvelope(models.ActionAddCoachCredits,
		map[string]interface{}{"creditAmount": float64(50)},
		map[string]interface{}{"coachId": "coach-1"},
	)

	require.NoError(t, env.svc.HandleAction(context.Background(), msg))
	assert.Equal(t, 150, env.coaches.credits["coach-1"])
}

func TestHandleAction_UnknownTypeIsFatal(t *testing.T) {
	env := newTestEnv(t, true)

	msg := actionEnvelope("fly_to_moon", map[string]interface{}{}, map[string]interface{}{})

	err := env.svc.HandleAction(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
}

func TestHandleAction_MissingLeadIsFatal(t *testing.T) {
	env := newTestEnv(t, true)

	msg := actionEnvelope(models.ActionSendEmail,
		map[string]interface{}{"subject": "s", "body": "b"},
		map[string]interface{}{"leadId": "no-such-lead"},
	)

	err := env.svc.HandleAction(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
}

func TestHandleAction_DuplicateSkippedWhenIdempotent(t *testing.T) {
	env := newTestEnv(t, true)

	msg := actionEnvelope(models.ActionSendEmail,
		map[string]interface{}{"subject": "s", "body": "b"},
		map[string]interface{}{"leadId": "lead-1"},
	)

	require.NoError(t, env.svc.HandleAction(context.Background(), msg))
	require.NoError(t, env.svc.HandleAction(context.Background(), msg))

	assert.Len(t, env.email.sent, 1)
	require.Len(t, env.recorder.records, 2)
	assert.Equal(t, "duplicate", env.recorder.records[1].status)
}

func TestHandleAction_DuplicateExecutesTwiceWithoutLedger(t *testing.T) {
	env := newTestEnv(t, false)

	msg := actionEnvelope(models.ActionSendEmail,
		map[string]interface{}{"subject": "s", "body": "b"},
		map[string]interface{}{"leadId": "lead-1"},
	)

	require.NoError(t, env.svc.HandleAction(context.Background(), msg))
	require.NoError(t, env.svc.HandleAction(context.Background(), msg))

	// At-least-once with no dedup: both deliveries run the side effect.
	assert.Len(t, env.email.sent, 2)
}

func TestHandleAction_FailureReleasesClaim(t *testing.T) {
	env := newTestEnv(t, true)
	env.email.failWith = errors.New("smtp relay down")

	msg := actionEnvelope(models.ActionSendEmail,
		map[string]interface{}{"subject": "s", "body": "b"},
		map[string]interface{}{"leadId": "lead-1"},
	)

	require.Error(t, env.svc.HandleAction(context.Background(), msg))
	require.Len(t, env.recorder.records, 1)
	assert.Equal(t, "failed", env.recorder.records[0].status)

	// Claim was released, so the redelivery executes instead of skipping.
	env.email.failWith = nil
	require.NoError(t, env.svc.HandleAction(context.Background(), msg))
	assert.Len(t, env.email.sent, 1)
}

func TestHandleAction_PaymentSubDispatch(t *testing.T) {
	env := newTestEnv(t, true)

	t.Run("update_lead_status", func(t *testing.T) {
		msg := actionEnvelope(models.ActionHandlePaymentActions,
			map[string]interface{}{"actionType": models.PaymentActionUpdateLeadStatus, "status": "Customer"},
			map[string]interface{}{"leadId": "lead-1"},
		)
		require.NoError(t, env.svc.HandleAction(context.Background(), msg))
		assert.Equal(t, []string{"Customer"}, env.leads.statuses)
	})

	t.Run("send_confirmation_email", func(t *testing.T) {
		msg := actionEnvelope(models.ActionHandlePaymentActions,
			map[string]interface{}{"actionType": models.PaymentActionSendConfirmationEmail},
			map[string]interface{}{"leadId": "lead-1", "amount": 99.0, "currency": "USD"},
		)
		require.NoError(t, env.svc.HandleAction(context.Background(), msg))
		require.Len(t, env.email.sent, 1)
		assert.Equal(t, "Payment received", env.email.sent[0].Subject)
		assert.Contains(t, env.email.sent[0].Body, "99.00 USD")
	})

	t.Run("send_internal_alert", func(t *testing.T) {
		msg := actionEnvelope(models.ActionHandlePaymentActions,
			map[string]interface{}{"actionType": models.PaymentActionSendInternalAlert},
			map[string]interface{}{"leadId": "lead-1", "amount": 99.0, "currency": "USD"},
		)
		require.NoError(t, env.svc.HandleAction(context.Background(), msg))
		require.Len(t, env.notifier.sent, 1)
		assert.Contains(t, env.notifier.sent[0].Message, "lead-1")
	})

	t.Run("unknown sub-action", func(t *testing.T) {
		msg := actionEnvelope(models.ActionHandlePaymentActions,
			map[string]interface{}{"actionType": "refund_everything"},
			map[string]interface{}{"leadId": "lead-1"},
		)
		err := env.svc.HandleAction(context.Background(), msg)
		require.Error(t, err)
		assert.True(t, apperrors.IsFatal(err))
	})
}

func TestHandleAction_HandlerGetsDeadline(t *testing.T) {
	cfg := config.ExecutorConfig{
		HandlerTimeout: 100 * time.Millisecond,
		Idempotency:    config.IdempotencyConfig{Enabled: false},
	}
	svc := NewService(cfg, nil, nil, logger.NopLogger())

	var hadDeadline bool
	svc.Register("probe", func(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})

	msg := actionEnvelope("probe", map[string]interface{}{}, map[string]interface{}{})
	require.NoError(t, svc.HandleAction(context.Background(), msg))
	assert.True(t, hadDeadline)
}

func TestHandleAction_IgnoresEventMessages(t *testing.T) {
	env := newTestEnv(t, true)

	event := models.NewEventEnvelope(models.EventLeadCreated, "crm", map[string]interface{}{})
	require.NoError(t, env.svc.HandleAction(context.Background(), event))
	assert.Empty(t, env.email.sent)
}
