package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun2365/funnelseye/internal/audit"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/internal/rules"
	"github.com/Varun2365/funnelseye/pkg/cel"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

type fakeRuleRepo struct {
	rules map[string]*rules.AutomationRule
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: map[string]*rules.AutomationRule{}}
}

func (r *fakeRuleRepo) GetActiveRules(ctx context.Context) ([]rules.AutomationRule, error) {
	var active []rules.AutomationRule
	for _, rule := range r.rules {
		if rule.IsActive {
			active = append(active, *rule)
		}
	}
	return active, nil
}

func (r *fakeRuleRepo) Create(ctx context.Context, rule *rules.AutomationRule) error {
	if rule.ID == "" {
		rule.ID = "rule-" + rule.Name
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *fakeRuleRepo) GetByID(ctx context.Context, id string) (*rules.AutomationRule, error) {
	rule, ok := r.rules[id]
	if !ok {
		return nil, apperrors.ErrNotFound.WithDetail("rule_id", id)
	}
	copied := *rule
	return &copied, nil
}

func (r *fakeRuleRepo) List(ctx context.Context, limit, offset int) ([]rules.AutomationRule, error) {
	var all []rules.AutomationRule
	for _, rule := range r.rules {
		all = append(all, *rule)
	}
	return all, nil
}

func (r *fakeRuleRepo) Update(ctx context.Context, rule *rules.AutomationRule) error {
	if _, ok := r.rules[rule.ID]; !ok {
		return apperrors.ErrNotFound.WithDetail("rule_id", rule.ID)
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *fakeRuleRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.rules[id]; !ok {
		return apperrors.ErrNotFound.WithDetail("rule_id", id)
	}
	delete(r.rules, id)
	return nil
}

func (r *fakeRuleRepo) SetActive(ctx context.Context, id string, active bool) error {
	rule, ok := r.rules[id]
	if !ok {
		return apperrors.ErrNotFound.WithDetail("rule_id", id)
	}
	rule.IsActive = active
	return nil
}

type publishedMessage struct {
	topic string
	msg   models.MessageEnvelope
}

type fakeProducer struct {
	published []publishedMessage
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error {
	p.published = append(p.published, publishedMessage{topic: topic, msg: msg})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type fakeExecutionLister struct {
	executions []audit.Execution
	lastFilter audit.Filter
}

func (l *fakeExecutionLister) List(ctx context.Context, filter audit.Filter) ([]audit.Execution, error) {
	l.lastFilter = filter
	return l.executions, nil
}

func newTestAdmin(t *testing.T) (*Service, *fakeRuleRepo, *fakeProducer) {
	t.Helper()

	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	repo := newFakeRuleRepo()
	producer := &fakeProducer{}
	notifier := NewNotifier(producer, "funnelseye_config", logger.NopLogger())

	svc := NewService(repo, evaluator, producer, "funnelseye_events", notifier,
		&fakeExecutionLister{}, logger.NopLogger())
	return svc, repo, producer
}

func validCreateRequest() CreateRuleRequest {
	return CreateRuleRequest{
		Name:         "welcome new leads",
		TriggerEvent: models.EventLeadCreated,
		Actions: []rules.Action{
			{Type: models.ActionSendEmail, Config: map[string]interface{}{
				"subject": "Welcome", "body": "Hello",
			}},
		},
	}
}

func TestCreateRule_PersistsAndNotifies(t *testing.T) {
	svc, repo, producer := newTestAdmin(t)

	rule, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.True(t, rule.IsActive)
	assert.NotEmpty(t, rule.ID)
	assert.Contains(t, repo.rules, rule.ID)

	require.Len(t, producer.published, 1)
	assert.Equal(t, "funnelseye_config", producer.published[0].topic)
	assert.Equal(t, models.ActionCreate, producer.published[0].msg.Payload["action"])
}

func TestCreateRule_RejectsUnknownTriggerEvent(t *testing.T) {
	svc, _, producer := newTestAdmin(t)

	req := validCreateRequest()
	req.TriggerEvent = "SOMETHING_ELSE"

	_, err := svc.CreateRule(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, producer.published)
}

func TestCreateRule_RejectsBadCondition(t *testing.T) {
	svc, _, _ := newTestAdmin(t)

	req := validCreateRequest()
	req.Condition = `payload.score >` // does not compile

	_, err := svc.CreateRule(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateRule_ValidatesBeforeWriting(t *testing.T) {
	svc, repo, _ := newTestAdmin(t)

	created, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.NoError(t, err)

	update := UpdateRuleRequest{
		Name:         created.Name,
		TriggerEvent: created.TriggerEvent,
		Actions:      []rules.Action{{Type: "teleport_lead", Config: map[string]interface{}{}}},
	}
	_, err = svc.UpdateRule(context.Background(), created.ID, update)
	require.Error(t, err)

	// The stored rule is untouched.
	stored := repo.rules[created.ID]
	assert.Equal(t, models.ActionSendEmail, stored.Actions[0].Type)
}

func TestToggleRule_FlipsActiveAndNotifies(t *testing.T) {
	svc, repo, producer := newTestAdmin(t)

	created, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.NoError(t, err)

	toggled, err := svc.ToggleRule(context.Background(), created.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	assert.False(t, repo.rules[created.ID].IsActive)

	last := producer.published[len(producer.published)-1]
	assert.Equal(t, models.ActionToggle, last.msg.Payload["action"])
}

func TestDeleteRule_NotFound(t *testing.T) {
	svc, _, _ := newTestAdmin(t)

	err := svc.DeleteRule(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPublishEvent_WrapsPayloadInEnvelope(t *testing.T) {
	svc, _, producer := newTestAdmin(t)

	resp, err := svc.PublishEvent(context.Background(), PublishEventRequest{
		EventName: models.EventPaymentReceived,
		Payload:   map[string]interface{}{"leadId": "lead-1", "amount": 99.0},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.EventID)

	require.Len(t, producer.published, 1)
	published := producer.published[0]
	assert.Equal(t, "funnelseye_events", published.topic)
	assert.Equal(t, models.EventPaymentReceived, published.msg.EventName)
	assert.Equal(t, "admin-api", published.msg.Source)
	assert.Equal(t, "lead-1", published.msg.Payload["leadId"])
}

func TestPublishEvent_RejectsOffCatalogName(t *testing.T) {
	svc, _, producer := newTestAdmin(t)

	_, err := svc.PublishEvent(context.Background(), PublishEventRequest{
		EventName: "lead_created", // catalog names are uppercase
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, producer.published)
}
