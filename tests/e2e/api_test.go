package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Varun2365/funnelseye/internal/admin"
	"github.com/Varun2365/funnelseye/internal/rules"
	"github.com/Varun2365/funnelseye/pkg/models"
)

// These tests expect a running deployment (docker compose up): the admin
// service on localhost:8084 and the pipeline services behind it.
const (
	adminServiceURL = "http://localhost:8084"
)

func TestAdminServiceHealth(t *testing.T) {
	resp, err := http.Get(fmt.Sprintf("%s/health", adminServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.NotNil(t, health["status"])
}

func TestAutomationRulesCRUD(t *testing.T) {
	createReq := admin.CreateRuleRequest{
		Name:         "e2e_crud_rule",
		TriggerEvent: models.EventLeadCreated,
		Condition:    `payload.score >= 10`,
		Actions: []rules.Action{
			{Type: models.ActionSendEmail, Config: map[string]interface{}{
				"subject": "Welcome",
				"body":    "Hello from e2e",
			}},
		},
	}

	ruleID := createRule(t, createReq)
	defer deleteRule(t, ruleID)

	rule := getRule(t, ruleID)
	assert.Equal(t, createReq.Name, rule.Name)
	assert.Equal(t, createReq.TriggerEvent, rule.TriggerEvent)
	assert.Equal(t, createReq.Condition, rule.Condition)
	assert.True(t, rule.IsActive)

	list := listRules(t)
	found := false
	for _, r := range list {
		if r.ID == ruleID {
			found = true
			break
		}
	}
	assert.True(t, found, "created rule should be in the list")

	updateReq := admin.UpdateRuleRequest{
		Name:         "e2e_crud_rule_v2",
		TriggerEvent: models.EventPaymentReceived,
		Actions: []rules.Action{
			{Type: models.ActionHandlePaymentActions, Config: map[string]interface{}{
				"actionType": models.PaymentActionUpdateLeadStatus,
				"status":     "Customer",
			}},
		},
	}
	updated := updateRule(t, ruleID, updateReq)
	assert.Equal(t, "e2e_crud_rule_v2", updated.Name)
	assert.Equal(t, models.EventPaymentReceived, updated.TriggerEvent)

	toggled := toggleRule(t, ruleID, false)
	assert.False(t, toggled.IsActive)
}

func TestCreateRuleValidation(t *testing.T) {
	t.Run("unknown trigger event", func(t *testing.T) {
		req := admin.CreateRuleRequest{
			Name:         "bad_trigger",
			TriggerEvent: "NOT_A_REAL_EVENT",
			Actions: []rules.Action{
				{Type: models.ActionSendSMS, Config: map[string]interface{}{"message": "hi"}},
			},
		}
		resp := postJSON(t, "/api/v1/rules", req)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing action config", func(t *testing.T) {
		req := admin.CreateRuleRequest{
			Name:         "missing_config",
			TriggerEvent: models.EventLeadCreated,
			Actions: []rules.Action{
				{Type: models.ActionSendEmail, Config: map[string]interface{}{}},
			},
		}
		resp := postJSON(t, "/api/v1/rules", req)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad condition expression", func(t *testing.T) {
		req := admin.CreateRuleRequest{
			Name:         "bad_condition",
			TriggerEvent: models.EventLeadCreated,
			Condition:    `payload.score >`,
			Actions: []rules.Action{
				{Type: models.ActionSendSMS, Config: map[string]interface{}{"message": "hi"}},
			},
		}
		resp := postJSON(t, "/api/v1/rules", req)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestPublishEventEndpoint(t *testing.T) {
	resp := postJSON(t, "/api/v1/events", admin.PublishEventRequest{
		EventName: models.EventLeadCreated,
		Payload:   map[string]interface{}{"leadId": "e2e-lead"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var published admin.PublishEventResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&published))
	assert.NotEmpty(t, published.EventID)
	assert.Equal(t, models.EventLeadCreated, published.EventName)

	bad := postJSON(t, "/api/v1/events", admin.PublishEventRequest{
		EventName: "lead_created",
	})
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(adminServiceURL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func createRule(t *testing.T, req admin.CreateRuleRequest) string {
	t.Helper()

	resp := postJSON(t, "/api/v1/rules", req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule rules.AutomationRule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rule))
	require.NotEmpty(t, rule.ID)
	return rule.ID
}

func getRule(t *testing.T, id string) rules.AutomationRule {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/rules/%s", adminServiceURL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rule rules.AutomationRule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rule))
	return rule
}

func listRules(t *testing.T) []rules.AutomationRule {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/rules", adminServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []rules.AutomationRule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	return list
}

func updateRule(t *testing.T, id string, req admin.UpdateRuleRequest) rules.AutomationRule {
	t.Helper()

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/v1/rules/%s", adminServiceURL, id), bytes.NewReader(raw))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rule rules.AutomationRule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rule))
	return rule
}

func toggleRule(t *testing.T, id string, active bool) rules.AutomationRule {
	t.Helper()

	raw, err := json.Marshal(admin.ToggleRuleRequest{IsActive: &active})
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("%s/api/v1/rules/%s/toggle", adminServiceURL, id), bytes.NewReader(raw))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rule rules.AutomationRule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rule))
	return rule
}

func deleteRule(t *testing.T, id string) {
	t.Helper()

	httpReq, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/v1/rules/%s", adminServiceURL, id), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	resp.Body.Close()
}
