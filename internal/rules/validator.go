package rules

import (
	"fmt"

	"github.com/Varun2365/funnelseye/pkg/cel"
	"github.com/Varun2365/funnelseye/pkg/models"
)

// requiredConfigKeys lists the config fields without which an action cannot
// execute. Checked at authoring time and again before fan-out, so a broken
// rule fails at the door instead of in a retry loop.
var requiredConfigKeys = map[string][]string{
	models.ActionSendWhatsAppMessage:      {"templateName"},
	models.ActionSendEmail:                {"subject", "body"},
	models.ActionSendSMS:                  {"message"},
	models.ActionUpdateLeadScore:          {"scoreIncrement"},
	models.ActionUpdateLeadField:          {"field", "value"},
	models.ActionAddCoachCredits:          {"creditAmount"},
	models.ActionCreateTask:               {"taskName"},
	models.ActionCreateCalendarEvent:      {"title"},
	models.ActionSendInternalNotification: {"message"},
	models.ActionHandlePaymentActions:     {"actionType"},
}

var paymentSubActions = map[string]struct{}{
	models.PaymentActionUpdateLeadStatus:      {},
	models.PaymentActionSendConfirmationEmail: {},
	models.PaymentActionSendInternalAlert:     {},
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateRule checks a rule for structural problems. An evaluator may be
// nil when condition validation is not wanted (for example in the matcher's
// hot path, where conditions were validated at authoring time).
func ValidateRule(rule AutomationRule, evaluator *cel.Evaluator) error {
	if rule.Name == "" {
		return ValidationError{Field: "name", Message: "must not be empty"}
	}

	if rule.TriggerEvent == "" {
		return ValidationError{Field: "trigger_event", Message: "must not be empty"}
	}

	if !models.IsCatalogEvent(rule.TriggerEvent) {
		return ValidationError{
			Field:   "trigger_event",
			Message: fmt.Sprintf("unknown event %q", rule.TriggerEvent),
		}
	}

	if len(rule.Actions) == 0 {
		return ValidationError{Field: "actions", Message: "must contain at least one action"}
	}

	for i, action := range rule.Actions {
		if err := validateAction(i, action); err != nil {
			return err
		}
	}

	if rule.Condition != "" && evaluator != nil {
		if err := evaluator.ValidateCondition(rule.Condition); err != nil {
			return ValidationError{Field: "condition", Message: err.Error()}
		}
	}

	return nil
}

func validateAction(index int, action Action) error {
	field := fmt.Sprintf("actions[%d]", index)

	if !models.IsSupportedActionType(action.Type) {
		return ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("unsupported action type %q", action.Type),
		}
	}

	for _, key := range requiredConfigKeys[action.Type] {
		if _, ok := action.Config[key]; !ok {
			return ValidationError{
				Field:   fmt.Sprintf("%s.config.%s", field, key),
				Message: fmt.Sprintf("required for action type %q", action.Type),
			}
		}
	}

	if action.Type == models.ActionHandlePaymentActions {
		subAction, _ := action.Config["actionType"].(string)
		if _, ok := paymentSubActions[subAction]; !ok {
			return ValidationError{
				Field:   field + ".config.actionType",
				Message: fmt.Sprintf("unknown payment sub-action %q", subAction),
			}
		}
	}

	return nil
}
