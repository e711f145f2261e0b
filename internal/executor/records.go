package executor

import (
	"context"

	"github.com/Varun2365/funnelseye/internal/store"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

func (h *Handlers) UpdateLeadScore(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	increment, ok := configNumber(action.Config, "scoreIncrement")
	if !ok {
		return apperrors.ErrValidation.WithMessage("update_lead_score requires numeric config.scoreIncrement").AsFatal()
	}

	leadID := leadIDFrom(payload)
	if leadID == "" {
		return apperrors.ErrValidation.WithMessage("event payload carries no lead reference").AsFatal()
	}

	return h.leads.IncrementScore(ctx, leadID, int(increment))
}

// UpdateLeadField sets one whitelisted lead field. The generic form covers
// the funnel-stage move that used to be its own action.
func (h *Handlers) UpdateLeadField(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	field := configString(action.Config, "field")
	value, hasValue := action.Config["value"]
	if field == "" || !hasValue {
		return apperrors.ErrValidation.WithMessage("update_lead_field requires config.field and config.value").AsFatal()
	}

	if !isWritableLeadField(field) {
		return apperrors.ErrValidation.
			WithMessage("update_lead_field may not write field " + field).
			AsFatal()
	}

	leadID := leadIDFrom(payload)
	if leadID == "" {
		return apperrors.ErrValidation.WithMessage("event payload carries no lead reference").AsFatal()
	}

	return h.leads.SetField(ctx, leadID, field, value)
}

// isWritableLeadField guards against rules rewriting identity or audit
// columns through the generic field update.
func isWritableLeadField(field string) bool {
	switch field {
	case "status", "temperature", "current_funnel_stage", "score":
		return true
	default:
		return false
	}
}

func (h *Handlers) AddCoachCredits(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	amount, ok := configNumber(action.Config, "creditAmount")
	if !ok {
		return apperrors.ErrValidation.WithMessage("add_coach_credits requires numeric config.creditAmount").AsFatal()
	}

	coachID := coachIDFrom(payload)
	if coachID == "" {
		return apperrors.ErrValidation.WithMessage("event payload carries no coach reference").AsFatal()
	}

	return h.coaches.AddCredits(ctx, coachID, int(amount))
}

func (h *Handlers) CreateTask(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	taskName := configString(action.Config, "taskName")
	if taskName == "" {
		return apperrors.ErrValidation.WithMessage("create_task requires config.taskName").AsFatal()
	}

	leadID := leadIDFrom(payload)
	coachID := coachIDFrom(payload)
	if leadID == "" || coachID == "" {
		return apperrors.ErrValidation.WithMessage("create_task requires lead and coach references in the payload").AsFatal()
	}

	task := &store.Task{
		Name:        taskName,
		Description: configString(action.Config, "taskDescription"),
		AssignedTo:  coachID,
		RelatedLead: leadID,
	}

	if raw := configString(action.Config, "dueDate"); raw != "" {
		dueDate, err := parseDueDate(raw)
		if err != nil {
			return apperrors.ErrValidation.WithMessage(err.Error()).AsFatal()
		}
		task.DueDate = dueDate
	}

	return h.tasks.Create(ctx, task)
}
