package executor

import (
	"context"
	"fmt"

	"github.com/Varun2365/funnelseye/internal/gateway"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

// SendWhatsAppMessage delivers a templated WhatsApp message to the lead's
// WhatsApp number. Template name comes from config, the number from the
// lead record; either missing is fatal.
func (h *Handlers) SendWhatsAppMessage(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	templateName := configString(action.Config, "templateName")
	if templateName == "" {
		return apperrors.ErrValidation.WithMessage("send_whatsapp_message requires config.templateName").AsFatal()
	}

	lead, err := h.resolveLead(ctx, payload)
	if err != nil {
		return err
	}
	if lead.ContactInfo.WhatsApp == "" {
		return apperrors.ErrValidation.
			WithMessage(fmt.Sprintf("lead %s has no WhatsApp number", lead.ID)).
			AsFatal()
	}

	variables, _ := action.Config["variables"].(map[string]interface{})

	return h.whatsapp.SendWhatsApp(ctx, gateway.WhatsAppMessage{
		To:           lead.ContactInfo.WhatsApp,
		TemplateName: templateName,
		Variables:    variables,
	})
}

func (h *Handlers) SendSMS(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	message := configString(action.Config, "message")
	if message == "" {
		return apperrors.ErrValidation.WithMessage("send_sms requires config.message").AsFatal()
	}

	lead, err := h.resolveLead(ctx, payload)
	if err != nil {
		return err
	}
	if lead.ContactInfo.Phone == "" {
		return apperrors.ErrValidation.
			WithMessage(fmt.Sprintf("lead %s has no phone number", lead.ID)).
			AsFatal()
	}

	return h.sms.SendSMS(ctx, gateway.SMSMessage{
		To:      lead.ContactInfo.Phone,
		Message: message,
	})
}

func (h *Handlers) SendInternalNotification(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	message := configString(action.Config, "message")
	if message == "" {
		return apperrors.ErrValidation.WithMessage("send_internal_notification requires config.message").AsFatal()
	}

	return h.notifier.Notify(ctx, gateway.Notification{
		Recipient: configString(action.Config, "recipient"),
		Message:   message,
		Severity:  configString(action.Config, "severity"),
	})
}

func (h *Handlers) CreateCalendarEvent(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	title := configString(action.Config, "title")
	if title == "" {
		return apperrors.ErrValidation.WithMessage("create_calendar_event requires config.title").AsFatal()
	}

	event := gateway.CalendarEvent{
		Title:       title,
		Description: configString(action.Config, "description"),
		LeadID:      leadIDFrom(payload),
		CoachID:     coachIDFrom(payload),
	}

	if raw := configString(action.Config, "startsAt"); raw != "" {
		startsAt, err := parseDueDate(raw)
		if err != nil {
			return apperrors.ErrValidation.WithMessage(err.Error()).AsFatal()
		}
		event.StartsAt = startsAt
	}
	if minutes, ok := configNumber(action.Config, "durationMinutes"); ok {
		event.DurationMinutes = int(minutes)
	}

	return h.calendar.CreateEvent(ctx, event)
}
