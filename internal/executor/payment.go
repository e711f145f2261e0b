package executor

import (
	"context"
	"fmt"

	"github.com/Varun2365/funnelseye/internal/gateway"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

// HandlePaymentActions is the payment follow-up family. The concrete
// behavior is picked by config.actionType, a second dispatch level owned by
// this handler rather than the service registry.
func (h *Handlers) HandlePaymentActions(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	subAction := configString(action.Config, "actionType")

	switch subAction {
	case models.PaymentActionUpdateLeadStatus:
		return h.paymentUpdateLeadStatus(ctx, action, payload)
	case models.PaymentActionSendConfirmationEmail:
		return h.paymentSendConfirmationEmail(ctx, action, payload)
	case models.PaymentActionSendInternalAlert:
		return h.paymentSendInternalAlert(ctx, action, payload)
	default:
		return apperrors.ErrUnknownAction.
			WithMessage(fmt.Sprintf("unknown payment sub-action %q", subAction))
	}
}

func (h *Handlers) paymentUpdateLeadStatus(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	status := configString(action.Config, "status")
	if status == "" {
		status = "Customer"
	}

	leadID := leadIDFrom(payload)
	if leadID == "" {
		return apperrors.ErrValidation.WithMessage("event payload carries no lead reference").AsFatal()
	}

	return h.leads.SetStatus(ctx, leadID, status)
}

func (h *Handlers) paymentSendConfirmationEmail(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	lead, err := h.resolveLead(ctx, payload)
	if err != nil {
		return err
	}
	if lead.ContactInfo.Email == "" {
		return apperrors.ErrValidation.
			WithMessage(fmt.Sprintf("lead %s has no email address", lead.ID)).
			AsFatal()
	}

	subject := configString(action.Config, "subject")
	if subject == "" {
		subject = "Payment received"
	}
	body := configString(action.Config, "body")
	if body == "" {
		body = h.paymentSummary(ctx, payload)
	}

	return h.email.SendEmail(ctx, gateway.EmailMessage{
		To:      lead.ContactInfo.Email,
		Subject: subject,
		Body:    body,
	})
}

func (h *Handlers) paymentSendInternalAlert(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	message := configString(action.Config, "message")
	if message == "" {
		message = h.paymentSummary(ctx, payload)
	}

	return h.notifier.Notify(ctx, gateway.Notification{
		Recipient: configString(action.Config, "recipient"),
		Message:   message,
		Severity:  "info",
	})
}

// paymentSummary builds a human-readable line about the payment, preferring
// the payload and falling back to the payment store.
func (h *Handlers) paymentSummary(ctx context.Context, payload map[string]interface{}) string {
	leadID := leadIDFrom(payload)

	if amount, ok := payload["amount"].(float64); ok {
		currency := payloadString(payload, "currency")
		return fmt.Sprintf("Payment of %.2f %s received for lead %s", amount, currency, leadID)
	}

	if paymentID := payloadString(payload, "paymentId"); paymentID != "" && h.payments != nil {
		if payment, err := h.payments.GetByID(ctx, paymentID); err == nil {
			return fmt.Sprintf("Payment of %.2f %s received for lead %s", payment.Amount, payment.Currency, payment.LeadID)
		}
	}

	return fmt.Sprintf("Payment received for lead %s", leadID)
}
