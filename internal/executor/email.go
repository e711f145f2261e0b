package executor

import (
	"context"
	"fmt"

	"github.com/Varun2365/funnelseye/internal/gateway"
	"github.com/Varun2365/funnelseye/internal/store"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/models"
)

func (h *Handlers) SendEmail(ctx context.Context, action *models.ActionMessage, payload map[string]interface{}) error {
	subject := configString(action.Config, "subject")
	body := configString(action.Config, "body")
	if subject == "" || body == "" {
		return apperrors.ErrValidation.WithMessage("send_email requires config.subject and config.body").AsFatal()
	}

	lead, err := h.resolveLead(ctx, payload)
	if err != nil {
		return err
	}
	if lead.ContactInfo.Email == "" {
		return apperrors.ErrValidation.
			WithMessage(fmt.Sprintf("lead %s has no email address", lead.ID)).
			AsFatal()
	}

	return h.email.SendEmail(ctx, gateway.EmailMessage{
		To:      lead.ContactInfo.Email,
		Subject: subject,
		Body:    body,
	})
}

// resolveLead finds the lead the action targets. A payload without a lead
// reference is fatal: redelivering the same message cannot grow one.
func (h *Handlers) resolveLead(ctx context.Context, payload map[string]interface{}) (*store.Lead, error) {
	leadID := leadIDFrom(payload)
	if leadID == "" {
		return nil, apperrors.ErrValidation.WithMessage("event payload carries no lead reference").AsFatal()
	}

	lead, err := h.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return lead, nil
}
