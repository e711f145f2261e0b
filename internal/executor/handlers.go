package executor

import (
	"github.com/Varun2365/funnelseye/internal/gateway"
	"github.com/Varun2365/funnelseye/internal/store"
	"github.com/Varun2365/funnelseye/pkg/models"
)

// Handlers owns the side-effect implementations behind the dispatch table.
// Store and gateway dependencies are interfaces so tests can swap fakes in.
type Handlers struct {
	leads    store.LeadStore
	coaches  store.CoachStore
	tasks    store.TaskStore
	payments store.PaymentStore
	whatsapp gateway.WhatsAppSender
	email    gateway.EmailSender
	sms      gateway.SMSSender
	calendar gateway.CalendarClient
	notifier gateway.InternalNotifier
}

func NewHandlers(
	leads store.LeadStore,
	coaches store.CoachStore,
	tasks store.TaskStore,
	payments store.PaymentStore,
	whatsapp gateway.WhatsAppSender,
	email gateway.EmailSender,
	sms gateway.SMSSender,
	calendar gateway.CalendarClient,
	notifier gateway.InternalNotifier,
) *Handlers {
	return &Handlers{
		leads:    leads,
		coaches:  coaches,
		tasks:    tasks,
		payments: payments,
		whatsapp: whatsapp,
		email:    email,
		sms:      sms,
		calendar: calendar,
		notifier: notifier,
	}
}

// RegisterAll wires every supported action type into the service. The
// payment family registers one entry and fans out to its own sub-table.
func (h *Handlers) RegisterAll(svc *Service) {
	svc.Register(models.ActionSendWhatsAppMessage, h.SendWhatsAppMessage)
	svc.Register(models.ActionSendEmail, h.SendEmail)
	svc.Register(models.ActionSendSMS, h.SendSMS)
	svc.Register(models.ActionUpdateLeadScore, h.UpdateLeadScore)
	svc.Register(models.ActionUpdateLeadField, h.UpdateLeadField)
	svc.Register(models.ActionAddCoachCredits, h.AddCoachCredits)
	svc.Register(models.ActionCreateTask, h.CreateTask)
	svc.Register(models.ActionCreateCalendarEvent, h.CreateCalendarEvent)
	svc.Register(models.ActionSendInternalNotification, h.SendInternalNotification)
	svc.Register(models.ActionHandlePaymentActions, h.HandlePaymentActions)
}
