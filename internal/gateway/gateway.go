// Package gateway holds the outbound delivery contracts the executor calls
// into. Wire formats of the downstream providers are not modeled here; each
// gateway receives the minimal fields the action handlers resolved and POSTs
// them to a configured endpoint.
package gateway

import (
	"context"
	"time"
)

type WhatsAppMessage struct {
	To           string                 `json:"to"`
	TemplateName string                 `json:"template_name"`
	Variables    map[string]interface{} `json:"variables,omitempty"`
}

type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SMSMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type CalendarEvent struct {
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	LeadID          string    `json:"lead_id,omitempty"`
	CoachID         string    `json:"coach_id,omitempty"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
}

type Notification struct {
	Recipient string `json:"recipient,omitempty"`
	Message   string `json:"message"`
	Severity  string `json:"severity,omitempty"`
}

type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, msg WhatsAppMessage) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) error
}

type CalendarClient interface {
	CreateEvent(ctx context.Context, event CalendarEvent) error
}

type InternalNotifier interface {
	Notify(ctx context.Context, n Notification) error
}
