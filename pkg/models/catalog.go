package models

// Business event catalog. Producer code and stored rule trigger values must
// agree on these strings; a mismatch silently matches zero rules.
const (
	EventLeadCreated                  = "LEAD_CREATED"
	EventLeadCreatedViaForm           = "LEAD_CREATED_VIA_FORM"
	EventLeadUpdatedViaForm           = "LEAD_UPDATED_VIA_FORM"
	EventLeadStatusChanged            = "LEAD_STATUS_CHANGED"
	EventLeadTemperatureChanged       = "LEAD_TEMPERATURE_CHANGED"
	EventAssignLeadToCoach            = "ASSIGN_LEAD_TO_COACH"
	EventLeadDeleted                  = "LEAD_DELETED"
	EventLeadFollowUpAdded            = "LEAD_FOLLOW_UP_ADDED"
	EventLeadFollowupScheduledUpdated = "LEAD_FOLLOWUP_SCHEDULED_OR_UPDATED"
	EventAppointmentBooked            = "APPOINTMENT_BOOKED"
	EventAppointmentReminderTime      = "APPOINTMENT_REMINDER_TIME"
	EventFormSubmitted                = "FORM_SUBMITTED"
	EventPaymentReceived              = "PAYMENT_RECEIVED"
	EventPaymentFailed                = "PAYMENT_FAILED"
)

// Action types supported by the executor dispatch table.
const (
	ActionSendWhatsAppMessage      = "send_whatsapp_message"
	ActionSendEmail                = "send_email"
	ActionSendSMS                  = "send_sms"
	ActionUpdateLeadScore          = "update_lead_score"
	ActionUpdateLeadField          = "update_lead_field"
	ActionAddCoachCredits          = "add_coach_credits"
	ActionCreateTask               = "create_task"
	ActionCreateCalendarEvent      = "create_calendar_event"
	ActionSendInternalNotification = "send_internal_notification"
	ActionHandlePaymentActions     = "handle_payment_actions"
)

// Payment follow-up sub-actions, selected by config["actionType"] inside a
// handle_payment_actions message.
const (
	PaymentActionUpdateLeadStatus      = "update_lead_status"
	PaymentActionSendConfirmationEmail = "send_confirmation_email"
	PaymentActionSendInternalAlert     = "send_internal_alert"
)

var eventCatalog = map[string]struct{}{
	EventLeadCreated:                  {},
	EventLeadCreatedViaForm:           {},
	EventLeadUpdatedViaForm:           {},
	EventLeadStatusChanged:            {},
	EventLeadTemperatureChanged:       {},
	EventAssignLeadToCoach:            {},
	EventLeadDeleted:                  {},
	EventLeadFollowUpAdded:            {},
	EventLeadFollowupScheduledUpdated: {},
	EventAppointmentBooked:            {},
	EventAppointmentReminderTime:      {},
	EventFormSubmitted:                {},
	EventPaymentReceived:              {},
	EventPaymentFailed:                {},
}

var actionTypes = map[string]struct{}{
	ActionSendWhatsAppMessage:      {},
	ActionSendEmail:                {},
	ActionSendSMS:                  {},
	ActionUpdateLeadScore:          {},
	ActionUpdateLeadField:          {},
	ActionAddCoachCredits:          {},
	ActionCreateTask:               {},
	ActionCreateCalendarEvent:      {},
	ActionSendInternalNotification: {},
	ActionHandlePaymentActions:     {},
}

func IsCatalogEvent(name string) bool {
	_, ok := eventCatalog[name]
	return ok
}

func IsSupportedActionType(actionType string) bool {
	_, ok := actionTypes[actionType]
	return ok
}

// EventNames returns the catalog in no particular order.
func EventNames() []string {
	names := make([]string, 0, len(eventCatalog))
	for name := range eventCatalog {
		names = append(names, name)
	}
	return names
}

// ActionTypes returns the supported action types in no particular order.
func ActionTypes() []string {
	types := make([]string, 0, len(actionTypes))
	for t := range actionTypes {
		types = append(types, t)
	}
	return types
}
