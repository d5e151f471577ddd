// Package notification is the side-effect coordinator. It subscribes to the
// domain events and fans them out to email, SMS, calendar and the reminder
// queue. Every collaborator call runs inside its own guard: a failure is
// audited and swallowed, never surfaced to the flow that published the event.
package notification

import (
	"context"
	"fmt"
	"time"

	"tireshop_backend/internal/calendar"
	"tireshop_backend/internal/email"
	"tireshop_backend/internal/events"
	apphttp "tireshop_backend/internal/http"
	"tireshop_backend/internal/scheduler"
	"tireshop_backend/platform/config"
	"tireshop_backend/platform/logger"
)

// reminderLead is how far before the slot the reminder fires.
const reminderLead = 24 * time.Hour

// SMSSender sends text messages.
type SMSSender interface {
	Enabled() bool
	Send(ctx context.Context, to, body string) error
}

// CalendarClient syncs appointment blocks to the shop calendar.
type CalendarClient interface {
	Enabled() bool
	CreateEvent(ctx context.Context, ev calendar.Event) (string, error)
	UpdateEvent(ctx context.Context, eventID string, ev calendar.Event) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// CalendarWriter persists calendar sync outcomes back onto the appointment.
type CalendarWriter interface {
	SetCalendarSync(ctx context.Context, id int64, eventID *string, status string) error
}

// FailureRecorder persists swallowed side-effect failures.
type FailureRecorder interface {
	RecordWithEmail(ctx context.Context, action, detail, email string)
}

// Module subscribes to domain events and runs the notification side effects.
type Module struct {
	mailer    email.Sender
	sms       SMSSender
	calendar  CalendarClient
	calWriter CalendarWriter
	reminders scheduler.ReminderScheduler
	audit     FailureRecorder
	cfg       config.NotificationConfig
	log       *logger.Logger
}

// New assembles the coordinator.
func New(mailer email.Sender, sms SMSSender, cal CalendarClient, calWriter CalendarWriter, reminders scheduler.ReminderScheduler, audit FailureRecorder, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return &Module{
		mailer:    mailer,
		sms:       sms,
		calendar:  cal,
		calWriter: calWriter,
		reminders: reminders,
		audit:     audit,
		cfg:       cfg,
		log:       log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes is a no-op; the module is driven entirely by the event bus.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.AppointmentBooked{}.EventName(), m)
	bus.Subscribe(events.AppointmentCancelled{}.EventName(), m)
	bus.Subscribe(events.AppointmentRescheduled{}.EventName(), m)
	bus.Subscribe(events.EstimateSent{}.EventName(), m)
	bus.Subscribe(events.EstimateResponded{}.EventName(), m)
}

// Handle dispatches one event. It always returns nil: side effects never
// propagate errors back to the publisher.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.AppointmentBooked:
		m.handleAppointmentBooked(ctx, e)
	case events.AppointmentCancelled:
		m.handleAppointmentCancelled(ctx, e)
	case events.AppointmentRescheduled:
		m.handleAppointmentRescheduled(ctx, e)
	case events.EstimateSent:
		m.handleEstimateSent(ctx, e)
	case events.EstimateResponded:
		m.handleEstimateResponded(ctx, e)
	}
	return nil
}

// runStep executes one side effect in isolation. Errors and panics are
// captured into the audit log and the structured log, then dropped.
func (m *Module) runStep(ctx context.Context, action, customerEmail string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			m.log.SideEffectFailure(action, err)
			m.audit.RecordWithEmail(ctx, action, err.Error(), customerEmail)
		}
	}()

	if err := fn(ctx); err != nil {
		m.log.SideEffectFailure(action, err)
		m.audit.RecordWithEmail(ctx, action, err.Error(), customerEmail)
	}
}

func (m *Module) manageURL(token string) string {
	if token == "" {
		return ""
	}
	return m.cfg.GetAppBaseURL() + "/appointments/manage/" + token
}

func (m *Module) approvalURL(token string) string {
	return m.cfg.GetAppBaseURL() + "/estimates/" + token
}

func bookingMail(e events.AppointmentBooked, manageURL string) email.BookingEmail {
	return email.BookingEmail{
		CustomerName:    e.CustomerName,
		ReferenceNumber: e.ReferenceNumber,
		Service:         e.Service,
		Date:            e.PreferredDate,
		Time:            e.PreferredTime,
		Language:        e.Language,
		ManageURL:       manageURL,
	}
}

// slotStart parses the appointment's wall-clock slot.
func slotStart(date, slotTime string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", date+" "+slotTime, time.Local)
}

func (m *Module) handleAppointmentBooked(ctx context.Context, e events.AppointmentBooked) {
	data := bookingMail(e, m.manageURL(e.ManagementToken))

	m.runStep(ctx, "booking_confirmation_email", e.CustomerEmail, func(ctx context.Context) error {
		return m.mailer.SendBookingConfirmation(ctx, e.CustomerEmail, data)
	})

	m.runStep(ctx, "booking_shop_alert", e.CustomerEmail, func(ctx context.Context) error {
		return m.mailer.SendShopBookingAlert(ctx, data)
	})

	if m.sms.Enabled() {
		m.runStep(ctx, "booking_confirmation_sms", e.CustomerEmail, func(ctx context.Context) error {
			return m.sms.Send(ctx, e.CustomerPhone, fmt.Sprintf(
				"%s: appointment %s booked for %s %s.",
				m.cfg.GetShopName(), e.ReferenceNumber, e.PreferredDate, e.PreferredTime))
		})
	}

	if m.calendar.Enabled() {
		m.runStep(ctx, "booking_calendar_sync", e.CustomerEmail, func(ctx context.Context) error {
			return m.createCalendarEvent(ctx, e.AppointmentID, e.ReferenceNumber, e.Service, e.CustomerName, e.PreferredDate, e.PreferredTime)
		})
	}

	m.runStep(ctx, "booking_reminder_schedule", e.CustomerEmail, func(ctx context.Context) error {
		return m.scheduleReminder(ctx, e.AppointmentID, e.PreferredDate, e.PreferredTime)
	})
}

func (m *Module) handleAppointmentCancelled(ctx context.Context, e events.AppointmentCancelled) {
	data := email.BookingEmail{
		CustomerName:    e.CustomerName,
		ReferenceNumber: e.ReferenceNumber,
		Service:         e.Service,
		Date:            e.PreferredDate,
		Time:            e.PreferredTime,
		Language:        e.Language,
	}

	m.runStep(ctx, "cancellation_email", e.CustomerEmail, func(ctx context.Context) error {
		return m.mailer.SendBookingCancelled(ctx, e.CustomerEmail, data)
	})

	if m.sms.Enabled() {
		m.runStep(ctx, "cancellation_sms", e.CustomerEmail, func(ctx context.Context) error {
			return m.sms.Send(ctx, e.CustomerPhone, fmt.Sprintf(
				"%s: appointment %s has been cancelled.",
				m.cfg.GetShopName(), e.ReferenceNumber))
		})
	}

	if m.calendar.Enabled() && e.GoogleEventID != nil && e.CalendarSyncStatus == calendar.SyncStatusSuccess {
		m.runStep(ctx, "cancellation_calendar_sync", e.CustomerEmail, func(ctx context.Context) error {
			if err := m.calendar.DeleteEvent(ctx, *e.GoogleEventID); err != nil {
				return err
			}
			return m.calWriter.SetCalendarSync(ctx, e.AppointmentID, nil, calendar.SyncStatusSuccess)
		})
	}
}

func (m *Module) handleAppointmentRescheduled(ctx context.Context, e events.AppointmentRescheduled) {
	data := email.BookingEmail{
		CustomerName:    e.CustomerName,
		ReferenceNumber: e.ReferenceNumber,
		Service:         e.Service,
		Date:            e.NewDate,
		Time:            e.NewTime,
		Language:        e.Language,
		ManageURL:       m.manageURL(e.ManagementToken),
	}

	m.runStep(ctx, "reschedule_email", e.CustomerEmail, func(ctx context.Context) error {
		return m.mailer.SendBookingRescheduled(ctx, e.CustomerEmail, data)
	})

	if m.sms.Enabled() {
		m.runStep(ctx, "reschedule_sms", e.CustomerEmail, func(ctx context.Context) error {
			return m.sms.Send(ctx, e.CustomerPhone, fmt.Sprintf(
				"%s: appointment %s moved to %s %s.",
				m.cfg.GetShopName(), e.ReferenceNumber, e.NewDate, e.NewTime))
		})
	}

	if m.calendar.Enabled() {
		m.runStep(ctx, "reschedule_calendar_sync", e.CustomerEmail, func(ctx context.Context) error {
			// A previously synced event moves; anything else gets created
			// fresh so a failed earlier sync can self-heal here.
			if e.GoogleEventID != nil && e.CalendarSyncStatus == calendar.SyncStatusSuccess {
				start, err := slotStart(e.NewDate, e.NewTime)
				if err != nil {
					return err
				}
				if err := m.calendar.UpdateEvent(ctx, *e.GoogleEventID, calendar.Event{
					Summary: calendarSummary(e.ReferenceNumber, e.Service, e.CustomerName),
					Start:   start,
				}); err != nil {
					return err
				}
				return m.calWriter.SetCalendarSync(ctx, e.AppointmentID, e.GoogleEventID, calendar.SyncStatusSuccess)
			}
			return m.createCalendarEvent(ctx, e.AppointmentID, e.ReferenceNumber, e.Service, e.CustomerName, e.NewDate, e.NewTime)
		})
	}

	m.runStep(ctx, "reschedule_reminder_schedule", e.CustomerEmail, func(ctx context.Context) error {
		return m.scheduleReminder(ctx, e.AppointmentID, e.NewDate, e.NewTime)
	})
}

func (m *Module) handleEstimateSent(ctx context.Context, e events.EstimateSent) {
	m.runStep(ctx, "estimate_link_email", e.CustomerEmail, func(ctx context.Context) error {
		return m.mailer.SendEstimateLink(ctx, e.CustomerEmail, email.EstimateEmail{
			CustomerName:   e.CustomerName,
			EstimateNumber: e.EstimateNumber,
			TotalFormatted: email.FormatCurrencyUSD(e.TotalCents),
			ValidUntil:     e.ValidUntil,
			Language:       e.Language,
			ApprovalURL:    m.approvalURL(e.ApprovalToken),
		})
	})
}

func (m *Module) handleEstimateResponded(ctx context.Context, e events.EstimateResponded) {
	data := email.EstimateEmail{
		CustomerName:   e.CustomerName,
		EstimateNumber: e.EstimateNumber,
		TotalFormatted: email.FormatCurrencyUSD(e.ApprovedTotalCents),
		Language:       e.Language,
		Status:         e.Status,
		ApprovedCount:  e.ApprovedCount,
		DeclinedCount:  e.DeclinedCount,
	}

	m.runStep(ctx, "estimate_response_confirmation_email", e.CustomerEmail, func(ctx context.Context) error {
		return m.mailer.SendEstimateResponseConfirmation(ctx, e.CustomerEmail, data)
	})

	if m.sms.Enabled() {
		m.runStep(ctx, "estimate_response_confirmation_sms", e.CustomerEmail, func(ctx context.Context) error {
			return m.sms.Send(ctx, e.CustomerPhone, fmt.Sprintf(
				"%s: we received your response to estimate %s. Approved total %s.",
				m.cfg.GetShopName(), e.EstimateNumber, email.FormatCurrencyUSD(e.ApprovedTotalCents)))
		})
	}

	m.runStep(ctx, "estimate_response_shop_alert", e.CustomerEmail, func(ctx context.Context) error {
		return m.mailer.SendShopEstimateResponseAlert(ctx, data)
	})
}

func calendarSummary(reference, service, customerName string) string {
	return fmt.Sprintf("[%s] %s - %s", reference, service, customerName)
}

func (m *Module) createCalendarEvent(ctx context.Context, appointmentID int64, reference, service, customerName, date, slotTime string) error {
	start, err := slotStart(date, slotTime)
	if err != nil {
		return err
	}
	eventID, err := m.calendar.CreateEvent(ctx, calendar.Event{
		Summary: calendarSummary(reference, service, customerName),
		Start:   start,
	})
	if err != nil {
		// Leave a trace on the row so a later transition knows the event
		// was never created.
		if wbErr := m.calWriter.SetCalendarSync(ctx, appointmentID, nil, calendar.SyncStatusError); wbErr != nil {
			m.log.DatabaseError("calendar_sync_writeback", wbErr)
		}
		return err
	}
	return m.calWriter.SetCalendarSync(ctx, appointmentID, &eventID, calendar.SyncStatusSuccess)
}

func (m *Module) scheduleReminder(ctx context.Context, appointmentID int64, date, slotTime string) error {
	start, err := slotStart(date, slotTime)
	if err != nil {
		return err
	}
	runAt := start.Add(-reminderLead)
	if runAt.Before(time.Now()) {
		return nil
	}
	return m.reminders.ScheduleAppointmentReminder(ctx, scheduler.AppointmentReminderPayload{
		AppointmentID: appointmentID,
		PreferredDate: date,
		PreferredTime: slotTime,
	}, runAt)
}
