package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tireshop_backend/internal/calendar"
	"tireshop_backend/internal/email"
	"tireshop_backend/internal/events"
	"tireshop_backend/internal/scheduler"
	"tireshop_backend/platform/logger"
)

type fakeMailer struct {
	confirmErr   error
	confirmPanic bool

	confirmations    []email.BookingEmail
	cancellations    []email.BookingEmail
	reschedules      []email.BookingEmail
	shopAlerts       []email.BookingEmail
	estimateLinks    []email.EstimateEmail
	responseConfirms []email.EstimateEmail
	responseAlert    []email.EstimateEmail
}

func (f *fakeMailer) SendBookingConfirmation(ctx context.Context, toEmail string, data email.BookingEmail) error {
	if f.confirmPanic {
		panic("smtp dial exploded")
	}
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmations = append(f.confirmations, data)
	return nil
}

func (f *fakeMailer) SendBookingCancelled(ctx context.Context, toEmail string, data email.BookingEmail) error {
	f.cancellations = append(f.cancellations, data)
	return nil
}

func (f *fakeMailer) SendBookingRescheduled(ctx context.Context, toEmail string, data email.BookingEmail) error {
	f.reschedules = append(f.reschedules, data)
	return nil
}

func (f *fakeMailer) SendBookingReminder(ctx context.Context, toEmail string, data email.BookingEmail) error {
	return nil
}

func (f *fakeMailer) SendShopBookingAlert(ctx context.Context, data email.BookingEmail) error {
	f.shopAlerts = append(f.shopAlerts, data)
	return nil
}

func (f *fakeMailer) SendEstimateLink(ctx context.Context, toEmail string, data email.EstimateEmail) error {
	f.estimateLinks = append(f.estimateLinks, data)
	return nil
}

func (f *fakeMailer) SendEstimateResponseConfirmation(ctx context.Context, toEmail string, data email.EstimateEmail) error {
	f.responseConfirms = append(f.responseConfirms, data)
	return nil
}

func (f *fakeMailer) SendShopEstimateResponseAlert(ctx context.Context, data email.EstimateEmail) error {
	f.responseAlert = append(f.responseAlert, data)
	return nil
}

type fakeSMS struct {
	enabled bool
	sent    []string
}

func (f *fakeSMS) Enabled() bool { return f.enabled }

func (f *fakeSMS) Send(ctx context.Context, to, body string) error {
	f.sent = append(f.sent, to+"|"+body)
	return nil
}

type fakeCalendar struct {
	enabled   bool
	createErr error
	created   []calendar.Event
	updated   map[string]calendar.Event
	deleted   []string
}

func (f *fakeCalendar) Enabled() bool { return f.enabled }

func (f *fakeCalendar) CreateEvent(ctx context.Context, ev calendar.Event) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, ev)
	return "gcal-evt-1", nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, eventID string, ev calendar.Event) error {
	if f.updated == nil {
		f.updated = make(map[string]calendar.Event)
	}
	f.updated[eventID] = ev
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

type syncWrite struct {
	id      int64
	eventID *string
	status  string
}

type fakeCalWriter struct {
	writes []syncWrite
}

func (f *fakeCalWriter) SetCalendarSync(ctx context.Context, id int64, eventID *string, status string) error {
	f.writes = append(f.writes, syncWrite{id: id, eventID: eventID, status: status})
	return nil
}

type fakeScheduler struct {
	payloads []scheduler.AppointmentReminderPayload
	runAts   []time.Time
}

func (f *fakeScheduler) ScheduleAppointmentReminder(ctx context.Context, payload scheduler.AppointmentReminderPayload, runAt time.Time) error {
	f.payloads = append(f.payloads, payload)
	f.runAts = append(f.runAts, runAt)
	return nil
}

type fakeAudit struct {
	actions []string
	details []string
}

func (f *fakeAudit) RecordWithEmail(ctx context.Context, action, detail, email string) {
	f.actions = append(f.actions, action)
	f.details = append(f.details, detail)
}

type fakeNotifyConfig struct{}

func (fakeNotifyConfig) GetAppBaseURL() string { return "https://ortiztire.example.com" }
func (fakeNotifyConfig) GetShopName() string   { return "Ortiz Tire & Auto" }

type coordinatorFixture struct {
	module    *Module
	mailer    *fakeMailer
	sms       *fakeSMS
	calendar  *fakeCalendar
	calWriter *fakeCalWriter
	scheduler *fakeScheduler
	audit     *fakeAudit
}

func newFixture() *coordinatorFixture {
	f := &coordinatorFixture{
		mailer:    &fakeMailer{},
		sms:       &fakeSMS{enabled: true},
		calendar:  &fakeCalendar{enabled: true},
		calWriter: &fakeCalWriter{},
		scheduler: &fakeScheduler{},
		audit:     &fakeAudit{},
	}
	f.module = New(f.mailer, f.sms, f.calendar, f.calWriter, f.scheduler, f.audit, fakeNotifyConfig{}, logger.New("test"))
	return f
}

func futureSlot(t *testing.T) (string, string) {
	t.Helper()
	day := time.Now().AddDate(0, 0, 7)
	return day.Format("2006-01-02"), "09:30"
}

func bookedEvent(t *testing.T) events.AppointmentBooked {
	date, slot := futureSlot(t)
	return events.AppointmentBooked{
		BaseEvent:       events.NewBaseEvent(),
		AppointmentID:   7,
		ReferenceNumber: "OT-A2B3C4D5",
		Service:         "Tire Rotation",
		PreferredDate:   date,
		PreferredTime:   slot,
		CustomerName:    "Maria Ortiz",
		CustomerEmail:   "maria@example.com",
		CustomerPhone:   "+15551234567",
		Language:        "english",
		ManagementToken: "deadbeef",
	}
}

func TestHandleBookedFansOutAllSideEffects(t *testing.T) {
	f := newFixture()

	if err := f.module.Handle(context.Background(), bookedEvent(t)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.mailer.confirmations) != 1 {
		t.Fatalf("expected 1 confirmation email, got %d", len(f.mailer.confirmations))
	}
	if got := f.mailer.confirmations[0].ManageURL; !strings.HasSuffix(got, "/appointments/manage/deadbeef") {
		t.Errorf("manage URL = %q, want management token suffix", got)
	}
	if len(f.mailer.shopAlerts) != 1 {
		t.Errorf("expected 1 shop alert, got %d", len(f.mailer.shopAlerts))
	}
	if len(f.sms.sent) != 1 {
		t.Errorf("expected 1 SMS, got %d", len(f.sms.sent))
	}
	if len(f.calendar.created) != 1 {
		t.Fatalf("expected 1 calendar event, got %d", len(f.calendar.created))
	}
	if len(f.scheduler.payloads) != 1 {
		t.Fatalf("expected 1 reminder scheduled, got %d", len(f.scheduler.payloads))
	}
	if len(f.audit.actions) != 0 {
		t.Errorf("expected clean run, audited failures: %v", f.audit.actions)
	}
}

func TestHandleBookedMailFailureDoesNotStopOtherSteps(t *testing.T) {
	f := newFixture()
	f.mailer.confirmErr = errors.New("smtp unreachable")

	if err := f.module.Handle(context.Background(), bookedEvent(t)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.mailer.shopAlerts) != 1 || len(f.sms.sent) != 1 || len(f.calendar.created) != 1 {
		t.Fatal("remaining side effects should still run after email failure")
	}
	if len(f.audit.actions) != 1 || f.audit.actions[0] != "booking_confirmation_email" {
		t.Fatalf("expected audited email failure, got %v", f.audit.actions)
	}
}

func TestHandleBookedMailPanicIsContained(t *testing.T) {
	f := newFixture()
	f.mailer.confirmPanic = true

	if err := f.module.Handle(context.Background(), bookedEvent(t)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.scheduler.payloads) != 1 {
		t.Fatal("reminder should still be scheduled after a panicking step")
	}
	if len(f.audit.actions) != 1 || !strings.Contains(f.audit.details[0], "panic") {
		t.Fatalf("expected audited panic, got actions=%v details=%v", f.audit.actions, f.audit.details)
	}
}

func TestHandleBookedCalendarSuccessWritesBackEventID(t *testing.T) {
	f := newFixture()

	if err := f.module.Handle(context.Background(), bookedEvent(t)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.calWriter.writes) != 1 {
		t.Fatalf("expected 1 sync write-back, got %d", len(f.calWriter.writes))
	}
	w := f.calWriter.writes[0]
	if w.id != 7 || w.eventID == nil || *w.eventID != "gcal-evt-1" || w.status != calendar.SyncStatusSuccess {
		t.Errorf("unexpected write-back: %+v", w)
	}
}

func TestHandleBookedCalendarFailureWritesErrorStatus(t *testing.T) {
	f := newFixture()
	f.calendar.createErr = errors.New("google api 503")

	if err := f.module.Handle(context.Background(), bookedEvent(t)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.calWriter.writes) != 1 {
		t.Fatalf("expected 1 sync write-back, got %d", len(f.calWriter.writes))
	}
	w := f.calWriter.writes[0]
	if w.eventID != nil || w.status != calendar.SyncStatusError {
		t.Errorf("unexpected write-back after failure: %+v", w)
	}
	if len(f.audit.actions) != 1 || f.audit.actions[0] != "booking_calendar_sync" {
		t.Fatalf("expected audited calendar failure, got %v", f.audit.actions)
	}
}

func TestHandleBookedSchedulesReminderDayBeforeSlot(t *testing.T) {
	f := newFixture()
	e := bookedEvent(t)

	if err := f.module.Handle(context.Background(), e); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", e.PreferredDate+" "+e.PreferredTime, time.Local)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := f.scheduler.runAts[0], start.Add(-24*time.Hour); !got.Equal(want) {
		t.Errorf("reminder runAt = %v, want %v", got, want)
	}
	p := f.scheduler.payloads[0]
	if p.AppointmentID != 7 || p.PreferredDate != e.PreferredDate || p.PreferredTime != e.PreferredTime {
		t.Errorf("unexpected reminder payload: %+v", p)
	}
}

func TestHandleBookedSkipsReminderForImminentSlot(t *testing.T) {
	f := newFixture()
	e := bookedEvent(t)
	tomorrow := time.Now().Add(12 * time.Hour)
	e.PreferredDate = tomorrow.Format("2006-01-02")
	e.PreferredTime = tomorrow.Format("15:04")

	if err := f.module.Handle(context.Background(), e); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.scheduler.payloads) != 0 {
		t.Errorf("reminder inside the lead window should not be scheduled")
	}
}

func TestHandleCancelledDeletesSyncedCalendarEvent(t *testing.T) {
	f := newFixture()
	eventID := "gcal-evt-9"
	date, slot := futureSlot(t)

	err := f.module.Handle(context.Background(), events.AppointmentCancelled{
		BaseEvent:          events.NewBaseEvent(),
		AppointmentID:      7,
		ReferenceNumber:    "OT-A2B3C4D5",
		Service:            "Tire Rotation",
		PreferredDate:      date,
		PreferredTime:      slot,
		CustomerName:       "Maria Ortiz",
		CustomerEmail:      "maria@example.com",
		CustomerPhone:      "+15551234567",
		Language:           "english",
		GoogleEventID:      &eventID,
		CalendarSyncStatus: calendar.SyncStatusSuccess,
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.mailer.cancellations) != 1 {
		t.Errorf("expected 1 cancellation email, got %d", len(f.mailer.cancellations))
	}
	if len(f.calendar.deleted) != 1 || f.calendar.deleted[0] != eventID {
		t.Fatalf("expected calendar delete of %s, got %v", eventID, f.calendar.deleted)
	}
	if len(f.calWriter.writes) != 1 || f.calWriter.writes[0].eventID != nil {
		t.Errorf("expected event id cleared after delete, got %+v", f.calWriter.writes)
	}
}

func TestHandleCancelledSkipsCalendarWhenNeverSynced(t *testing.T) {
	f := newFixture()
	date, slot := futureSlot(t)

	err := f.module.Handle(context.Background(), events.AppointmentCancelled{
		BaseEvent:          events.NewBaseEvent(),
		AppointmentID:      7,
		ReferenceNumber:    "OT-A2B3C4D5",
		PreferredDate:      date,
		PreferredTime:      slot,
		CustomerEmail:      "maria@example.com",
		CalendarSyncStatus: calendar.SyncStatusError,
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.calendar.deleted) != 0 {
		t.Errorf("no calendar delete expected without a synced event")
	}
}

func TestHandleRescheduledMovesExistingCalendarEvent(t *testing.T) {
	f := newFixture()
	eventID := "gcal-evt-9"
	date, _ := futureSlot(t)

	err := f.module.Handle(context.Background(), events.AppointmentRescheduled{
		BaseEvent:          events.NewBaseEvent(),
		AppointmentID:      7,
		ReferenceNumber:    "OT-A2B3C4D5",
		Service:            "Tire Rotation",
		OldDate:            date,
		OldTime:            "09:30",
		NewDate:            date,
		NewTime:            "14:00",
		CustomerName:       "Maria Ortiz",
		CustomerEmail:      "maria@example.com",
		CustomerPhone:      "+15551234567",
		Language:           "english",
		GoogleEventID:      &eventID,
		CalendarSyncStatus: calendar.SyncStatusSuccess,
		ManagementToken:    "cafef00d",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.mailer.reschedules) != 1 {
		t.Fatalf("expected 1 reschedule email, got %d", len(f.mailer.reschedules))
	}
	if got := f.mailer.reschedules[0].ManageURL; !strings.HasSuffix(got, "/appointments/manage/cafef00d") {
		t.Errorf("manage URL = %q, want new management token suffix", got)
	}
	if _, ok := f.calendar.updated[eventID]; !ok {
		t.Fatalf("expected update of existing event, got created=%v updated=%v", f.calendar.created, f.calendar.updated)
	}
	if len(f.calendar.created) != 0 {
		t.Errorf("no new event should be created when one is already synced")
	}
	if len(f.scheduler.payloads) != 1 || f.scheduler.payloads[0].PreferredTime != "14:00" {
		t.Errorf("expected reminder rescheduled for new slot, got %+v", f.scheduler.payloads)
	}
}

func TestHandleRescheduledCreatesEventWhenEarlierSyncFailed(t *testing.T) {
	f := newFixture()
	date, slot := futureSlot(t)

	err := f.module.Handle(context.Background(), events.AppointmentRescheduled{
		BaseEvent:          events.NewBaseEvent(),
		AppointmentID:      7,
		ReferenceNumber:    "OT-A2B3C4D5",
		NewDate:            date,
		NewTime:            slot,
		CustomerEmail:      "maria@example.com",
		CalendarSyncStatus: calendar.SyncStatusError,
		ManagementToken:    "cafef00d",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.calendar.created) != 1 {
		t.Fatalf("expected fresh event after failed earlier sync, got %v", f.calendar.created)
	}
}

func TestHandleEstimateSentEmailsApprovalLink(t *testing.T) {
	f := newFixture()

	err := f.module.Handle(context.Background(), events.EstimateSent{
		BaseEvent:      events.NewBaseEvent(),
		EstimateID:     3,
		EstimateNumber: "EST-Q2W3E4R5",
		CustomerName:   "Maria Ortiz",
		CustomerEmail:  "maria@example.com",
		Language:       "spanish",
		TotalCents:     19250,
		ValidUntil:     "2026-03-16",
		ApprovalToken:  "feedface",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.mailer.estimateLinks) != 1 {
		t.Fatalf("expected 1 estimate email, got %d", len(f.mailer.estimateLinks))
	}
	got := f.mailer.estimateLinks[0]
	if !strings.HasSuffix(got.ApprovalURL, "/estimates/feedface") {
		t.Errorf("approval URL = %q, want approval token suffix", got.ApprovalURL)
	}
	if got.TotalFormatted != "$192.50" {
		t.Errorf("total = %q, want $192.50", got.TotalFormatted)
	}
}

func TestHandleEstimateRespondedConfirmsCustomerAndAlertsShop(t *testing.T) {
	f := newFixture()

	err := f.module.Handle(context.Background(), events.EstimateResponded{
		BaseEvent:          events.NewBaseEvent(),
		EstimateID:         3,
		EstimateNumber:     "EST-Q2W3E4R5",
		Status:             "partial",
		ApprovedCount:      2,
		DeclinedCount:      1,
		ApprovedTotalCents: 15000,
		CustomerName:       "Maria Ortiz",
		CustomerEmail:      "maria@example.com",
		CustomerPhone:      "+15551234567",
		Language:           "spanish",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.mailer.responseConfirms) != 1 {
		t.Fatalf("expected 1 customer confirmation, got %d", len(f.mailer.responseConfirms))
	}
	confirm := f.mailer.responseConfirms[0]
	if confirm.TotalFormatted != "$150.00" || confirm.Language != "spanish" {
		t.Errorf("unexpected confirmation payload: %+v", confirm)
	}
	if len(f.sms.sent) != 1 || !strings.Contains(f.sms.sent[0], "EST-Q2W3E4R5") {
		t.Errorf("expected 1 customer SMS naming the estimate, got %v", f.sms.sent)
	}
	if len(f.mailer.responseAlert) != 1 {
		t.Fatalf("expected 1 shop alert, got %d", len(f.mailer.responseAlert))
	}
	got := f.mailer.responseAlert[0]
	if got.Status != "partial" || got.ApprovedCount != 2 || got.DeclinedCount != 1 {
		t.Errorf("unexpected alert payload: %+v", got)
	}
}
