// Package service contains the appointment booking and lifecycle logic.
package service

import (
	"context"
	"fmt"
	"time"

	"tireshop_backend/internal/appointments/repository"
	"tireshop_backend/internal/appointments/transport"
	"tireshop_backend/internal/events"
	"tireshop_backend/internal/token"
	"tireshop_backend/platform/apperr"
	"tireshop_backend/platform/logger"
	"tireshop_backend/platform/phone"
	"tireshop_backend/platform/sanitize"
)

const (
	referenceAttempts = 10
	cancelReasonMax   = 500
)

// Store is the persistence surface the service depends on.
type Store interface {
	CreateWithSlotGuard(ctx context.Context, a *repository.Appointment, capacity int) (*repository.Appointment, error)
	RescheduleWithSlotGuard(ctx context.Context, id int64, newDate time.Time, newTime string, newToken string, newTokenExpires time.Time, capacity int) (*repository.Appointment, error)
	GetByManagementToken(ctx context.Context, tokenValue string) (*repository.Appointment, error)
	GetByID(ctx context.Context, id int64) (*repository.Appointment, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	SetManagementToken(ctx context.Context, id int64, tokenValue string, expiresAt time.Time) error
	Cancel(ctx context.Context, id int64, reason *string) error
	CountBySlotForDate(ctx context.Context, date time.Time) (map[string]int, error)
	SetPayment(ctx context.Context, id int64, paymentID *string, status string) error
	TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error)
	List(ctx context.Context, fromDate, toDate *time.Time, status string) ([]repository.Appointment, error)
}

// PaymentCharge is a deposit charge request handed to the gateway.
type PaymentCharge struct {
	AmountCents int64
	Method      string
	PayerEmail  string
	Description string
	Reference   string
}

// PaymentOutcome is the gateway's answer for a charge.
type PaymentOutcome struct {
	ProviderPaymentID string
	Status            string
}

// PaymentGateway initiates deposit charges. A failing gateway never fails
// the booking that triggered it.
type PaymentGateway interface {
	Charge(ctx context.Context, req PaymentCharge) (*PaymentOutcome, error)
}

// Recorder persists side-effect failures for later review.
type Recorder interface {
	Record(ctx context.Context, action, entityType string, entityID int64, detail string)
}

// Service orchestrates appointment booking, cancel and reschedule.
type Service struct {
	repo     Store
	bus      events.Bus
	payments PaymentGateway
	audit    Recorder
	log      *logger.Logger
	now      func() time.Time
}

// New creates the appointments service. The payment gateway may be nil when
// deposits are disabled.
func New(repo Store, bus events.Bus, payments PaymentGateway, audit Recorder, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		bus:      bus,
		payments: payments,
		audit:    audit,
		log:      log,
		now:      time.Now,
	}
}

// Book validates, persists and announces a new appointment. The management
// token is minted after the insert and travels only on the booked event; a
// failed mint leaves the row standing without a self-service link.
func (s *Service) Book(ctx context.Context, req transport.BookAppointmentRequest) (*transport.BookAppointmentResponse, error) {
	date, err := validateSlot(req.PreferredDate, req.PreferredTime, s.now())
	if err != nil {
		return nil, err
	}

	reference, err := s.uniqueReference(ctx)
	if err != nil {
		return nil, err
	}

	a := &repository.Appointment{
		ReferenceNumber: reference,
		Service:         req.Service,
		PreferredDate:   date,
		PreferredTime:   req.PreferredTime,
		CustomerName:    sanitize.Text(req.CustomerName),
		CustomerPhone:   phone.NormalizeE164(req.CustomerPhone),
		CustomerEmail:   sanitize.Text(req.CustomerEmail),
		Language:        req.Language,
		VehicleYear:     req.VehicleYear,
		VehicleMake:     sanitize.TextPtr(req.VehicleMake),
		VehicleModel:    sanitize.TextPtr(req.VehicleModel),
		VehicleVIN:      req.VehicleVIN,
		Notes:           sanitize.TextPtr(req.Notes),
	}

	saved, err := s.repo.CreateWithSlotGuard(ctx, a, SlotCapacity)
	if err != nil {
		return nil, err
	}

	manageToken := s.mintManagementToken(ctx, saved.ID)

	resp := &transport.BookAppointmentResponse{
		AppointmentID:   saved.ID,
		ReferenceNumber: saved.ReferenceNumber,
	}
	if s.payments != nil && req.PaymentMethod != "" && req.DepositCents > 0 {
		resp.Payment = s.chargeDeposit(ctx, saved, req)
	}

	notes := ""
	if saved.Notes != nil {
		notes = *saved.Notes
	}
	s.bus.Publish(ctx, events.AppointmentBooked{
		BaseEvent:       events.NewBaseEvent(),
		AppointmentID:   saved.ID,
		ReferenceNumber: saved.ReferenceNumber,
		Service:         saved.Service,
		PreferredDate:   saved.PreferredDate.Format(dateLayout),
		PreferredTime:   saved.PreferredTime,
		CustomerName:    saved.CustomerName,
		CustomerEmail:   saved.CustomerEmail,
		CustomerPhone:   saved.CustomerPhone,
		Language:        saved.Language,
		Notes:           notes,
		ManagementToken: manageToken,
	})

	s.log.BookingEvent("appointment_booked", saved.ReferenceNumber, saved.ID)

	return resp, nil
}

// uniqueReference mints a customer-facing reference, retrying on the rare
// collision. Exhausting every attempt is treated as an internal fault.
func (s *Service) uniqueReference(ctx context.Context) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		ref, err := token.NewReference()
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternal, "failed to generate reference number", err)
		}
		taken, err := s.repo.ReferenceExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}
	}
	return "", apperr.Internal("could not allocate a unique reference number")
}

func (s *Service) mintManagementToken(ctx context.Context, id int64) string {
	mgmt, err := token.NewCapability(token.PurposeManage, token.ManageTokenTTL)
	if err != nil {
		s.log.SideEffectFailure("mint_management_token", err)
		return ""
	}
	if err := s.repo.SetManagementToken(ctx, id, mgmt.Value, mgmt.ExpiresAt); err != nil {
		s.log.SideEffectFailure("store_management_token", err)
		return ""
	}
	return mgmt.Value
}

// chargeDeposit runs the optional payment step. Panics and errors are
// contained here so the already-committed booking survives them.
func (s *Service) chargeDeposit(ctx context.Context, a *repository.Appointment, req transport.BookAppointmentRequest) (result *transport.PaymentResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("payment gateway panicked: %v", r)
			s.log.SideEffectFailure("charge_deposit", err)
			s.audit.Record(ctx, "charge_deposit", "appointment", a.ID, err.Error())
			result = &transport.PaymentResult{Status: "failed", Detail: "payment could not be processed"}
		}
	}()

	outcome, err := s.payments.Charge(ctx, PaymentCharge{
		AmountCents: req.DepositCents,
		Method:      req.PaymentMethod,
		PayerEmail:  a.CustomerEmail,
		Description: fmt.Sprintf("Deposit for appointment %s", a.ReferenceNumber),
		Reference:   a.ReferenceNumber,
	})
	if err != nil {
		s.log.SideEffectFailure("charge_deposit", err)
		s.audit.Record(ctx, "charge_deposit", "appointment", a.ID, err.Error())
		if dbErr := s.repo.SetPayment(ctx, a.ID, nil, "failed"); dbErr != nil {
			s.log.DatabaseError("set_payment", dbErr)
		}
		return &transport.PaymentResult{Status: "failed", Detail: "payment could not be processed"}
	}

	paymentID := outcome.ProviderPaymentID
	if dbErr := s.repo.SetPayment(ctx, a.ID, &paymentID, outcome.Status); dbErr != nil {
		s.log.DatabaseError("set_payment", dbErr)
	}
	return &transport.PaymentResult{Status: outcome.Status, ProviderPaymentID: paymentID}
}

// GetByToken resolves a management link to the summary shown on the
// cancel/reschedule page.
func (s *Service) GetByToken(ctx context.Context, tokenValue string) (*transport.ManageAppointmentResponse, error) {
	a, err := s.repo.GetByManagementToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	return &transport.ManageAppointmentResponse{
		ReferenceNumber: a.ReferenceNumber,
		Service:         a.Service,
		Date:            a.PreferredDate.Format(dateLayout),
		Time:            a.PreferredTime,
		CustomerName:    a.CustomerName,
		Status:          a.Status,
	}, nil
}

// Cancel cancels the appointment behind a management link. The token is
// consumed: the update clears it, so a replay resolves to nothing.
func (s *Service) Cancel(ctx context.Context, tokenValue string, req transport.CancelAppointmentRequest) (*transport.CancelAppointmentResponse, error) {
	a, err := s.repo.GetByManagementToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	var reason *string
	if req.Reason != nil {
		cleaned := sanitize.TextTruncated(*req.Reason, cancelReasonMax)
		if cleaned != "" {
			reason = &cleaned
		}
	}

	if err := s.repo.Cancel(ctx, a.ID, reason); err != nil {
		return nil, err
	}

	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}
	s.bus.Publish(ctx, events.AppointmentCancelled{
		BaseEvent:          events.NewBaseEvent(),
		AppointmentID:      a.ID,
		ReferenceNumber:    a.ReferenceNumber,
		Service:            a.Service,
		PreferredDate:      a.PreferredDate.Format(dateLayout),
		PreferredTime:      a.PreferredTime,
		CustomerName:       a.CustomerName,
		CustomerEmail:      a.CustomerEmail,
		CustomerPhone:      a.CustomerPhone,
		Language:           a.Language,
		Reason:             reasonText,
		GoogleEventID:      a.GoogleEventID,
		CalendarSyncStatus: a.CalendarSyncStatus,
	})

	s.log.BookingEvent("appointment_cancelled", a.ReferenceNumber, a.ID)

	return &transport.CancelAppointmentResponse{Message: "your appointment has been cancelled"}, nil
}

// Reschedule moves the appointment behind a management link to a new slot.
// The old token is replaced, so the previously emailed link stops working.
func (s *Service) Reschedule(ctx context.Context, tokenValue string, req transport.RescheduleAppointmentRequest) (*transport.RescheduleAppointmentResponse, error) {
	a, err := s.repo.GetByManagementToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	newDate, err := validateSlot(req.NewDate, req.NewTime, s.now())
	if err != nil {
		return nil, err
	}

	mgmt, err := token.NewCapability(token.PurposeManage, token.ManageTokenTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to generate management token", err)
	}

	oldDate := a.PreferredDate.Format(dateLayout)
	oldTime := a.PreferredTime

	saved, err := s.repo.RescheduleWithSlotGuard(ctx, a.ID, newDate, req.NewTime, mgmt.Value, mgmt.ExpiresAt, SlotCapacity)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.AppointmentRescheduled{
		BaseEvent:          events.NewBaseEvent(),
		AppointmentID:      saved.ID,
		ReferenceNumber:    saved.ReferenceNumber,
		Service:            saved.Service,
		OldDate:            oldDate,
		OldTime:            oldTime,
		NewDate:            saved.PreferredDate.Format(dateLayout),
		NewTime:            saved.PreferredTime,
		CustomerName:       saved.CustomerName,
		CustomerEmail:      saved.CustomerEmail,
		CustomerPhone:      saved.CustomerPhone,
		Language:           saved.Language,
		GoogleEventID:      saved.GoogleEventID,
		CalendarSyncStatus: saved.CalendarSyncStatus,
		ManagementToken:    mgmt.Value,
	})

	s.log.BookingEvent("appointment_rescheduled", saved.ReferenceNumber, saved.ID)

	return &transport.RescheduleAppointmentResponse{
		ReferenceNumber: saved.ReferenceNumber,
		NewDate:         saved.PreferredDate.Format(dateLayout),
		NewTime:         saved.PreferredTime,
	}, nil
}

// Availability lists the slot times still open on a date.
func (s *Service) Availability(ctx context.Context, dateStr string) (*transport.SlotAvailabilityResponse, error) {
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, apperr.Validation("date must be in YYYY-MM-DD format")
	}
	if date.Weekday() == time.Sunday {
		return &transport.SlotAvailabilityResponse{Date: dateStr, Times: []string{}}, nil
	}

	counts, err := s.repo.CountBySlotForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	open := make([]string, 0, slotCount)
	for _, slot := range SlotTimes() {
		if counts[slot] < SlotCapacity {
			open = append(open, slot)
		}
	}
	return &transport.SlotAvailabilityResponse{Date: dateStr, Times: open}, nil
}

// AdminList returns appointments for the back office.
func (s *Service) AdminList(ctx context.Context, fromDate, toDate *time.Time, status string) ([]transport.AdminAppointmentResponse, error) {
	items, err := s.repo.List(ctx, fromDate, toDate, status)
	if err != nil {
		return nil, err
	}
	out := make([]transport.AdminAppointmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, adminView(a))
	}
	return out, nil
}

// Confirm moves a new appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id int64) error {
	moved, err := s.repo.TransitionStatus(ctx, id, string(transport.StatusNew), string(transport.StatusConfirmed))
	if err != nil {
		return err
	}
	if !moved {
		return apperr.Conflict("appointment cannot be confirmed from its current status")
	}
	return nil
}

// Complete moves a confirmed appointment to completed.
func (s *Service) Complete(ctx context.Context, id int64) error {
	moved, err := s.repo.TransitionStatus(ctx, id, string(transport.StatusConfirmed), string(transport.StatusCompleted))
	if err != nil {
		return err
	}
	if !moved {
		return apperr.Conflict("appointment cannot be completed from its current status")
	}
	return nil
}

func adminView(a repository.Appointment) transport.AdminAppointmentResponse {
	return transport.AdminAppointmentResponse{
		ID:                 a.ID,
		ReferenceNumber:    a.ReferenceNumber,
		Service:            a.Service,
		PreferredDate:      a.PreferredDate.Format(dateLayout),
		PreferredTime:      a.PreferredTime,
		CustomerName:       a.CustomerName,
		CustomerPhone:      a.CustomerPhone,
		CustomerEmail:      a.CustomerEmail,
		Language:           a.Language,
		VehicleYear:        a.VehicleYear,
		VehicleMake:        a.VehicleMake,
		VehicleModel:       a.VehicleModel,
		VehicleVIN:         a.VehicleVIN,
		Notes:              a.Notes,
		Status:             a.Status,
		CancelReason:       a.CancelReason,
		CalendarSyncStatus: a.CalendarSyncStatus,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
	}
}
