// Package transport defines the request/response DTOs for the appointments module.
package transport

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	// StatusNew is set on creation and restored on reschedule.
	StatusNew AppointmentStatus = "new"
	// StatusConfirmed is set by the shop from the back office.
	StatusConfirmed AppointmentStatus = "confirmed"
	// StatusCompleted is terminal.
	StatusCompleted AppointmentStatus = "completed"
	// StatusCancelled is terminal.
	StatusCancelled AppointmentStatus = "cancelled"
)

// IsTerminal reports whether no further customer transitions are accepted.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Service codes offered by the shop. The oneof tag below must stay in sync.
const (
	ServiceNewTires       = "new-tires"
	ServiceTireRotation   = "tire-rotation"
	ServiceFlatRepair     = "flat-repair"
	ServiceWheelAlignment = "wheel-alignment"
	ServiceOilChange      = "oil-change"
	ServiceBrakeService   = "brake-service"
	ServiceInspection     = "inspection"
	ServiceRepairEstimate = "repair-estimate"
)

// BookAppointmentRequest is the public booking payload.
type BookAppointmentRequest struct {
	Service       string `json:"service" validate:"required,oneof=new-tires tire-rotation flat-repair wheel-alignment oil-change brake-service inspection repair-estimate"`
	PreferredDate string `json:"preferred_date" validate:"required,booking_date"`
	PreferredTime string `json:"preferred_time" validate:"required,slot_time"`

	CustomerName  string `json:"customer_name" validate:"required,min=2,max=120"`
	CustomerPhone string `json:"customer_phone" validate:"required,min=7,max=30"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	Language      string `json:"language" validate:"required,oneof=english spanish"`

	VehicleYear  *int    `json:"vehicle_year,omitempty" validate:"omitempty,min=1950,max=2030"`
	VehicleMake  *string `json:"vehicle_make,omitempty" validate:"omitempty,max=60"`
	VehicleModel *string `json:"vehicle_model,omitempty" validate:"omitempty,max=60"`
	VehicleVIN   *string `json:"vehicle_vin,omitempty" validate:"omitempty,vin"`

	Notes *string `json:"notes,omitempty" validate:"omitempty,max=1000"`

	// PaymentMethod triggers optional payment initiation. Its absence or
	// failure never blocks the booking.
	PaymentMethod string `json:"payment_method,omitempty"`
	DepositCents  int64  `json:"deposit_cents,omitempty" validate:"omitempty,min=0"`
}

// PaymentResult describes what happened to the optional payment step.
type PaymentResult struct {
	Status            string `json:"status"`
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
	Detail            string `json:"detail,omitempty"`
}

// BookAppointmentResponse is returned on a successful booking. The
// management token is deliberately absent: it travels only by email.
type BookAppointmentResponse struct {
	AppointmentID   int64          `json:"appointment_id"`
	ReferenceNumber string         `json:"reference_number"`
	Payment         *PaymentResult `json:"payment,omitempty"`
}

// ManageAppointmentResponse backs the cancel/reschedule pages fetched by token.
type ManageAppointmentResponse struct {
	ReferenceNumber string `json:"reference_number"`
	Service         string `json:"service"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	CustomerName    string `json:"customer_name"`
	Status          string `json:"status"`
}

// CancelAppointmentRequest carries the optional free-text reason.
type CancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// CancelAppointmentResponse confirms the cancellation.
type CancelAppointmentResponse struct {
	Message string `json:"message"`
}

// RescheduleAppointmentRequest carries the new slot.
type RescheduleAppointmentRequest struct {
	NewDate string `json:"new_date" validate:"required,booking_date"`
	NewTime string `json:"new_time" validate:"required,slot_time"`
}

// RescheduleAppointmentResponse confirms the move.
type RescheduleAppointmentResponse struct {
	ReferenceNumber string `json:"reference_number"`
	NewDate         string `json:"new_date"`
	NewTime         string `json:"new_time"`
}

// SlotAvailabilityResponse lists bookable times for a date.
type SlotAvailabilityResponse struct {
	Date  string   `json:"date"`
	Times []string `json:"times"`
}

// AdminAppointmentResponse is the back-office projection of an appointment.
type AdminAppointmentResponse struct {
	ID                 int64   `json:"id"`
	ReferenceNumber    string  `json:"reference_number"`
	Service            string  `json:"service"`
	PreferredDate      string  `json:"preferred_date"`
	PreferredTime      string  `json:"preferred_time"`
	CustomerName       string  `json:"customer_name"`
	CustomerPhone      string  `json:"customer_phone"`
	CustomerEmail      string  `json:"customer_email"`
	Language           string  `json:"language"`
	VehicleYear        *int    `json:"vehicle_year,omitempty"`
	VehicleMake        *string `json:"vehicle_make,omitempty"`
	VehicleModel       *string `json:"vehicle_model,omitempty"`
	VehicleVIN         *string `json:"vehicle_vin,omitempty"`
	Notes              *string `json:"notes,omitempty"`
	Status             string  `json:"status"`
	CancelReason       *string `json:"cancel_reason,omitempty"`
	CalendarSyncStatus string  `json:"calendar_sync_status"`
	CreatedAt          string  `json:"created_at"`
}
