// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"tireshop_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Appointment Domain Events
// =============================================================================

// AppointmentBooked is published after a booking has committed.
type AppointmentBooked struct {
	BaseEvent
	AppointmentID   int64  `json:"appointmentId"`
	ReferenceNumber string `json:"referenceNumber"`
	Service         string `json:"service"`
	PreferredDate   string `json:"preferredDate"`
	PreferredTime   string `json:"preferredTime"`
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	Language        string `json:"language"`
	Notes           string `json:"notes,omitempty"`
	// ManagementToken is delivered to the customer only via email; it never
	// appears in an HTTP response.
	ManagementToken string `json:"-"`
}

func (e AppointmentBooked) EventName() string { return "appointments.booked" }

// AppointmentCancelled is published after a customer cancel has committed.
type AppointmentCancelled struct {
	BaseEvent
	AppointmentID      int64   `json:"appointmentId"`
	ReferenceNumber    string  `json:"referenceNumber"`
	Service            string  `json:"service"`
	PreferredDate      string  `json:"preferredDate"`
	PreferredTime      string  `json:"preferredTime"`
	CustomerName       string  `json:"customerName"`
	CustomerEmail      string  `json:"customerEmail"`
	CustomerPhone      string  `json:"customerPhone"`
	Language           string  `json:"language"`
	Reason             string  `json:"reason,omitempty"`
	GoogleEventID      *string `json:"googleEventId,omitempty"`
	CalendarSyncStatus string  `json:"calendarSyncStatus"`
}

func (e AppointmentCancelled) EventName() string { return "appointments.cancelled" }

// AppointmentRescheduled is published after a customer reschedule has
// committed. The new management token replaces the old one.
type AppointmentRescheduled struct {
	BaseEvent
	AppointmentID      int64   `json:"appointmentId"`
	ReferenceNumber    string  `json:"referenceNumber"`
	Service            string  `json:"service"`
	OldDate            string  `json:"oldDate"`
	OldTime            string  `json:"oldTime"`
	NewDate            string  `json:"newDate"`
	NewTime            string  `json:"newTime"`
	CustomerName       string  `json:"customerName"`
	CustomerEmail      string  `json:"customerEmail"`
	CustomerPhone      string  `json:"customerPhone"`
	Language           string  `json:"language"`
	GoogleEventID      *string `json:"googleEventId,omitempty"`
	CalendarSyncStatus string  `json:"calendarSyncStatus"`
	ManagementToken    string  `json:"-"`
}

func (e AppointmentRescheduled) EventName() string { return "appointments.rescheduled" }

// =============================================================================
// Estimate Domain Events
// =============================================================================

// EstimateSent is published when the shop sends an estimate to the customer.
type EstimateSent struct {
	BaseEvent
	EstimateID     int64  `json:"estimateId"`
	EstimateNumber string `json:"estimateNumber"`
	CustomerName   string `json:"customerName"`
	CustomerEmail  string `json:"customerEmail"`
	Language       string `json:"language"`
	TotalCents     int64  `json:"totalCents"`
	ValidUntil     string `json:"validUntil"`
	ApprovalToken  string `json:"-"`
}

func (e EstimateSent) EventName() string { return "estimates.sent" }

// EstimateResponded is published after the customer submitted an approval
// decision and the recomputed totals committed.
type EstimateResponded struct {
	BaseEvent
	EstimateID         int64  `json:"estimateId"`
	EstimateNumber     string `json:"estimateNumber"`
	Status             string `json:"status"`
	ApprovedCount      int    `json:"approvedCount"`
	DeclinedCount      int    `json:"declinedCount"`
	ApprovedTotalCents int64  `json:"approvedTotalCents"`
	CustomerName       string `json:"customerName"`
	CustomerEmail      string `json:"customerEmail"`
	CustomerPhone      string `json:"customerPhone"`
	Language           string `json:"language"`
}

func (e EstimateResponded) EventName() string { return "estimates.responded" }
