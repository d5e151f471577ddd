// Package email renders and delivers the customer-facing notification mails.
package email

import "context"

// BookingEmail is the data for booking lifecycle mails.
type BookingEmail struct {
	CustomerName    string
	ReferenceNumber string
	Service         string
	Date            string
	Time            string
	Language        string
	ManageURL       string
}

// EstimateEmail is the data for estimate lifecycle mails.
type EstimateEmail struct {
	CustomerName   string
	EstimateNumber string
	TotalFormatted string
	ValidUntil     string
	Language       string
	ApprovalURL    string
	Status         string
	ApprovedCount  int
	DeclinedCount  int
}

// Sender delivers the transactional mails. Implementations must be safe for
// concurrent use; the coordinator calls them from event handler goroutines.
type Sender interface {
	SendBookingConfirmation(ctx context.Context, toEmail string, data BookingEmail) error
	SendBookingCancelled(ctx context.Context, toEmail string, data BookingEmail) error
	SendBookingRescheduled(ctx context.Context, toEmail string, data BookingEmail) error
	SendBookingReminder(ctx context.Context, toEmail string, data BookingEmail) error
	SendEstimateLink(ctx context.Context, toEmail string, data EstimateEmail) error
	SendEstimateResponseConfirmation(ctx context.Context, toEmail string, data EstimateEmail) error
	SendShopBookingAlert(ctx context.Context, data BookingEmail) error
	SendShopEstimateResponseAlert(ctx context.Context, data EstimateEmail) error
}

// NoopSender is used when email delivery is disabled in configuration.
type NoopSender struct{}

func (NoopSender) SendBookingConfirmation(context.Context, string, BookingEmail) error { return nil }
func (NoopSender) SendBookingCancelled(context.Context, string, BookingEmail) error    { return nil }
func (NoopSender) SendBookingRescheduled(context.Context, string, BookingEmail) error  { return nil }
func (NoopSender) SendBookingReminder(context.Context, string, BookingEmail) error     { return nil }
func (NoopSender) SendEstimateLink(context.Context, string, EstimateEmail) error       { return nil }
func (NoopSender) SendEstimateResponseConfirmation(context.Context, string, EstimateEmail) error {
	return nil
}
func (NoopSender) SendShopBookingAlert(context.Context, BookingEmail) error            { return nil }
func (NoopSender) SendShopEstimateResponseAlert(context.Context, EstimateEmail) error  { return nil }

var _ Sender = NoopSender{}
