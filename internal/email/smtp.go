package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"tireshop_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host         string
	port         int
	username     string
	password     string
	fromName     string
	fromEmail    string
	shopNotifyTo string
}

// NewSMTPSender creates a sender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:         cfg.GetSMTPHost(),
		port:         cfg.GetSMTPPort(),
		username:     cfg.GetSMTPUsername(),
		password:     cfg.GetSMTPPassword(),
		fromName:     cfg.GetEmailFromName(),
		fromEmail:    cfg.GetEmailFromAddress(),
		shopNotifyTo: cfg.GetShopNotifyAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) sendBookingMail(ctx context.Context, toEmail string, data BookingEmail, subject subjectPair, introEN, introES, ctaEN, ctaES string) error {
	intro, cta := introEN, ctaEN
	slotLabel, refLabel := "When", "Reference"
	if data.Language == languageSpanish {
		intro, cta = introES, ctaES
		slotLabel, refLabel = "Cuándo", "Referencia"
	}

	subjectLine := fmt.Sprintf(subject.forLanguage(data.Language), data.ReferenceNumber)
	content, err := renderEmailTemplate("booking.html", bookingEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectLine,
			Heading:  subjectLine,
			CTALabel: cta,
			CTAURL:   data.ManageURL,
		},
		CustomerName:    data.CustomerName,
		ReferenceNumber: data.ReferenceNumber,
		Service:         data.Service,
		Date:            data.Date,
		Time:            data.Time,
		Intro:           intro,
		SlotLabel:       slotLabel,
		ReferenceLabel:  refLabel,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLine, content)
}

// SendBookingConfirmation delivers the booking confirmation with the
// self-service management link.
func (s *SMTPSender) SendBookingConfirmation(ctx context.Context, toEmail string, data BookingEmail) error {
	return s.sendBookingMail(ctx, toEmail, data, subjectBookingConfirmed,
		fmt.Sprintf("Hi %s, your appointment is confirmed. Need to make a change? Use the link below.", data.CustomerName),
		fmt.Sprintf("Hola %s, su cita está confirmada. ¿Necesita hacer un cambio? Use el enlace de abajo.", data.CustomerName),
		"Manage my appointment", "Administrar mi cita")
}

// SendBookingCancelled confirms a cancellation. No CTA: the link is dead.
func (s *SMTPSender) SendBookingCancelled(ctx context.Context, toEmail string, data BookingEmail) error {
	noCTA := data
	noCTA.ManageURL = ""
	return s.sendBookingMail(ctx, toEmail, noCTA, subjectBookingCancelled,
		fmt.Sprintf("Hi %s, your appointment has been cancelled. We hope to see you another time.", data.CustomerName),
		fmt.Sprintf("Hola %s, su cita ha sido cancelada. Esperamos verle en otra ocasión.", data.CustomerName),
		"", "")
}

// SendBookingRescheduled confirms the move and carries the fresh link.
func (s *SMTPSender) SendBookingRescheduled(ctx context.Context, toEmail string, data BookingEmail) error {
	return s.sendBookingMail(ctx, toEmail, data, subjectBookingRescheduled,
		fmt.Sprintf("Hi %s, your appointment has been moved to the time below.", data.CustomerName),
		fmt.Sprintf("Hola %s, su cita ha sido cambiada al horario de abajo.", data.CustomerName),
		"Manage my appointment", "Administrar mi cita")
}

// SendBookingReminder delivers the day-before reminder.
func (s *SMTPSender) SendBookingReminder(ctx context.Context, toEmail string, data BookingEmail) error {
	return s.sendBookingMail(ctx, toEmail, data, subjectBookingReminder,
		fmt.Sprintf("Hi %s, this is a reminder of your appointment tomorrow.", data.CustomerName),
		fmt.Sprintf("Hola %s, le recordamos su cita de mañana.", data.CustomerName),
		"Manage my appointment", "Administrar mi cita")
}

// SendEstimateLink delivers the approval link for a sent estimate.
func (s *SMTPSender) SendEstimateLink(ctx context.Context, toEmail string, data EstimateEmail) error {
	intro := fmt.Sprintf("Hi %s, your repair estimate is ready. Review each line and approve or decline online.", data.CustomerName)
	cta, totalLabel, deadlineLabel := "Review my estimate", "Total", "Respond by"
	if data.Language == languageSpanish {
		intro = fmt.Sprintf("Hola %s, su presupuesto de reparación está listo. Revise cada línea y apruebe o rechace en línea.", data.CustomerName)
		cta, totalLabel, deadlineLabel = "Revisar mi presupuesto", "Total", "Responder antes de"
	}

	subjectLine := fmt.Sprintf(subjectEstimateLink.forLanguage(data.Language), data.EstimateNumber)
	content, err := renderEmailTemplate("estimate.html", estimateEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectLine,
			Heading:  subjectLine,
			CTALabel: cta,
			CTAURL:   data.ApprovalURL,
		},
		CustomerName:   data.CustomerName,
		EstimateNumber: data.EstimateNumber,
		TotalFormatted: data.TotalFormatted,
		ValidUntil:     data.ValidUntil,
		Intro:          intro,
		TotalLabel:     totalLabel,
		DeadlineLabel:  deadlineLabel,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLine, content)
}

// SendEstimateResponseConfirmation acknowledges the customer's decision
// and restates the approved total they committed to.
func (s *SMTPSender) SendEstimateResponseConfirmation(ctx context.Context, toEmail string, data EstimateEmail) error {
	intro := fmt.Sprintf("Hi %s, thank you. We received your response and will start on the approved work shortly.", data.CustomerName)
	totalLabel := "Approved total"
	if data.Language == languageSpanish {
		intro = fmt.Sprintf("Hola %s, gracias. Recibimos su respuesta y comenzaremos pronto con el trabajo aprobado.", data.CustomerName)
		totalLabel = "Total aprobado"
	}

	subjectLine := fmt.Sprintf(subjectEstimateResponse.forLanguage(data.Language), data.EstimateNumber)
	content, err := renderEmailTemplate("estimate.html", estimateEmailData{
		baseEmailData: baseEmailData{
			Title:   subjectLine,
			Heading: subjectLine,
		},
		CustomerName:   data.CustomerName,
		EstimateNumber: data.EstimateNumber,
		TotalFormatted: data.TotalFormatted,
		Intro:          intro,
		TotalLabel:     totalLabel,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLine, content)
}

// SendShopBookingAlert notifies the shop inbox of a new booking.
func (s *SMTPSender) SendShopBookingAlert(ctx context.Context, data BookingEmail) error {
	subjectLine := fmt.Sprintf(subjectShopBookingFmt, data.ReferenceNumber)
	content, err := renderEmailTemplate("shop_alert.html", shopAlertData{
		baseEmailData: baseEmailData{Title: subjectLine, Heading: "New appointment"},
		Lines: []string{
			fmt.Sprintf("%s booked %s.", data.CustomerName, data.Service),
			fmt.Sprintf("%s at %s, reference %s.", data.Date, data.Time, data.ReferenceNumber),
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, s.shopNotifyTo, subjectLine, content)
}

// SendShopEstimateResponseAlert notifies the shop inbox of a customer
// decision on an estimate.
func (s *SMTPSender) SendShopEstimateResponseAlert(ctx context.Context, data EstimateEmail) error {
	subjectLine := fmt.Sprintf(subjectShopEstimateFmt, data.EstimateNumber, data.Status)
	content, err := renderEmailTemplate("shop_alert.html", shopAlertData{
		baseEmailData: baseEmailData{Title: subjectLine, Heading: "Estimate response"},
		Lines: []string{
			fmt.Sprintf("%s responded to estimate %s: %s.", data.CustomerName, data.EstimateNumber, data.Status),
			fmt.Sprintf("%d approved, %d declined, approved total %s.", data.ApprovedCount, data.DeclinedCount, data.TotalFormatted),
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, s.shopNotifyTo, subjectLine, content)
}

var _ Sender = (*SMTPSender)(nil)
