package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

type bookingEmailData struct {
	baseEmailData
	CustomerName    string
	ReferenceNumber string
	Service         string
	Date            string
	Time            string
	Intro           string
	SlotLabel       string
	ReferenceLabel  string
}

type estimateEmailData struct {
	baseEmailData
	CustomerName   string
	EstimateNumber string
	TotalFormatted string
	ValidUntil     string
	Intro          string
	TotalLabel     string
	DeadlineLabel  string
}

type shopAlertData struct {
	baseEmailData
	Lines []string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// FormatCurrencyUSD renders cents as a dollar amount for email bodies.
func FormatCurrencyUSD(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
