package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// InvoiceMessage renders the email sent when an invoice goes out
func InvoiceMessage(to string, data InvoiceEmailData) (Message, error) {
	html, err := render("invoice.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Invoice %s for %s", data.PublicID, data.Total),
		HTML:    html,
		Text: fmt.Sprintf("Hi %s,\n\nInvoice %s for %s is due on %s.\nView and pay: %s\n",
			data.ClientName, data.PublicID, data.Total, data.DueDate, data.InvoiceURL),
	}, nil
}

// ReminderMessage renders a follow-up reminder for an unpaid invoice
func ReminderMessage(to string, data InvoiceEmailData) (Message, error) {
	html, err := render("reminder.html", data)
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("Reminder: invoice %s is due %s", data.PublicID, data.DueDate)
	if data.DaysOverdue > 0 {
		subject = fmt.Sprintf("Overdue: invoice %s (%s outstanding)", data.PublicID, data.AmountDue)
	}
	return Message{
		To:      to,
		Subject: subject,
		HTML:    html,
		Text: fmt.Sprintf("Hi %s,\n\nInvoice %s has %s outstanding, due %s.\nView and pay: %s\n",
			data.ClientName, data.PublicID, data.AmountDue, data.DueDate, data.InvoiceURL),
	}, nil
}

func render(name string, data InvoiceEmailData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", ierr.WithError(err).
			WithHintf("Could not render %s", name).
			Mark(ierr.ErrSystem)
	}
	return buf.String(), nil
}
