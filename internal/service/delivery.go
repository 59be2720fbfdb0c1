package service

import (
	"context"
	"strings"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/client"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/email"
	"github.com/invoicekit/invoicekit/internal/types"
)

const emailDateLayout = "January 2, 2006"

// PublicInvoiceURL is the link clients follow to view and pay an invoice
func (p ServiceParams) PublicInvoiceURL(publicID string) string {
	return strings.TrimRight(p.Config.Server.PublicBaseURL, "/") + "/public/invoices/" + publicID
}

func (p ServiceParams) invoiceEmailData(inv *invoice.Invoice, c *client.Client, now time.Time) email.InvoiceEmailData {
	data := email.InvoiceEmailData{
		ClientName: c.Name,
		SenderName: p.Config.Email.FromName,
		PublicID:   inv.PublicID,
		AmountDue:  types.FormatMinorUnits(inv.RemainingAmount(), inv.Currency),
		Total:      types.FormatMinorUnits(inv.Total, inv.Currency),
		DueDate:    inv.DueDate.Format(emailDateLayout),
		InvoiceURL: p.PublicInvoiceURL(inv.PublicID),
		Notes:      inv.Notes,
	}
	if now.After(inv.DueDate) {
		data.DaysOverdue = int(now.Sub(inv.DueDate).Hours() / 24)
	}
	return data
}

// deliverInvoice emails the invoice to its client. A disabled sender reports
// delivered=false without an error.
func (p ServiceParams) deliverInvoice(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	c, err := p.getClient(ctx, inv.ClientID)
	if err != nil {
		return false, err
	}

	msg, err := email.InvoiceMessage(c.Email, p.invoiceEmailData(inv, c, types.Now(ctx)))
	if err != nil {
		return false, err
	}
	return p.send(ctx, inv, msg)
}

// deliverReminder emails a follow-up for an unpaid invoice
func (p ServiceParams) deliverReminder(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	c, err := p.getClient(ctx, inv.ClientID)
	if err != nil {
		return false, err
	}

	msg, err := email.ReminderMessage(c.Email, p.invoiceEmailData(inv, c, types.Now(ctx)))
	if err != nil {
		return false, err
	}
	return p.send(ctx, inv, msg)
}

func (p ServiceParams) send(ctx context.Context, inv *invoice.Invoice, msg email.Message) (bool, error) {
	result, err := p.EmailSender.Send(ctx, msg)
	if err != nil {
		p.Logger.Errorw("failed to deliver invoice email",
			"invoice_id", inv.ID,
			"to", msg.To,
			"error", err,
		)
		return false, err
	}
	if result == nil || !result.Success {
		return false, nil
	}

	p.Logger.Infow("delivered invoice email",
		"invoice_id", inv.ID,
		"message_id", result.MessageID,
	)
	return true, nil
}

// appendEvent writes one audit entry for the invoice, stamped with the context user and clock
func (p ServiceParams) appendEvent(ctx context.Context, invoiceID string, eventType types.InvoiceEventType, payload types.Payload) error {
	return p.InvoiceEventRepo.Create(ctx, invoice.NewEvent(ctx, invoiceID, eventType, payload))
}
