package service

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/api/dto"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/domain/payment"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

// PaymentService is the payment ledger. Every operation that moves money updates the
// payment rows, the invoice balance and the audit log in one transaction.
type PaymentService interface {
	RecordPayment(ctx context.Context, invoiceID string, req dto.RecordPaymentRequest) (*dto.RecordPaymentResponse, error)
	MarkPaidManually(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error)
	DeletePayment(ctx context.Context, paymentID string) (*dto.InvoiceResponse, error)
	ListPayments(ctx context.Context, invoiceID string) (*dto.ListPaymentsResponse, error)
	CancelPendingFollowUps(ctx context.Context, invoiceID string) (int, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{ServiceParams: params}
}

func (s *paymentService) RecordPayment(ctx context.Context, invoiceID string, req dto.RecordPaymentRequest) (*dto.RecordPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := types.Now(ctx)
	paidAt := now
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}

	var inv *invoice.Invoice
	var p *payment.Payment
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := checkPayable(inv); err != nil {
			return err
		}

		remaining := inv.RemainingAmount()
		if req.Amount > remaining {
			return ierr.NewError("payment exceeds remaining balance").
				WithHintf("At most %s can be recorded on this invoice",
					types.FormatMinorUnits(remaining, inv.Currency)).
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
					"amount":     req.Amount,
					"remaining":  remaining,
				}).
				Mark(ierr.ErrBalanceExceeded)
		}

		p = &payment.Payment{
			ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
			InvoiceID: inv.ID,
			Amount:    req.Amount,
			Method:    req.Method,
			Note:      req.Note,
			PaidAt:    paidAt,
			BaseModel: types.GetDefaultBaseModel(ctx),
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if err := s.PaymentRepo.Create(ctx, p); err != nil {
			return err
		}

		inv.PaidAmount += p.Amount
		inv.Status = invoice.SettledStatus(inv)
		if inv.Status == types.InvoiceStatusPaid {
			inv.PaidAt = lo.ToPtr(paidAt)
			inv.PaymentMethod = lo.ToPtr(p.Method)
		}
		inv.Touch(ctx)
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}

		if err := s.appendEvent(ctx, inv.ID, types.InvoiceEventPaymentRecorded, types.Payload{
			"payment_id":  p.ID,
			"amount":      p.Amount,
			"method":      p.Method,
			"paid_amount": inv.PaidAmount,
		}); err != nil {
			return err
		}

		if inv.Status == types.InvoiceStatusPaid {
			_, err = s.cancelFollowUps(ctx, inv.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("recorded payment",
		"invoice_id", inv.ID,
		"payment_id", p.ID,
		"amount", p.Amount,
		"status", inv.Status,
	)

	return &dto.RecordPaymentResponse{
		Payment: &dto.PaymentResponse{Payment: p},
		Invoice: dto.NewInvoiceResponse(invoice.WithDisplayStatus(inv, now)),
	}, nil
}

// MarkPaidManually settles the whole remaining balance with a single manual payment
func (s *paymentService) MarkPaidManually(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error) {
	now := types.Now(ctx)

	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := checkPayable(inv); err != nil {
			return err
		}

		remaining := inv.RemainingAmount()
		p, err := s.settle(ctx, inv, remaining, types.PaymentMethodManual, nil, now)
		if err != nil {
			return err
		}

		payload := types.Payload{"amount": remaining}
		if p != nil {
			payload["payment_id"] = p.ID
		}
		return s.appendEvent(ctx, inv.ID, types.InvoiceEventPaidManual, payload)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("invoice marked as paid",
		"invoice_id", inv.ID,
		"total", inv.Total,
	)
	return dto.NewInvoiceResponse(invoice.WithDisplayStatus(inv, now)), nil
}

// DeletePayment reverses a payment on an invoice that is not fully paid. The status
// falls back to PARTIALLY_PAID, VIEWED or SENT; a stored OVERDUE is not restored.
func (s *paymentService) DeletePayment(ctx context.Context, paymentID string) (*dto.InvoiceResponse, error) {
	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PaymentRepo.Get(ctx, paymentID)
		if err != nil {
			return err
		}

		inv, err = s.InvoiceRepo.Get(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == types.InvoiceStatusPaid || inv.PaidAt != nil {
			return ierr.NewError("invoice is paid").
				WithHint("Payments of a paid invoice cannot be deleted").
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
					"payment_id": p.ID,
				}).
				Mark(ierr.ErrInvalidState)
		}

		if err := s.PaymentRepo.Delete(ctx, p.ID); err != nil {
			return err
		}

		inv.PaidAmount = lo.Max([]int64{0, inv.PaidAmount - p.Amount})
		inv.Status = invoice.SettledStatus(inv)
		inv.Touch(ctx)
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}

		return s.appendEvent(ctx, inv.ID, types.InvoiceEventPaymentDeleted, types.Payload{
			"payment_id":  p.ID,
			"amount":      p.Amount,
			"paid_amount": inv.PaidAmount,
		})
	})
	if err != nil {
		return nil, err
	}

	return dto.NewInvoiceResponse(invoice.WithDisplayStatus(inv, types.Now(ctx))), nil
}

func (s *paymentService) ListPayments(ctx context.Context, invoiceID string) (*dto.ListPaymentsResponse, error) {
	if _, err := s.InvoiceRepo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	return &dto.ListPaymentsResponse{
		Items: lo.Map(payments, func(p *payment.Payment, _ int) *dto.PaymentResponse {
			return &dto.PaymentResponse{Payment: p}
		}),
	}, nil
}

func (s *paymentService) CancelPendingFollowUps(ctx context.Context, invoiceID string) (int, error) {
	if _, err := s.InvoiceRepo.Get(ctx, invoiceID); err != nil {
		return 0, err
	}
	return s.cancelFollowUps(ctx, invoiceID)
}

// settle records amount against inv and marks it PAID, provided paid_at is still unset
// in storage. It must run inside a transaction. A zero amount records no payment row.
func (p ServiceParams) settle(
	ctx context.Context,
	inv *invoice.Invoice,
	amount int64,
	method types.PaymentMethod,
	gatewayPaymentID *string,
	paidAt time.Time,
) (*payment.Payment, error) {
	var record *payment.Payment
	if amount > 0 {
		record = &payment.Payment{
			ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
			InvoiceID:        inv.ID,
			Amount:           amount,
			Method:           method,
			GatewayPaymentID: gatewayPaymentID,
			PaidAt:           paidAt,
			BaseModel:        types.GetDefaultBaseModel(ctx),
		}
		if err := p.PaymentRepo.Create(ctx, record); err != nil {
			return nil, err
		}
	}

	inv.PaidAmount += amount
	inv.Status = types.InvoiceStatusPaid
	inv.PaidAt = lo.ToPtr(paidAt)
	inv.PaymentMethod = lo.ToPtr(method)
	inv.Touch(ctx)

	updated, err := p.InvoiceRepo.MarkPaidIfUnpaid(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ierr.NewError("invoice already paid").
			WithHint("This invoice has already been paid").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrInvalidState)
	}

	if _, err := p.cancelFollowUps(ctx, inv.ID); err != nil {
		return nil, err
	}
	return record, nil
}

// checkPayable rejects drafts and settled invoices. OVERDUE invoices still take money.
func checkPayable(inv *invoice.Invoice) error {
	if inv.Status == types.InvoiceStatusDraft {
		return ierr.NewError("invoice not sent").
			WithHint("Send the invoice before recording payments").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrInvalidState)
	}
	if inv.IsFullyPaid() {
		return ierr.NewError("invoice already paid").
			WithHint("This invoice has already been paid").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"paid_at":    inv.PaidAt,
			}).
			Mark(ierr.ErrInvalidState)
	}
	return nil
}
