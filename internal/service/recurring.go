package service

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/api/dto"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/domain/recurring"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

type RecurringService interface {
	CreateRecurringInvoice(ctx context.Context, req dto.CreateRecurringInvoiceRequest) (*dto.RecurringInvoiceResponse, error)
	GetRecurringInvoice(ctx context.Context, id string) (*dto.RecurringInvoiceResponse, error)
	ListRecurringInvoices(ctx context.Context, filter *types.RecurringInvoiceFilter) (*dto.ListRecurringInvoicesResponse, error)
	UpdateRecurringInvoice(ctx context.Context, id string, req dto.UpdateRecurringInvoiceRequest) (*dto.RecurringInvoiceResponse, error)
	PauseRecurringInvoice(ctx context.Context, id string) (*dto.RecurringInvoiceResponse, error)
	ResumeRecurringInvoice(ctx context.Context, id string) (*dto.RecurringInvoiceResponse, error)
	CancelRecurringInvoice(ctx context.Context, id string) (*dto.RecurringInvoiceResponse, error)
	DeleteRecurringInvoice(ctx context.Context, id string) error

	// MaterializeInvoice generates the next invoice of a template right away and advances
	// its schedule
	MaterializeInvoice(ctx context.Context, id string) (*dto.RecurringRunResult, error)

	// ProcessDueRecurringInvoices materializes every due template of every user. A failing
	// template is reported in its result and does not stop the run.
	ProcessDueRecurringInvoices(ctx context.Context) (*dto.ProcessRecurringResponse, error)
}

type recurringService struct {
	ServiceParams
}

func NewRecurringService(params ServiceParams) RecurringService {
	return &recurringService{ServiceParams: params}
}

func (s *recurringService) CreateRecurringInvoice(ctx context.Context, req dto.CreateRecurringInvoiceRequest) (*dto.RecurringInvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.getClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	tmpl := req.ToRecurringInvoice(ctx)
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if err := tmpl.ValidateSchedule(); err != nil {
		return nil, err
	}

	if err := s.RecurringRepo.Create(ctx, tmpl); err != nil {
		return nil, err
	}

	s.Logger.Infow("created recurring invoice",
		"recurring_invoice_id", tmpl.ID,
		"frequency", tmpl.Frequency,
		"next_run_at", tmpl.NextRunAt,
	)
	return &dto.RecurringInvoiceResponse{RecurringInvoice: tmpl}, nil
}

func (s *recurringService) GetRecurringInvoice(ctx context.Context, id string) (*dto.RecurringInvoiceResponse, error) {
	tmpl, err := s.RecurringRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.RecurringInvoiceResponse{RecurringInvoice: tmpl}, nil
}

func (s *recurringService) ListRecurringInvoices(ctx context.Context, filter *types.RecurringInvoiceFilter) (*dto.ListRecurringInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewRecurringInvoiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid recurring invoice filter").
			Mark(ierr.ErrValidation)
	}

	templates, err := s.RecurringRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.RecurringRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(templates, func(tmpl *recurring.RecurringInvoice, _ int) *dto.RecurringInvoiceResponse {
		return &dto.RecurringInvoiceResponse{RecurringInvoice: tmpl}
	})
	response := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *recurringService) UpdateRecurringInvoice(ctx context.Context, id string, req dto.UpdateRecurringInvoiceRequest) (*dto.RecurringInvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var tmpl *recurring.RecurringInvoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		tmpl, err = s.RecurringRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if tmpl.Status == types.RecurringStatusCanceled {
			return errTemplateCanceled(tmpl)
		}

		req.Apply(tmpl)
		if err := tmpl.Validate(); err != nil {
			return err
		}
		if req.ChangesSchedule() {
			if err := tmpl.ValidateSchedule(); err != nil {
				return err
			}
		}
		tmpl.Touch(ctx)

		if err := s.RecurringRepo.Update(ctx, tmpl); err != nil {
			return err
		}
		if req.ReplacesItems() {
			return s.RecurringRepo.ReplaceItems(ctx, tmpl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.RecurringInvoiceResponse{RecurringInvoice: tmpl}, nil
}

func (s *recurringService) PauseRecurringInvoice(ctx context.Context, id string) (*dto.RecurringInvoiceResponse, error) {
	return s.transition(ctx, id, func(tmpl *recurring.RecurringInvoice, _ time.Time) error {
		if tmpl.Status != types.RecurringStatusActive {
			return ierr.NewError("recurring invoice is not active").
				WithHint("Only active recurring invoices can be paused").
				WithReportableDetails(map[string]any{
					"recurring_invoice_id": tmpl.ID,
					"status":               tmpl.Status,
				}).
				Mark(ierr.ErrInvalidState)
		}
		tmpl.Status = types.RecurringStatusPaused
		return nil
	})
}

// ResumeRecurringInvoice reactivates a paused template. Runs missed while paused are
// skipped, not caught up.
func (s *recurringService) ResumeRecurringInvoice(ctx context.Context, id string) (*dto.RecurringInvoiceResponse, error) {
	return s.transition(ctx, id, func(tmpl *recurring.RecurringInvoice, now time.Time) error {
		if tmpl.Status != types.RecurringStatusPaused {
			return ierr.NewError("recurring invoice is not paused").
				WithHint("Only paused recurring invoices can be resumed").
				WithReportableDetails(map[string]any{
					"recurring_invoice_id": tmpl.ID,
					"status":               tmpl.Status,
				}).
				Mark(ierr.ErrInvalidState)
		}
		tmpl.Status = types.RecurringStatusActive
		for tmpl.NextRunAt.Before(now) {
			tmpl.NextRunAt = recurring.NextRunDate(tmpl.NextRunAt, tmpl.Frequency)
		}
		return nil
	})
}

func (s *recurringService) CancelRecurringInvoice(ctx context.Context, id string) (*dto.RecurringInvoiceResponse, error) {
	return s.transition(ctx, id, func(tmpl *recurring.RecurringInvoice, _ time.Time) error {
		if tmpl.Status == types.RecurringStatusCanceled {
			return errTemplateCanceled(tmpl)
		}
		tmpl.Status = types.RecurringStatusCanceled
		return nil
	})
}

func (s *recurringService) DeleteRecurringInvoice(ctx context.Context, id string) error {
	if _, err := s.RecurringRepo.Get(ctx, id); err != nil {
		return err
	}
	return s.RecurringRepo.Delete(ctx, id)
}

func (s *recurringService) transition(ctx context.Context, id string, apply func(*recurring.RecurringInvoice, time.Time) error) (*dto.RecurringInvoiceResponse, error) {
	var tmpl *recurring.RecurringInvoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		tmpl, err = s.RecurringRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(tmpl, types.Now(ctx)); err != nil {
			return err
		}
		tmpl.Touch(ctx)
		return s.RecurringRepo.Update(ctx, tmpl)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("recurring invoice status changed",
		"recurring_invoice_id", tmpl.ID,
		"status", tmpl.Status,
	)
	return &dto.RecurringInvoiceResponse{RecurringInvoice: tmpl}, nil
}

func (s *recurringService) MaterializeInvoice(ctx context.Context, id string) (*dto.RecurringRunResult, error) {
	tmpl, err := s.RecurringRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl.Status == types.RecurringStatusCanceled {
		return nil, errTemplateCanceled(tmpl)
	}

	return s.materialize(ctx, tmpl, types.Now(ctx))
}

func (s *recurringService) ProcessDueRecurringInvoices(ctx context.Context) (*dto.ProcessRecurringResponse, error) {
	now := types.Now(ctx)
	ctx = types.WithNow(ctx, now)

	due, err := s.RecurringRepo.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	response := &dto.ProcessRecurringResponse{Results: make([]*dto.RecurringRunResult, 0, len(due))}
	for _, tmpl := range due {
		if !tmpl.IsDue(now) {
			continue
		}

		var result *dto.RecurringRunResult
		err := isolate(s.Logger, tmpl.ID, func() error {
			var err error
			result, err = s.materialize(types.SetUserID(ctx, tmpl.UserID), tmpl, now)
			return err
		})
		if err != nil {
			s.Logger.Errorw("failed to materialize recurring invoice",
				"recurring_invoice_id", tmpl.ID,
				"user_id", tmpl.UserID,
				"error", err,
			)
			result = &dto.RecurringRunResult{
				RecurringInvoiceID: tmpl.ID,
				UserID:             tmpl.UserID,
				Error:              err.Error(),
			}
			response.Failed++
		} else {
			response.Succeeded++
		}
		response.Results = append(response.Results, result)
	}

	s.Logger.Infow("processed recurring invoices",
		"due", len(due),
		"succeeded", response.Succeeded,
		"failed", response.Failed,
	)
	return response, nil
}

// materialize creates the invoice for one run of tmpl and advances its schedule in a
// single transaction. Auto-send templates go out as SENT; the email is sent after the
// commit and a failed delivery does not undo the run.
func (s *recurringService) materialize(ctx context.Context, tmpl *recurring.RecurringInvoice, now time.Time) (*dto.RecurringRunResult, error) {
	if _, err := s.getClient(ctx, tmpl.ClientID); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	var current *recurring.RecurringInvoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.RecurringRepo.Get(ctx, tmpl.ID)
		if err != nil {
			return err
		}
		if !current.NextRunAt.Equal(tmpl.NextRunAt) || current.Status == types.RecurringStatusCanceled {
			return ierr.NewError("recurring invoice changed during run").
				WithHint("The recurring invoice was modified or already ran, try again").
				WithReportableDetails(map[string]any{
					"recurring_invoice_id": tmpl.ID,
				}).
				Mark(ierr.ErrInvalidState)
		}

		inv = current.ToInvoice(now)
		inv.BaseModel = types.GetDefaultBaseModel(ctx)
		if current.AutoSend {
			inv.Status = types.InvoiceStatusSent
			inv.SentAt = lo.ToPtr(now)
		}
		if err := inv.Validate(); err != nil {
			return err
		}

		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, inv.ID, types.InvoiceEventCreated, types.Payload{
			"source":               inv.Source,
			"recurring_invoice_id": current.ID,
			"total":                inv.Total,
		}); err != nil {
			return err
		}

		if current.AutoSend {
			if err := s.appendEvent(ctx, inv.ID, types.InvoiceEventSent, types.Payload{
				"total":     inv.Total,
				"automatic": true,
			}); err != nil {
				return err
			}
			if _, err := s.scheduleFollowUps(ctx, inv); err != nil {
				return err
			}
		}

		current.Advance(now)
		current.Touch(ctx)
		return s.RecurringRepo.Update(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	result := &dto.RecurringRunResult{
		RecurringInvoiceID: current.ID,
		UserID:             current.UserID,
		Success:            true,
		InvoiceID:          inv.ID,
		NextRunAt:          lo.ToPtr(current.NextRunAt),
	}

	if current.AutoSend {
		delivered, err := s.deliverInvoice(ctx, inv)
		result.Delivered = delivered
		if err != nil {
			result.Error = err.Error()
		}
	}

	s.Logger.Infow("materialized recurring invoice",
		"recurring_invoice_id", current.ID,
		"invoice_id", inv.ID,
		"next_run_at", current.NextRunAt,
		"delivered", result.Delivered,
	)
	return result, nil
}

func errTemplateCanceled(tmpl *recurring.RecurringInvoice) error {
	return ierr.NewError("recurring invoice is canceled").
		WithHint("A canceled recurring invoice cannot be changed").
		WithReportableDetails(map[string]any{
			"recurring_invoice_id": tmpl.ID,
		}).
		Mark(ierr.ErrInvalidState)
}
