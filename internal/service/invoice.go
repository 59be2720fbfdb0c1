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

// InvoiceService owns the invoice lifecycle from draft to delivery. Money movements
// live in PaymentService.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	GetPublicInvoice(ctx context.Context, publicID string) (*dto.PublicInvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
	DuplicateInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	// SendInvoice moves a draft to SENT and emails it. The transition and the delivery
	// are reported separately; a failed delivery returns the response together with an
	// error marked ErrDeliveryFailed.
	SendInvoice(ctx context.Context, id string) (*dto.SendInvoiceResponse, error)
	// RetryDelivery emails an already sent invoice again without touching its state
	RetryDelivery(ctx context.Context, id string) (*dto.SendInvoiceResponse, error)

	GetStatusCounts(ctx context.Context) (*dto.StatusCountsResponse, error)
	ListEvents(ctx context.Context, id string) (*dto.ListInvoiceEventsResponse, error)

	// MarkOverdueInvoices persists OVERDUE for every user's invoices past their due date
	MarkOverdueInvoices(ctx context.Context) (*dto.MarkOverdueResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.getClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	inv := req.ToInvoice(ctx)
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return err
		}
		return s.appendEvent(ctx, inv.ID, types.InvoiceEventCreated, types.Payload{
			"source": inv.Source,
			"total":  inv.Total,
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created invoice",
		"invoice_id", inv.ID,
		"public_id", inv.PublicID,
		"total", inv.Total,
	)

	return s.toResponse(inv, types.Now(ctx)), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice_id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	response := s.toResponse(inv, types.Now(ctx))

	payments, err := s.PaymentRepo.ListByInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	response.Payments = lo.Map(payments, func(p *payment.Payment, _ int) *dto.PaymentResponse {
		return &dto.PaymentResponse{Payment: p}
	})

	c, err := s.getClient(ctx, inv.ClientID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if c != nil {
		response.Client = &dto.ClientResponse{Client: c}
	}

	return response, nil
}

// GetPublicInvoice resolves an invoice by its shared id for an unauthenticated payer.
// The first view stamps ViewedAt and moves SENT to VIEWED.
func (s *invoiceService) GetPublicInvoice(ctx context.Context, publicID string) (*dto.PublicInvoiceResponse, error) {
	inv, err := s.InvoiceRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if inv.Status == types.InvoiceStatusDraft {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice %s was not found", publicID).
			Mark(ierr.ErrNotFound)
	}

	// everything below acts on behalf of the invoice owner
	ctx = types.SetUserID(ctx, inv.UserID)
	now := types.Now(ctx)

	if inv.ViewedAt == nil {
		err := s.DB.WithTx(ctx, func(ctx context.Context) error {
			current, err := s.InvoiceRepo.Get(ctx, inv.ID)
			if err != nil {
				return err
			}
			if current.ViewedAt != nil {
				inv = current
				return nil
			}

			current.ViewedAt = lo.ToPtr(now)
			previous := current.Status
			if current.Status == types.InvoiceStatusSent {
				current.Status = types.InvoiceStatusViewed
			}
			current.Touch(ctx)
			if err := s.InvoiceRepo.Update(ctx, current); err != nil {
				return err
			}
			inv = current

			return s.appendEvent(ctx, current.ID, types.InvoiceEventViewed, types.Payload{
				"previous_status": previous,
			})
		})
		if err != nil {
			return nil, err
		}
	}

	response := dto.NewPublicInvoiceResponse(invoice.WithDisplayStatus(inv, now))
	response.CanPayOnline = s.Config.Stripe.Enabled() && !inv.IsFullyPaid() && inv.RemainingAmount() > 0

	if c, err := s.getClient(ctx, inv.ClientID); err == nil {
		response.ClientName = c.DisplayName()
	}

	return response, nil
}

// ListInvoices filters on the display status, so an unpaid invoice past its due date
// is listed as OVERDUE before the batch job has persisted it
func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid invoice filter").
			Mark(ierr.ErrValidation)
	}

	now := types.Now(ctx)

	if len(filter.Statuses) == 0 {
		invoices, err := s.InvoiceRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		total, err := s.InvoiceRepo.Count(ctx, filter)
		if err != nil {
			return nil, err
		}

		items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
			return s.toResponse(inv, now)
		})
		response := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
		return &response, nil
	}

	unpaged := *filter
	unpaged.QueryFilter = &types.QueryFilter{
		Offset: lo.ToPtr(0),
		Sort:   filter.Sort,
		Order:  filter.Order,
	}

	invoices, err := s.InvoiceRepo.List(ctx, &unpaged)
	if err != nil {
		return nil, err
	}

	matched := lo.FilterMap(invoices, func(inv *invoice.Invoice, _ int) (*dto.InvoiceResponse, bool) {
		response := s.toResponse(inv, now)
		return response, lo.Contains(filter.Statuses, response.Status)
	})

	page := matched
	if !filter.IsUnlimited() {
		page = lo.Subset(matched, filter.GetOffset(), uint(filter.GetLimit()))
	} else if filter.GetOffset() > 0 {
		page = lo.Drop(matched, filter.GetOffset())
	}

	response := types.NewListResponse(page, len(matched), filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		if inv.IsFullyPaid() || inv.HasPayments() {
			return ierr.NewError("invoice has payments").
				WithHint("An invoice cannot be edited once payments were recorded").
				WithReportableDetails(map[string]any{
					"invoice_id":  inv.ID,
					"status":      inv.Status,
					"paid_amount": inv.PaidAmount,
				}).
				Mark(ierr.ErrInvalidState)
		}

		if req.ClientID != nil && *req.ClientID != inv.ClientID {
			if _, err := s.getClient(ctx, *req.ClientID); err != nil {
				return err
			}
		}

		req.Apply(inv)
		if err := inv.Validate(); err != nil {
			return err
		}
		inv.Touch(ctx)

		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		if req.ReplacesItems() {
			if err := s.InvoiceRepo.ReplaceItems(ctx, inv); err != nil {
				return err
			}
		}

		return s.appendEvent(ctx, inv.ID, types.InvoiceEventUpdated, types.Payload{
			"total":          inv.Total,
			"items_replaced": req.ReplacesItems(),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(inv, types.Now(ctx)), nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		if inv.HasPayments() || inv.PaidAt != nil {
			return ierr.NewError("invoice has payments").
				WithHint("Delete the invoice's payments before deleting it").
				WithReportableDetails(map[string]any{
					"invoice_id":  inv.ID,
					"paid_amount": inv.PaidAmount,
				}).
				Mark(ierr.ErrInvalidState)
		}

		if _, err := s.cancelFollowUps(ctx, inv.ID); err != nil {
			return err
		}
		return s.InvoiceRepo.Delete(ctx, id)
	})
}

// DuplicateInvoice copies the layout of an invoice into a new draft. The due date keeps
// the source invoice's distance from its creation.
func (s *invoiceService) DuplicateInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	source, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := types.Now(ctx)
	dup := &invoice.Invoice{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		PublicID:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		ClientID:  source.ClientID,
		Currency:  source.Currency,
		Status:    types.InvoiceStatusDraft,
		TaxRate:   source.TaxRate,
		DueDate:   now.Add(source.DueDate.Sub(source.CreatedAt)),
		Notes:     source.Notes,
		Tags:      append([]string(nil), source.Tags...),
		Source:    types.InvoiceSourceDuplicate,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	if dup.DueDate.Before(now) {
		dup.DueDate = now
	}
	if source.Discount != nil {
		dup.Discount = &invoice.Discount{Type: source.Discount.Type, Value: source.Discount.Value}
	}
	dup.Items = copyLayoutItems(source.Items)
	for _, g := range source.Groups {
		dup.Groups = append(dup.Groups, &invoice.ItemGroup{
			Name:      g.Name,
			SortOrder: g.SortOrder,
			Items:     copyLayoutItems(g.Items),
		})
	}
	dup.AssignIDs()
	dup.RecomputeTotals()

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.InvoiceRepo.Create(ctx, dup); err != nil {
			return err
		}
		if err := s.appendEvent(ctx, dup.ID, types.InvoiceEventCreated, types.Payload{
			"source":          dup.Source,
			"duplicated_from": source.ID,
			"total":           dup.Total,
		}); err != nil {
			return err
		}
		return s.appendEvent(ctx, source.ID, types.InvoiceEventDuplicated, types.Payload{
			"new_invoice_id": dup.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(dup, now), nil
}

func (s *invoiceService) SendInvoice(ctx context.Context, id string) (*dto.SendInvoiceResponse, error) {
	now := types.Now(ctx)

	var inv *invoice.Invoice
	var scheduled int
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		if inv.Status != types.InvoiceStatusDraft {
			return ierr.NewError("invoice already sent").
				WithHint("Only draft invoices can be sent; use resend to deliver it again").
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
					"status":     inv.Status,
				}).
				Mark(ierr.ErrInvalidState)
		}

		inv.Status = types.InvoiceStatusSent
		inv.SentAt = lo.ToPtr(now)
		inv.Touch(ctx)
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}

		if err := s.appendEvent(ctx, inv.ID, types.InvoiceEventSent, types.Payload{
			"total": inv.Total,
		}); err != nil {
			return err
		}

		scheduled, err = s.scheduleFollowUps(ctx, inv)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("invoice sent",
		"invoice_id", inv.ID,
		"follow_ups_scheduled", scheduled,
	)

	return s.deliver(ctx, inv, true)
}

func (s *invoiceService) RetryDelivery(ctx context.Context, id string) (*dto.SendInvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if inv.Status == types.InvoiceStatusDraft {
		return nil, ierr.NewError("invoice not sent").
			WithHint("Send the invoice before resending it").
			Mark(ierr.ErrInvalidState)
	}
	if inv.IsFullyPaid() {
		return nil, ierr.NewError("invoice already paid").
			WithHint("A paid invoice does not need to be resent").
			Mark(ierr.ErrInvalidState)
	}

	return s.deliver(ctx, inv, false)
}

func (s *invoiceService) deliver(ctx context.Context, inv *invoice.Invoice, stateUpdated bool) (*dto.SendInvoiceResponse, error) {
	response := &dto.SendInvoiceResponse{
		Invoice:      s.toResponse(inv, types.Now(ctx)),
		StateUpdated: stateUpdated,
	}

	delivered, err := s.deliverInvoice(ctx, inv)
	response.Delivered = delivered
	if err != nil {
		response.DeliveryError = err.Error()
		return response, ierr.WithError(err).
			WithHint("The invoice email could not be delivered, try resending it").
			WithReportableDetails(map[string]any{
				"invoice_id":    inv.ID,
				"state_updated": stateUpdated,
			}).
			Mark(ierr.ErrDeliveryFailed)
	}

	return response, nil
}

func (s *invoiceService) GetStatusCounts(ctx context.Context) (*dto.StatusCountsResponse, error) {
	counts, err := s.InvoiceRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &dto.StatusCountsResponse{
		Counts: counts,
		Total:  lo.Sum(lo.Values(counts)),
	}, nil
}

func (s *invoiceService) ListEvents(ctx context.Context, id string) (*dto.ListInvoiceEventsResponse, error) {
	if _, err := s.InvoiceRepo.Get(ctx, id); err != nil {
		return nil, err
	}

	events, err := s.InvoiceEventRepo.ListByInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	return &dto.ListInvoiceEventsResponse{
		Items: lo.Map(events, func(e *invoice.Event, _ int) *dto.InvoiceEventResponse {
			return &dto.InvoiceEventResponse{Event: e}
		}),
	}, nil
}

func (s *invoiceService) MarkOverdueInvoices(ctx context.Context) (*dto.MarkOverdueResponse, error) {
	now := types.Now(ctx)
	ctx = types.WithNow(ctx, now)

	candidates, err := s.InvoiceRepo.ListOverdueCandidates(ctx, now)
	if err != nil {
		return nil, err
	}

	response := &dto.MarkOverdueResponse{InvoiceIDs: []string{}}
	for _, candidate := range candidates {
		if !invoice.IsOverdue(candidate, now) {
			continue
		}

		userCtx := types.SetUserID(ctx, candidate.UserID)
		updated := false
		err := s.DB.WithTx(userCtx, func(ctx context.Context) error {
			inv, err := s.InvoiceRepo.Get(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !invoice.IsOverdue(inv, now) {
				return nil
			}

			previous := inv.Status
			inv.Status = types.InvoiceStatusOverdue
			inv.Touch(ctx)
			if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
				return err
			}
			updated = true

			return s.appendEvent(ctx, inv.ID, types.InvoiceEventStatusChanged, types.Payload{
				"from": previous,
				"to":   types.InvoiceStatusOverdue,
			})
		})
		if err != nil {
			s.Logger.Errorw("failed to mark invoice overdue",
				"invoice_id", candidate.ID,
				"user_id", candidate.UserID,
				"error", err,
			)
			response.Failed++
			continue
		}
		if updated {
			response.InvoiceIDs = append(response.InvoiceIDs, candidate.ID)
			response.Updated++
		}
	}

	s.Logger.Infow("marked overdue invoices",
		"candidates", len(candidates),
		"updated", response.Updated,
		"failed", response.Failed,
	)
	return response, nil
}

func (s *invoiceService) toResponse(inv *invoice.Invoice, now time.Time) *dto.InvoiceResponse {
	return dto.NewInvoiceResponse(invoice.WithDisplayStatus(inv, now))
}

func copyLayoutItems(items []*invoice.LineItem) []*invoice.LineItem {
	return lo.Map(items, func(item *invoice.LineItem, _ int) *invoice.LineItem {
		return &invoice.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			SortOrder:   item.SortOrder,
		}
	})
}
