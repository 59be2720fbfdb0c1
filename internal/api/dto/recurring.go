package dto

import (
	"context"
	"strings"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/domain/recurring"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/invoicekit/invoicekit/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type CreateRecurringInvoiceRequest struct {
	ClientID  string                   `json:"client_id" validate:"required"`
	Currency  string                   `json:"currency" validate:"required,len=3"`
	Frequency types.RecurringFrequency `json:"frequency" validate:"required"`
	// NextRunAt is the first run; defaults to now
	NextRunAt *time.Time          `json:"next_run_at,omitempty"`
	EndDate   *time.Time          `json:"end_date,omitempty"`
	DueDays   int                 `json:"due_days" validate:"min=0,max=365"`
	AutoSend  bool                `json:"auto_send"`
	Discount  *DiscountRequest    `json:"discount,omitempty"`
	TaxRate   decimal.Decimal     `json:"tax_rate" swaggertype:"string"`
	Notes     string              `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Tags      []string            `json:"tags,omitempty"`
	Items     []*LineItemRequest  `json:"items" validate:"dive"`
	Groups    []*ItemGroupRequest `json:"groups" validate:"dive"`
}

type UpdateRecurringInvoiceRequest struct {
	Frequency      *types.RecurringFrequency `json:"frequency,omitempty"`
	NextRunAt      *time.Time                `json:"next_run_at,omitempty"`
	EndDate        *time.Time                `json:"end_date,omitempty"`
	RemoveEndDate  bool                      `json:"remove_end_date,omitempty"`
	DueDays        *int                      `json:"due_days,omitempty" validate:"omitempty,min=0,max=365"`
	AutoSend       *bool                     `json:"auto_send,omitempty"`
	Discount       *DiscountRequest          `json:"discount,omitempty"`
	RemoveDiscount bool                      `json:"remove_discount,omitempty"`
	TaxRate        *decimal.Decimal          `json:"tax_rate,omitempty" swaggertype:"string"`
	Notes          *string                   `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Tags           []string                  `json:"tags,omitempty"`
	Items          []*LineItemRequest        `json:"items,omitempty" validate:"omitempty,dive"`
	Groups         []*ItemGroupRequest       `json:"groups,omitempty" validate:"omitempty,dive"`
}

func (r *CreateRecurringInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateRecurringInvoiceRequest) ToRecurringInvoice(ctx context.Context) *recurring.RecurringInvoice {
	nextRunAt := types.Now(ctx)
	if r.NextRunAt != nil {
		nextRunAt = r.NextRunAt.UTC()
	}
	ri := &recurring.RecurringInvoice{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RECURRING_INVOICE),
		ClientID:  r.ClientID,
		Currency:  strings.ToUpper(r.Currency),
		Frequency: r.Frequency,
		Status:    types.RecurringStatusActive,
		NextRunAt: nextRunAt,
		EndDate:   r.EndDate,
		DueDays:   r.DueDays,
		AutoSend:  r.AutoSend,
		Discount:  r.Discount.toDiscount(),
		TaxRate:   r.TaxRate,
		Notes:     r.Notes,
		Tags:      r.Tags,
		Items:     toTemplateItems(r.Items),
		Groups:    toTemplateGroups(r.Groups),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	ri.AssignIDs()
	return ri
}

func (r *UpdateRecurringInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ChangesSchedule reports whether the run date or the end date is edited
func (r *UpdateRecurringInvoiceRequest) ChangesSchedule() bool {
	return r.NextRunAt != nil || r.EndDate != nil
}

func (r *UpdateRecurringInvoiceRequest) ReplacesItems() bool {
	return r.Items != nil || r.Groups != nil
}

// Apply copies the set fields onto ri
func (r *UpdateRecurringInvoiceRequest) Apply(ri *recurring.RecurringInvoice) {
	if r.Frequency != nil {
		ri.Frequency = *r.Frequency
	}
	if r.NextRunAt != nil {
		ri.NextRunAt = r.NextRunAt.UTC()
	}
	if r.EndDate != nil {
		ri.EndDate = r.EndDate
	}
	if r.RemoveEndDate {
		ri.EndDate = nil
	}
	if r.DueDays != nil {
		ri.DueDays = *r.DueDays
	}
	if r.AutoSend != nil {
		ri.AutoSend = *r.AutoSend
	}
	if r.Discount != nil {
		ri.Discount = r.Discount.toDiscount()
	}
	if r.RemoveDiscount {
		ri.Discount = nil
	}
	if r.TaxRate != nil {
		ri.TaxRate = *r.TaxRate
	}
	if r.Notes != nil {
		ri.Notes = *r.Notes
	}
	if r.Tags != nil {
		ri.Tags = r.Tags
	}
	if r.ReplacesItems() {
		ri.Items = toTemplateItems(r.Items)
		ri.Groups = toTemplateGroups(r.Groups)
		ri.AssignIDs()
	}
}

func toTemplateItems(items []*LineItemRequest) []*recurring.Item {
	return lo.Map(toLineItems(items), func(item *invoice.LineItem, _ int) *recurring.Item {
		return &recurring.Item{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			SortOrder:   item.SortOrder,
		}
	})
}

func toTemplateGroups(groups []*ItemGroupRequest) []*recurring.Group {
	return lo.Map(groups, func(g *ItemGroupRequest, i int) *recurring.Group {
		sortOrder := g.SortOrder
		if sortOrder == 0 {
			sortOrder = i
		}
		return &recurring.Group{
			Name:      g.Name,
			SortOrder: sortOrder,
			Items:     toTemplateItems(g.Items),
		}
	})
}

type RecurringInvoiceResponse struct {
	*recurring.RecurringInvoice
}

// ListRecurringInvoicesResponse represents the response for listing templates
type ListRecurringInvoicesResponse = types.ListResponse[*RecurringInvoiceResponse]

// RecurringRunResult is the outcome of one template in a batch run
type RecurringRunResult struct {
	RecurringInvoiceID string     `json:"recurring_invoice_id"`
	UserID             string     `json:"user_id"`
	Success            bool       `json:"success"`
	InvoiceID          string     `json:"invoice_id,omitempty"`
	Delivered          bool       `json:"delivered,omitempty"`
	NextRunAt          *time.Time `json:"next_run_at,omitempty"`
	Error              string     `json:"error,omitempty"`
}

type ProcessRecurringResponse struct {
	Results   []*RecurringRunResult `json:"results"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
}
