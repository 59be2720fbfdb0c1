package dto

import (
	"context"
	"strings"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/invoicekit/invoicekit/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one priced row. UnitPrice is in minor units.
type LineItemRequest struct {
	Description string          `json:"description" validate:"required,max=1000"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string"`
	UnitPrice   int64           `json:"unit_price" validate:"min=0"`
	SortOrder   int             `json:"sort_order"`
}

type ItemGroupRequest struct {
	Name      string             `json:"name" validate:"required,max=255"`
	SortOrder int                `json:"sort_order"`
	Items     []*LineItemRequest `json:"items" validate:"dive"`
}

type DiscountRequest struct {
	Type  types.DiscountType `json:"type" validate:"required"`
	Value decimal.Decimal    `json:"value" swaggertype:"string"`
}

type CreateInvoiceRequest struct {
	ClientID string              `json:"client_id" validate:"required"`
	Currency string              `json:"currency" validate:"required,len=3"`
	DueDate  time.Time           `json:"due_date" validate:"required"`
	Items    []*LineItemRequest  `json:"items" validate:"dive"`
	Groups   []*ItemGroupRequest `json:"groups" validate:"dive"`
	Discount *DiscountRequest    `json:"discount,omitempty"`
	// TaxRate is a percentage between 0 and 100
	TaxRate decimal.Decimal `json:"tax_rate" swaggertype:"string"`
	Notes   string          `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Tags    []string        `json:"tags,omitempty"`
}

// UpdateInvoiceRequest replaces the items and groups when either list is sent
type UpdateInvoiceRequest struct {
	ClientID *string             `json:"client_id,omitempty"`
	Currency *string             `json:"currency,omitempty" validate:"omitempty,len=3"`
	DueDate  *time.Time          `json:"due_date,omitempty"`
	Items    []*LineItemRequest  `json:"items,omitempty" validate:"omitempty,dive"`
	Groups   []*ItemGroupRequest `json:"groups,omitempty" validate:"omitempty,dive"`
	Discount *DiscountRequest    `json:"discount,omitempty"`
	// RemoveDiscount clears an existing discount
	RemoveDiscount bool             `json:"remove_discount,omitempty"`
	TaxRate        *decimal.Decimal `json:"tax_rate,omitempty" swaggertype:"string"`
	Notes          *string          `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Tags           []string         `json:"tags,omitempty"`
}

func (r *CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if len(r.Items) == 0 && len(lo.FlatMap(r.Groups, func(g *ItemGroupRequest, _ int) []*LineItemRequest {
		return g.Items
	})) == 0 {
		return ierr.NewError("invoice has no items").
			WithHint("Add at least one line item").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToInvoice builds a draft invoice. Totals are computed from the items.
func (r *CreateInvoiceRequest) ToInvoice(ctx context.Context) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		PublicID:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		ClientID:  r.ClientID,
		Currency:  strings.ToUpper(r.Currency),
		Status:    types.InvoiceStatusDraft,
		Items:     toLineItems(r.Items),
		Groups:    toItemGroups(r.Groups),
		Discount:  r.Discount.toDiscount(),
		TaxRate:   r.TaxRate,
		DueDate:   r.DueDate.UTC(),
		Notes:     r.Notes,
		Tags:      r.Tags,
		Source:    types.InvoiceSourceManual,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	inv.AssignIDs()
	inv.RecomputeTotals()
	return inv
}

func (r *UpdateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Discount != nil && r.RemoveDiscount {
		return ierr.NewError("discount and remove_discount are exclusive").
			WithHint("Either set a discount or remove it").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ReplacesItems reports whether the request carries a new item layout
func (r *UpdateInvoiceRequest) ReplacesItems() bool {
	return r.Items != nil || r.Groups != nil
}

// Apply copies the set fields onto inv and recomputes its totals
func (r *UpdateInvoiceRequest) Apply(inv *invoice.Invoice) {
	if r.ClientID != nil {
		inv.ClientID = *r.ClientID
	}
	if r.Currency != nil {
		inv.Currency = strings.ToUpper(*r.Currency)
	}
	if r.DueDate != nil {
		inv.DueDate = r.DueDate.UTC()
	}
	if r.ReplacesItems() {
		inv.Items = toLineItems(r.Items)
		inv.Groups = toItemGroups(r.Groups)
		inv.AssignIDs()
	}
	if r.Discount != nil {
		inv.Discount = r.Discount.toDiscount()
	}
	if r.RemoveDiscount {
		inv.Discount = nil
	}
	if r.TaxRate != nil {
		inv.TaxRate = *r.TaxRate
	}
	if r.Notes != nil {
		inv.Notes = *r.Notes
	}
	if r.Tags != nil {
		inv.Tags = r.Tags
	}
	inv.RecomputeTotals()
}

func (d *DiscountRequest) toDiscount() *invoice.Discount {
	if d == nil {
		return nil
	}
	return &invoice.Discount{Type: d.Type, Value: d.Value}
}

func toLineItems(items []*LineItemRequest) []*invoice.LineItem {
	return lo.Map(items, func(item *LineItemRequest, i int) *invoice.LineItem {
		sortOrder := item.SortOrder
		if sortOrder == 0 {
			sortOrder = i
		}
		return &invoice.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			SortOrder:   sortOrder,
		}
	})
}

func toItemGroups(groups []*ItemGroupRequest) []*invoice.ItemGroup {
	return lo.Map(groups, func(g *ItemGroupRequest, i int) *invoice.ItemGroup {
		sortOrder := g.SortOrder
		if sortOrder == 0 {
			sortOrder = i
		}
		return &invoice.ItemGroup{
			Name:      g.Name,
			SortOrder: sortOrder,
			Items:     toLineItems(g.Items),
		}
	})
}

// InvoiceResponse carries the invoice with its display status already derived
type InvoiceResponse struct {
	*invoice.Invoice
	RemainingAmount int64              `json:"remaining_amount"`
	Client          *ClientResponse    `json:"client,omitempty"`
	Payments        []*PaymentResponse `json:"payments,omitempty"`
}

// ListInvoicesResponse represents the response for listing invoices
type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		Invoice:         inv,
		RemainingAmount: inv.RemainingAmount(),
	}
}

// SendInvoiceResponse reports the state change and the delivery separately, so a
// failed email can be retried without repeating the transition
type SendInvoiceResponse struct {
	Invoice       *InvoiceResponse `json:"invoice"`
	StateUpdated  bool             `json:"state_updated"`
	Delivered     bool             `json:"delivered"`
	DeliveryError string           `json:"delivery_error,omitempty"`
}

// StatusCountsResponse counts invoices per stored status
type StatusCountsResponse struct {
	Counts map[types.InvoiceStatus]int `json:"counts"`
	Total  int                         `json:"total"`
}

type InvoiceEventResponse struct {
	*invoice.Event
}

type ListInvoiceEventsResponse struct {
	Items []*InvoiceEventResponse `json:"items"`
}

// PublicInvoiceResponse is what an unauthenticated payer sees
type PublicInvoiceResponse struct {
	PublicID        string              `json:"public_id"`
	Status          types.InvoiceStatus `json:"status"`
	Currency        string              `json:"currency"`
	Items           []*invoice.LineItem  `json:"items,omitempty"`
	Groups          []*invoice.ItemGroup `json:"groups,omitempty"`
	Subtotal        int64               `json:"subtotal"`
	DiscountAmount  int64               `json:"discount_amount"`
	TaxAmount       int64               `json:"tax_amount"`
	Total           int64               `json:"total"`
	PaidAmount      int64               `json:"paid_amount"`
	RemainingAmount int64               `json:"remaining_amount"`
	DueDate         time.Time           `json:"due_date"`
	Notes           string              `json:"notes,omitempty"`
	ClientName      string              `json:"client_name,omitempty"`
	CanPayOnline    bool                `json:"can_pay_online"`
}

func NewPublicInvoiceResponse(inv *invoice.Invoice) *PublicInvoiceResponse {
	return &PublicInvoiceResponse{
		PublicID:        inv.PublicID,
		Status:          inv.Status,
		Currency:        inv.Currency,
		Items:           inv.Items,
		Groups:          inv.Groups,
		Subtotal:        inv.Subtotal,
		DiscountAmount:  inv.DiscountAmount,
		TaxAmount:       inv.TaxAmount,
		Total:           inv.Total,
		PaidAmount:      inv.PaidAmount,
		RemainingAmount: inv.RemainingAmount(),
		DueDate:         inv.DueDate,
		Notes:           inv.Notes,
	}
}
