package invoice

import (
	"sort"
	"time"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Invoice is the aggregate root of the ledger. All money fields are integer minor units.
type Invoice struct {
	ID       string              `json:"id"`
	PublicID string              `json:"public_id"`
	ClientID string              `json:"client_id"`
	Currency string              `json:"currency"`
	Status   types.InvoiceStatus `json:"status"`

	// Items holds the standalone line items; grouped items live under Groups
	Items  []*LineItem  `json:"items,omitempty"`
	Groups []*ItemGroup `json:"groups,omitempty"`

	Discount *Discount      `json:"discount,omitempty"`
	TaxRate  decimal.Decimal `json:"tax_rate"`

	Subtotal       int64 `json:"subtotal"`
	DiscountAmount int64 `json:"discount_amount"`
	TaxAmount      int64 `json:"tax_amount"`
	Total          int64 `json:"total"`
	PaidAmount     int64 `json:"paid_amount"`

	PaymentMethod *types.PaymentMethod `json:"payment_method,omitempty"`
	DueDate       time.Time            `json:"due_date"`
	SentAt        *time.Time           `json:"sent_at,omitempty"`
	ViewedAt      *time.Time           `json:"viewed_at,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`

	Notes              string              `json:"notes,omitempty"`
	Tags               []string            `json:"tags,omitempty"`
	Source             types.InvoiceSource `json:"source"`
	RecurringInvoiceID *string             `json:"recurring_invoice_id,omitempty"`

	types.BaseModel
}

// LineItem is a single priced row. Amount is always round(Quantity x UnitPrice).
type LineItem struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	GroupID     *string         `json:"group_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   int64           `json:"unit_price"`
	Amount      int64           `json:"amount"`
	SortOrder   int             `json:"sort_order"`
}

// ItemGroup is a named, ordered bucket of line items with no pricing of its own
type ItemGroup struct {
	ID        string      `json:"id"`
	InvoiceID string      `json:"invoice_id"`
	Name      string      `json:"name"`
	SortOrder int         `json:"sort_order"`
	Items     []*LineItem `json:"items,omitempty"`
}

// Discount is an optional invoice level reduction. For percentage discounts Value is
// the percent (0-100); for fixed discounts Value is an amount in minor units.
type Discount struct {
	Type  types.DiscountType `json:"type"`
	Value decimal.Decimal    `json:"value"`
}

func (d *Discount) Validate() error {
	if d == nil {
		return nil
	}
	if err := d.Type.Validate(); err != nil {
		return err
	}
	if d.Value.IsNegative() {
		return ierr.NewError("discount value must be non negative").
			WithHint("Discount value cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if d.Type == types.DiscountTypePercentage && d.Value.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("percentage discount above 100").
			WithHint("Percentage discount must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"value": d.Value.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (i *LineItem) Validate() error {
	if i.Quantity.LessThan(decimal.NewFromInt(1)) {
		return ierr.NewError("line item quantity must be at least 1").
			WithHint("Quantity must be at least 1").
			WithReportableDetails(map[string]any{
				"description": i.Description,
				"quantity":    i.Quantity.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if i.UnitPrice < 0 {
		return ierr.NewError("line item unit price must be non negative").
			WithHint("Unit price cannot be negative").
			WithReportableDetails(map[string]any{
				"description": i.Description,
				"unit_price":  i.UnitPrice,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AllItems flattens standalone and grouped items, standalone first, then groups in order
func (inv *Invoice) AllItems() []*LineItem {
	items := make([]*LineItem, 0, len(inv.Items))
	items = append(items, sortedItems(inv.Items)...)

	groups := append([]*ItemGroup(nil), inv.Groups...)
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].SortOrder < groups[b].SortOrder
	})
	for _, g := range groups {
		items = append(items, sortedItems(g.Items)...)
	}
	return items
}

// RecomputeTotals refreshes every line amount and the invoice totals from the items
func (inv *Invoice) RecomputeTotals() {
	all := inv.AllItems()
	for _, item := range all {
		item.Amount = LineAmount(item.Quantity, item.UnitPrice)
	}

	totals := ComputeTotals(lo.Map(all, func(item *LineItem, _ int) LineItemInput {
		return LineItemInput{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}), inv.Discount, inv.TaxRate)

	inv.Subtotal = totals.Subtotal
	inv.DiscountAmount = totals.DiscountAmount
	inv.TaxAmount = totals.TaxAmount
	inv.Total = totals.Total
}

// RemainingAmount is what is still owed
func (inv *Invoice) RemainingAmount() int64 {
	return lo.Max([]int64{0, inv.Total - inv.PaidAmount})
}

// IsFullyPaid reports whether nothing is owed anymore. A zero-total invoice is only
// settled once it has been marked paid.
func (inv *Invoice) IsFullyPaid() bool {
	return inv.PaidAt != nil || (inv.Total > 0 && inv.PaidAmount >= inv.Total)
}

func (inv *Invoice) HasPayments() bool {
	return inv.PaidAmount > 0
}

// AssignIDs stamps ids and parent references onto groups and items that do not have one yet
func (inv *Invoice) AssignIDs() {
	for _, item := range inv.Items {
		if item.ID == "" {
			item.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_ITEM)
		}
		item.InvoiceID = inv.ID
		item.GroupID = nil
	}
	for _, g := range inv.Groups {
		if g.ID == "" {
			g.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ITEM_GROUP)
		}
		g.InvoiceID = inv.ID
		for _, item := range g.Items {
			if item.ID == "" {
				item.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_ITEM)
			}
			item.InvoiceID = inv.ID
			item.GroupID = lo.ToPtr(g.ID)
		}
	}
}

func (inv *Invoice) Validate() error {
	if inv.ClientID == "" {
		return ierr.NewError("client_id is required").
			WithHint("Invoice must reference a client").
			Mark(ierr.ErrValidation)
	}
	if len(inv.Currency) != 3 {
		return ierr.NewError("invalid currency").
			WithHint("Currency must be a three letter ISO code").
			WithReportableDetails(map[string]any{
				"currency": inv.Currency,
			}).
			Mark(ierr.ErrValidation)
	}
	if inv.DueDate.IsZero() {
		return ierr.NewError("due_date is required").
			WithHint("Invoice must have a due date").
			Mark(ierr.ErrValidation)
	}
	if inv.TaxRate.IsNegative() || inv.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("tax rate out of range").
			WithHint("Tax rate must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"tax_rate": inv.TaxRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := inv.Discount.Validate(); err != nil {
		return err
	}
	for _, g := range inv.Groups {
		if g.Name == "" {
			return ierr.NewError("item group name is required").
				WithHint("Every item group needs a name").
				Mark(ierr.ErrValidation)
		}
	}
	for _, item := range inv.AllItems() {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	if inv.PaidAmount < 0 || inv.PaidAmount > inv.Total {
		return ierr.NewError("paid amount out of range").
			WithHint("Paid amount must be between zero and the invoice total").
			WithReportableDetails(map[string]any{
				"paid_amount": inv.PaidAmount,
				"total":       inv.Total,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func sortedItems(items []*LineItem) []*LineItem {
	out := append([]*LineItem(nil), items...)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].SortOrder < out[b].SortOrder
	})
	return out
}
