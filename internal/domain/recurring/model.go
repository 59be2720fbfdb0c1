package recurring

import (
	"sort"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// RecurringInvoice is a template that stamps out a new invoice on every due cycle
type RecurringInvoice struct {
	ID        string                   `json:"id"`
	ClientID  string                   `json:"client_id"`
	Currency  string                   `json:"currency"`
	Frequency types.RecurringFrequency `json:"frequency"`
	Status    types.RecurringStatus    `json:"status"`

	NextRunAt time.Time  `json:"next_run_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// DueDays is added to the run time to get the due date of each generated invoice
	DueDays  int  `json:"due_days"`
	AutoSend bool `json:"auto_send"`

	Discount *invoice.Discount `json:"discount,omitempty"`
	TaxRate  decimal.Decimal   `json:"tax_rate"`
	Notes    string            `json:"notes,omitempty"`
	Tags     []string          `json:"tags,omitempty"`

	Items  []*Item  `json:"items,omitempty"`
	Groups []*Group `json:"groups,omitempty"`

	types.BaseModel
}

// Item is a template line item
type Item struct {
	ID                 string          `json:"id"`
	RecurringInvoiceID string          `json:"recurring_invoice_id"`
	GroupID            *string         `json:"group_id,omitempty"`
	Description        string          `json:"description"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          int64           `json:"unit_price"`
	SortOrder          int             `json:"sort_order"`
}

// Group is a template item group
type Group struct {
	ID                 string  `json:"id"`
	RecurringInvoiceID string  `json:"recurring_invoice_id"`
	Name               string  `json:"name"`
	SortOrder          int     `json:"sort_order"`
	Items              []*Item `json:"items,omitempty"`
}

// NextRunDate advances current by one period of the frequency using calendar
// arithmetic, so months and years keep their real lengths.
func NextRunDate(current time.Time, frequency types.RecurringFrequency) time.Time {
	switch frequency {
	case types.RecurringFrequencyWeekly:
		return current.AddDate(0, 0, 7)
	case types.RecurringFrequencyBiweekly:
		return current.AddDate(0, 0, 14)
	case types.RecurringFrequencyMonthly:
		return current.AddDate(0, 1, 0)
	case types.RecurringFrequencyQuarterly:
		return current.AddDate(0, 3, 0)
	case types.RecurringFrequencyYearly:
		return current.AddDate(1, 0, 0)
	default:
		return current.AddDate(0, 1, 0)
	}
}

// IsDue reports whether the template should materialize an invoice at now
func (r *RecurringInvoice) IsDue(now time.Time) bool {
	if r.Status != types.RecurringStatusActive {
		return false
	}
	if r.NextRunAt.After(now) {
		return false
	}
	return r.EndDate == nil || r.EndDate.After(now)
}

// Advance records a run at now and moves NextRunAt forward by one period from its
// stored value
func (r *RecurringInvoice) Advance(now time.Time) {
	r.LastRunAt = lo.ToPtr(now)
	r.NextRunAt = NextRunDate(r.NextRunAt, r.Frequency)
}

// AssignIDs stamps ids and parent references onto groups and items that do not have one yet
func (r *RecurringInvoice) AssignIDs() {
	for _, item := range r.Items {
		if item.ID == "" {
			item.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_ITEM)
		}
		item.RecurringInvoiceID = r.ID
		item.GroupID = nil
	}
	for _, g := range r.Groups {
		if g.ID == "" {
			g.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ITEM_GROUP)
		}
		g.RecurringInvoiceID = r.ID
		for _, item := range g.Items {
			if item.ID == "" {
				item.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_ITEM)
			}
			item.RecurringInvoiceID = r.ID
			item.GroupID = lo.ToPtr(g.ID)
		}
	}
}

// ToInvoice stamps out a draft invoice from the template. Standalone items and
// groups keep their ordering; ids are fresh so the template is never shared.
func (r *RecurringInvoice) ToInvoice(now time.Time) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		PublicID:           types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		ClientID:           r.ClientID,
		Currency:           r.Currency,
		Status:             types.InvoiceStatusDraft,
		TaxRate:            r.TaxRate,
		DueDate:            now.AddDate(0, 0, r.DueDays),
		Notes:              r.Notes,
		Tags:               append([]string(nil), r.Tags...),
		Source:             types.InvoiceSourceRecurring,
		RecurringInvoiceID: lo.ToPtr(r.ID),
	}
	if r.Discount != nil {
		inv.Discount = &invoice.Discount{Type: r.Discount.Type, Value: r.Discount.Value}
	}

	for _, item := range sortItems(r.Items) {
		inv.Items = append(inv.Items, item.toLineItem())
	}

	groups := append([]*Group(nil), r.Groups...)
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].SortOrder < groups[b].SortOrder
	})
	for _, g := range groups {
		group := &invoice.ItemGroup{Name: g.Name, SortOrder: g.SortOrder}
		for _, item := range sortItems(g.Items) {
			group.Items = append(group.Items, item.toLineItem())
		}
		inv.Groups = append(inv.Groups, group)
	}

	inv.AssignIDs()
	inv.RecomputeTotals()
	return inv
}

// ValidateSchedule checks that the template can still run. It only applies when the
// schedule is set or edited; a finished template advances past its end date.
func (r *RecurringInvoice) ValidateSchedule() error {
	if r.EndDate != nil && !r.EndDate.After(r.NextRunAt) {
		return ierr.NewError("end_date must be after next_run_at").
			WithHint("End date must be after the next run date").
			WithReportableDetails(map[string]any{
				"next_run_at": r.NextRunAt,
				"end_date":    r.EndDate,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *RecurringInvoice) Validate() error {
	if r.ClientID == "" {
		return ierr.NewError("client_id is required").
			WithHint("Recurring invoice must reference a client").
			Mark(ierr.ErrValidation)
	}
	if len(r.Currency) != 3 {
		return ierr.NewError("invalid currency").
			WithHint("Currency must be a three letter ISO code").
			Mark(ierr.ErrValidation)
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if err := r.Status.Validate(); err != nil {
		return err
	}
	if r.NextRunAt.IsZero() {
		return ierr.NewError("next_run_at is required").
			WithHint("Recurring invoice needs a first run date").
			Mark(ierr.ErrValidation)
	}
	if r.DueDays < 0 {
		return ierr.NewError("due_days must be non negative").
			WithHint("Due days cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("tax rate out of range").
			WithHint("Tax rate must be between 0 and 100").
			Mark(ierr.ErrValidation)
	}
	if err := r.Discount.Validate(); err != nil {
		return err
	}
	all := append([]*Item(nil), r.Items...)
	for _, g := range r.Groups {
		all = append(all, g.Items...)
	}
	if len(all) == 0 {
		return ierr.NewError("recurring invoice has no items").
			WithHint("Add at least one line item").
			Mark(ierr.ErrValidation)
	}
	for _, item := range all {
		if err := item.toLineItem().Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (i *Item) toLineItem() *invoice.LineItem {
	return &invoice.LineItem{
		Description: i.Description,
		Quantity:    i.Quantity,
		UnitPrice:   i.UnitPrice,
		Amount:      invoice.LineAmount(i.Quantity, i.UnitPrice),
		SortOrder:   i.SortOrder,
	}
}

func sortItems(items []*Item) []*Item {
	out := append([]*Item(nil), items...)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].SortOrder < out[b].SortOrder
	})
	return out
}
