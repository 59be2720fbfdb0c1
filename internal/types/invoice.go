package types

import (
	"time"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the state of an invoice in the ledger state machine
type InvoiceStatus string

const (
	// InvoiceStatusDraft indicates invoice is not yet sent; fully editable and not payable
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	// InvoiceStatusSent indicates invoice was delivered to the client
	InvoiceStatusSent InvoiceStatus = "SENT"
	// InvoiceStatusViewed indicates the client opened the invoice
	InvoiceStatusViewed InvoiceStatus = "VIEWED"
	// InvoiceStatusPartiallyPaid indicates 0 < paid amount < total
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	// InvoiceStatusPaid indicates the invoice is settled
	InvoiceStatusPaid InvoiceStatus = "PAID"
	// InvoiceStatusOverdue indicates the due date passed without full payment
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusViewed,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
}

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	if !lo.Contains(AllInvoiceStatuses, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": AllInvoiceStatuses,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DiscountType is how an invoice level discount is applied
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

func (t DiscountType) Validate() error {
	allowed := []DiscountType{
		DiscountTypePercentage,
		DiscountTypeFixed,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid discount type").
			WithHint("Discount type must be percentage or fixed").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceEventType tags entries of the append-only invoice audit log
type InvoiceEventType string

const (
	InvoiceEventCreated         InvoiceEventType = "created"
	InvoiceEventUpdated         InvoiceEventType = "updated"
	InvoiceEventDuplicated      InvoiceEventType = "duplicated"
	InvoiceEventSent            InvoiceEventType = "sent"
	InvoiceEventViewed          InvoiceEventType = "viewed"
	InvoiceEventPaymentRecorded InvoiceEventType = "payment_recorded"
	InvoiceEventPaymentDeleted  InvoiceEventType = "payment_deleted"
	InvoiceEventPaidManual      InvoiceEventType = "paid_manual"
	InvoiceEventPaidProcessor   InvoiceEventType = "paid_processor"
	InvoiceEventReminderSent    InvoiceEventType = "reminder_sent"
	InvoiceEventStatusChanged   InvoiceEventType = "status_changed"
	// the processor captured an amount other than the credited balance
	InvoiceEventPaymentMismatch InvoiceEventType = "payment_mismatch"
)

// InvoiceSource records how an invoice came into existence
type InvoiceSource string

const (
	InvoiceSourceManual    InvoiceSource = "manual"
	InvoiceSourceDuplicate InvoiceSource = "duplicate"
	InvoiceSourceRecurring InvoiceSource = "recurring"
)

// InvoiceFilter represents the filter options for listing invoices
type InvoiceFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceIDs []string `json:"invoice_ids,omitempty" form:"invoice_ids"`
	ClientID   string   `json:"client_id,omitempty" form:"client_id"`
	// Statuses filters on the derived display status, so OVERDUE matches invoices
	// whose due date passed even if the overdue job has not persisted it yet
	Statuses []InvoiceStatus `json:"statuses,omitempty" form:"statuses"`
	Tag      string          `json:"tag,omitempty" form:"tag"`
	Search   string          `json:"search,omitempty" form:"search"`
	DueBefore *time.Time     `json:"due_before,omitempty" form:"due_before" time_format:"2006-01-02T15:04:05Z07:00"`
}

func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f InvoiceFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *InvoiceFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *InvoiceFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetSort implements BaseFilter interface
func (f *InvoiceFilter) GetSort() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetSort()
	}
	return f.QueryFilter.GetSort()
}

// GetOrder implements BaseFilter interface
func (f *InvoiceFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOrder()
	}
	return f.QueryFilter.GetOrder()
}

// IsUnlimited implements BaseFilter interface
func (f *InvoiceFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
