package types

import (
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/samber/lo"
)

// RecurringFrequency is the cadence on which a recurring template materializes invoices
type RecurringFrequency string

const (
	RecurringFrequencyWeekly    RecurringFrequency = "weekly"
	RecurringFrequencyBiweekly  RecurringFrequency = "biweekly"
	RecurringFrequencyMonthly   RecurringFrequency = "monthly"
	RecurringFrequencyQuarterly RecurringFrequency = "quarterly"
	RecurringFrequencyYearly    RecurringFrequency = "yearly"
)

func (f RecurringFrequency) String() string {
	return string(f)
}

func (f RecurringFrequency) Validate() error {
	allowed := []RecurringFrequency{
		RecurringFrequencyWeekly,
		RecurringFrequencyBiweekly,
		RecurringFrequencyMonthly,
		RecurringFrequencyQuarterly,
		RecurringFrequencyYearly,
	}
	if !lo.Contains(allowed, f) {
		return ierr.NewError("invalid recurring frequency").
			WithHint("Please provide a valid frequency").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RecurringStatus is the lifecycle state of a recurring template
type RecurringStatus string

const (
	RecurringStatusActive   RecurringStatus = "active"
	RecurringStatusPaused   RecurringStatus = "paused"
	RecurringStatusCanceled RecurringStatus = "canceled"
)

func (s RecurringStatus) Validate() error {
	allowed := []RecurringStatus{
		RecurringStatusActive,
		RecurringStatusPaused,
		RecurringStatusCanceled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid recurring status").
			WithHint("Please provide a valid recurring status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RecurringInvoiceFilter represents the filter options for listing recurring templates
type RecurringInvoiceFilter struct {
	*QueryFilter

	ClientID string            `json:"client_id,omitempty" form:"client_id"`
	Statuses []RecurringStatus `json:"statuses,omitempty" form:"statuses"`
}

func NewRecurringInvoiceFilter() *RecurringInvoiceFilter {
	return &RecurringInvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func (f RecurringInvoiceFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
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

func (f *RecurringInvoiceFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

func (f *RecurringInvoiceFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

func (f *RecurringInvoiceFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
