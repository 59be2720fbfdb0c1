package types

import (
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/samber/lo"
)

// PaymentMethod is how money reached the invoice
type PaymentMethod string

const (
	// PaymentMethodStripe is settled by the payment processor checkout
	PaymentMethodStripe PaymentMethod = "stripe"
	// PaymentMethodManual is a bulk "mark as paid" by the invoice owner
	PaymentMethodManual PaymentMethod = "manual"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Validate() error {
	allowed := []PaymentMethod{
		PaymentMethodStripe,
		PaymentMethodManual,
		PaymentMethodBankTransfer,
		PaymentMethodCash,
		PaymentMethodCheck,
		PaymentMethodOther,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid payment method").
			WithHint("Please provide a valid payment method").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
