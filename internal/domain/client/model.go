package client

import (
	"net/mail"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
)

// Client is the recipient of invoices
type Client struct {
	// ID is the unique identifier for the client
	ID string `db:"id" json:"id"`

	// Name is the contact name
	Name string `db:"name" json:"name"`

	// Email receives invoices and reminders
	Email string `db:"email" json:"email"`

	Company string `db:"company" json:"company,omitempty"`

	// Address is a free-form postal address
	Address string `db:"address" json:"address,omitempty"`

	Phone string `db:"phone" json:"phone,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	types.BaseModel
}

func (c *Client) Validate() error {
	if c.Name == "" {
		return ierr.NewError("client name is required").
			WithHint("Please provide a client name").
			Mark(ierr.ErrValidation)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return ierr.WithError(err).
			WithHint("Please provide a valid client email").
			WithReportableDetails(map[string]any{
				"email": c.Email,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DisplayName prefers the company when one is set
func (c *Client) DisplayName() string {
	if c.Company != "" {
		return c.Company
	}
	return c.Name
}
