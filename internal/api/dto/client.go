package dto

import (
	"context"

	"github.com/invoicekit/invoicekit/internal/domain/client"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/invoicekit/invoicekit/internal/validator"
)

type CreateClientRequest struct {
	Name     string         `json:"name" validate:"required,max=255"`
	Email    string         `json:"email" validate:"required,email"`
	Company  string         `json:"company,omitempty" validate:"omitempty,max=255"`
	Address  string         `json:"address,omitempty" validate:"omitempty,max=1000"`
	Phone    string         `json:"phone,omitempty" validate:"omitempty,max=50"`
	Metadata types.Metadata `json:"metadata,omitempty"`
}

type UpdateClientRequest struct {
	Name     *string        `json:"name,omitempty" validate:"omitempty,max=255"`
	Email    *string        `json:"email,omitempty" validate:"omitempty,email"`
	Company  *string        `json:"company,omitempty" validate:"omitempty,max=255"`
	Address  *string        `json:"address,omitempty" validate:"omitempty,max=1000"`
	Phone    *string        `json:"phone,omitempty" validate:"omitempty,max=50"`
	Metadata types.Metadata `json:"metadata,omitempty"`
}

type ClientResponse struct {
	*client.Client
}

// ListClientsResponse represents the response for listing clients
type ListClientsResponse = types.ListResponse[*ClientResponse]

func (r *CreateClientRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *CreateClientRequest) ToClient(ctx context.Context) *client.Client {
	return &client.Client{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CLIENT),
		Name:      r.Name,
		Email:     r.Email,
		Company:   r.Company,
		Address:   r.Address,
		Phone:     r.Phone,
		Metadata:  r.Metadata,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}

func (r *UpdateClientRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// Apply copies the set fields onto c
func (r *UpdateClientRequest) Apply(c *client.Client) {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.Email != nil {
		c.Email = *r.Email
	}
	if r.Company != nil {
		c.Company = *r.Company
	}
	if r.Address != nil {
		c.Address = *r.Address
	}
	if r.Phone != nil {
		c.Phone = *r.Phone
	}
	if r.Metadata != nil {
		c.Metadata = r.Metadata
	}
}
