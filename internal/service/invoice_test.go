package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/invoicekit/invoicekit/internal/api/dto"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	ledgerSuite
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) TestCreateInvoice() {
	resp := s.createDraft()

	s.Equal(types.InvoiceStatusDraft, resp.Status)
	s.Equal(types.InvoiceSourceManual, resp.Source)
	s.Equal("USD", resp.Currency)
	s.Equal(int64(10000), resp.Subtotal)
	s.Equal(int64(1000), resp.TaxAmount)
	s.Equal(int64(11000), resp.Total)
	s.Equal(int64(11000), resp.RemainingAmount)
	s.NotEmpty(resp.PublicID)
	s.Equal([]types.InvoiceEventType{types.InvoiceEventCreated}, s.eventTypes(resp.ID))
}

func (s *InvoiceServiceSuite) TestCreateInvoice_Validation() {
	tests := []struct {
		name   string
		mutate func(req *dto.CreateInvoiceRequest)
		check  func(err error) bool
	}{
		{
			name:   "no items",
			mutate: func(req *dto.CreateInvoiceRequest) { req.Items = nil },
			check:  ierr.IsValidation,
		},
		{
			name: "quantity below one",
			mutate: func(req *dto.CreateInvoiceRequest) {
				req.Items[0].Quantity = decimal.RequireFromString("0.5")
			},
			check: ierr.IsValidation,
		},
		{
			name:   "unknown client",
			mutate: func(req *dto.CreateInvoiceRequest) { req.ClientID = "cli_missing" },
			check:  ierr.IsNotFound,
		},
		{
			name:   "tax rate above 100",
			mutate: func(req *dto.CreateInvoiceRequest) { req.TaxRate = decimal.NewFromInt(101) },
			check:  ierr.IsValidation,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.invoiceRequest()
			tt.mutate(&req)
			_, err := s.invoices.CreateInvoice(s.GetContext(), req)
			s.Error(err)
			s.True(tt.check(err), "unexpected error: %v", err)
		})
	}
}

func (s *InvoiceServiceSuite) TestGetInvoice_OtherUser() {
	resp := s.createDraft()

	_, err := s.invoices.GetInvoice(s.GetContextForUser("user_other"), resp.ID)
	s.True(ierr.IsNotFound(err))

	got, err := s.invoices.GetInvoice(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(s.client.ID, got.Client.ID)
}

func (s *InvoiceServiceSuite) TestSendInvoice() {
	draft := s.createDraft()

	resp, err := s.invoices.SendInvoice(s.GetContext(), draft.ID)
	s.Require().NoError(err)
	s.True(resp.StateUpdated)
	s.True(resp.Delivered)
	s.Equal(types.InvoiceStatusSent, resp.Invoice.Status)

	stored := s.storedInvoice(draft.ID)
	s.Equal(types.InvoiceStatusSent, stored.Status)
	s.Equal(s.GetNow(), lo.FromPtr(stored.SentAt))
	s.Equal([]types.InvoiceEventType{types.InvoiceEventCreated, types.InvoiceEventSent}, s.eventTypes(draft.ID))

	messages := s.GetEmailSender().Messages()
	s.Require().Len(messages, 1)
	s.Equal(s.client.Email, messages[0].To)
	s.Contains(messages[0].Subject, "110.00 USD")
	s.Contains(messages[0].HTML, "https://invoices.example.com/public/invoices/"+draft.PublicID)

	_, err = s.invoices.SendInvoice(s.GetContext(), draft.ID)
	s.True(ierr.IsInvalidState(err))
}

func (s *InvoiceServiceSuite) TestSendInvoice_DeliveryFailure() {
	draft := s.createDraft()
	s.GetEmailSender().Err = errors.New("mailbox unavailable")

	resp, err := s.invoices.SendInvoice(s.GetContext(), draft.ID)
	s.Error(err)
	s.True(ierr.IsDeliveryFailed(err))
	s.Require().NotNil(resp)
	s.True(resp.StateUpdated)
	s.False(resp.Delivered)
	s.NotEmpty(resp.DeliveryError)

	// the transition stays committed
	s.Equal(types.InvoiceStatusSent, s.storedInvoice(draft.ID).Status)

	s.GetEmailSender().Err = nil
	retry, err := s.invoices.RetryDelivery(s.GetContext(), draft.ID)
	s.NoError(err)
	s.False(retry.StateUpdated)
	s.True(retry.Delivered)
	s.Len(s.GetEmailSender().Messages(), 1)
}

func (s *InvoiceServiceSuite) TestSendInvoice_EmailDisabled() {
	draft := s.createDraft()
	s.GetEmailSender().Disabled = true

	resp, err := s.invoices.SendInvoice(s.GetContext(), draft.ID)
	s.NoError(err)
	s.True(resp.StateUpdated)
	s.False(resp.Delivered)
}

func (s *InvoiceServiceSuite) TestRetryDelivery_Draft() {
	draft := s.createDraft()

	_, err := s.invoices.RetryDelivery(s.GetContext(), draft.ID)
	s.True(ierr.IsInvalidState(err))
}

func (s *InvoiceServiceSuite) TestGetPublicInvoice_MarksViewedOnce() {
	sent := s.createSent()
	public := types.WithNow(context.Background(), s.GetNow().Add(time.Hour))

	resp, err := s.invoices.GetPublicInvoice(public, sent.PublicID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusViewed, resp.Status)
	s.Equal("Acme Corp", resp.ClientName)
	s.Equal(int64(11000), resp.RemainingAmount)
	s.False(resp.CanPayOnline)

	_, err = s.invoices.GetPublicInvoice(public, sent.PublicID)
	s.Require().NoError(err)

	stored := s.storedInvoice(sent.ID)
	s.Equal(types.InvoiceStatusViewed, stored.Status)
	s.NotNil(stored.ViewedAt)
	s.Equal([]types.InvoiceEventType{
		types.InvoiceEventCreated,
		types.InvoiceEventSent,
		types.InvoiceEventViewed,
	}, s.eventTypes(sent.ID))
}

func (s *InvoiceServiceSuite) TestGetPublicInvoice_DraftHidden() {
	draft := s.createDraft()

	_, err := s.invoices.GetPublicInvoice(context.Background(), draft.PublicID)
	s.True(ierr.IsNotFound(err))

	_, err = s.invoices.GetPublicInvoice(context.Background(), "inv_unknown")
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestDisplayStatus_OverdueBeforeBatch() {
	sent := s.createSent()
	draft := s.createDraft()

	s.SetNow(s.GetNow().AddDate(0, 0, 31))

	got, err := s.invoices.GetInvoice(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusOverdue, got.Status)
	s.Equal(types.InvoiceStatusSent, s.storedInvoice(sent.ID).Status)

	overdue, err := s.invoices.ListInvoices(s.GetContext(), &types.InvoiceFilter{
		QueryFilter: types.NewDefaultQueryFilter(),
		Statuses:    []types.InvoiceStatus{types.InvoiceStatusOverdue},
	})
	s.Require().NoError(err)
	s.Require().Len(overdue.Items, 1)
	s.Equal(sent.ID, overdue.Items[0].ID)
	s.Equal(1, overdue.Pagination.Total)

	drafts, err := s.invoices.ListInvoices(s.GetContext(), &types.InvoiceFilter{
		QueryFilter: types.NewDefaultQueryFilter(),
		Statuses:    []types.InvoiceStatus{types.InvoiceStatusDraft},
	})
	s.Require().NoError(err)
	s.Require().Len(drafts.Items, 1)
	s.Equal(draft.ID, drafts.Items[0].ID)

	all, err := s.invoices.ListInvoices(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Len(all.Items, 2)
}

func (s *InvoiceServiceSuite) TestMarkOverdueInvoices() {
	sent := s.createSent()
	notDue := s.createSent()

	stored := s.storedInvoice(notDue.ID)
	stored.DueDate = s.GetNow().AddDate(0, 2, 0)
	s.Require().NoError(s.GetStores().InvoiceRepo.Update(s.GetContext(), stored))

	s.SetNow(s.GetNow().AddDate(0, 0, 31))

	resp, err := s.invoices.MarkOverdueInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Updated)
	s.Equal([]string{sent.ID}, resp.InvoiceIDs)
	s.Equal(types.InvoiceStatusOverdue, s.storedInvoice(sent.ID).Status)
	s.Equal(types.InvoiceStatusSent, s.storedInvoice(notDue.ID).Status)
	s.Contains(s.eventTypes(sent.ID), types.InvoiceEventStatusChanged)

	again, err := s.invoices.MarkOverdueInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, again.Updated)
}

func (s *InvoiceServiceSuite) TestMarkOverdueInvoices_AcrossUsers() {
	other := s.GetContextForUser("user_other")
	otherClient := s.CreateTestClient(other, "Globex")

	req := s.invoiceRequest()
	req.ClientID = otherClient.ID
	created, err := s.invoices.CreateInvoice(other, req)
	s.Require().NoError(err)
	_, err = s.invoices.SendInvoice(other, created.ID)
	s.Require().NoError(err)

	s.SetNow(s.GetNow().AddDate(0, 0, 31))

	resp, err := s.invoices.MarkOverdueInvoices(types.WithNow(context.Background(), s.GetNow()))
	s.Require().NoError(err)
	s.Equal(1, resp.Updated)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContextForUser("user_other"), created.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusOverdue, stored.Status)
	s.Equal("user_other", stored.UpdatedBy)
}

func (s *InvoiceServiceSuite) TestUpdateInvoice() {
	draft := s.createDraft()

	resp, err := s.invoices.UpdateInvoice(s.GetContext(), draft.ID, dto.UpdateInvoiceRequest{
		Items: []*dto.LineItemRequest{
			{Description: "Consulting", Quantity: decimal.RequireFromString("1.5"), UnitPrice: 3333},
		},
		Discount: &dto.DiscountRequest{Type: types.DiscountTypeFixed, Value: decimal.NewFromInt(1000)},
		Notes:    lo.ToPtr("Net 30"),
	})
	s.Require().NoError(err)

	// round(1.5 x 3333) = 5000, minus 1000, plus 10% tax
	s.Equal(int64(5000), resp.Subtotal)
	s.Equal(int64(1000), resp.DiscountAmount)
	s.Equal(int64(400), resp.TaxAmount)
	s.Equal(int64(4400), resp.Total)

	stored := s.storedInvoice(draft.ID)
	s.Require().Len(stored.Items, 1)
	s.Equal("Consulting", stored.Items[0].Description)
	s.Equal("Net 30", stored.Notes)
	s.Contains(s.eventTypes(draft.ID), types.InvoiceEventUpdated)
}

func (s *InvoiceServiceSuite) TestUpdateInvoice_LockedAfterPayment() {
	sent := s.createSent()
	_, err := s.payments.RecordPayment(s.GetContext(), sent.ID, dto.RecordPaymentRequest{
		Amount: 1000,
		Method: types.PaymentMethodBankTransfer,
	})
	s.Require().NoError(err)

	_, err = s.invoices.UpdateInvoice(s.GetContext(), sent.ID, dto.UpdateInvoiceRequest{
		Notes: lo.ToPtr("changed"),
	})
	s.True(ierr.IsInvalidState(err))

	err = s.invoices.DeleteInvoice(s.GetContext(), sent.ID)
	s.True(ierr.IsInvalidState(err))
}

func (s *InvoiceServiceSuite) TestDeleteInvoice() {
	draft := s.createDraft()

	s.Require().NoError(s.invoices.DeleteInvoice(s.GetContext(), draft.ID))

	_, err := s.invoices.GetInvoice(s.GetContext(), draft.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestDuplicateInvoice() {
	sent := s.createSent()
	s.advanceClock(48 * time.Hour)

	dup, err := s.invoices.DuplicateInvoice(s.GetContext(), sent.ID)
	s.Require().NoError(err)

	s.NotEqual(sent.ID, dup.ID)
	s.NotEqual(sent.PublicID, dup.PublicID)
	s.Equal(types.InvoiceStatusDraft, dup.Status)
	s.Equal(types.InvoiceSourceDuplicate, dup.Source)
	s.Equal(sent.Total, dup.Total)
	s.Equal(int64(0), dup.PaidAmount)
	s.Equal(s.GetNow().AddDate(0, 0, 30), dup.DueDate)

	stored := s.storedInvoice(dup.ID)
	s.Require().Len(stored.Items, 1)
	s.NotEqual(s.storedInvoice(sent.ID).Items[0].ID, stored.Items[0].ID)
	s.Contains(s.eventTypes(sent.ID), types.InvoiceEventDuplicated)
}

func (s *InvoiceServiceSuite) TestGetStatusCounts() {
	s.createDraft()
	s.createSent()
	s.createSent()

	resp, err := s.invoices.GetStatusCounts(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Counts[types.InvoiceStatusDraft])
	s.Equal(2, resp.Counts[types.InvoiceStatusSent])
	s.Equal(0, resp.Counts[types.InvoiceStatusPaid])
	s.Equal(3, resp.Total)
}

func (s *InvoiceServiceSuite) TestListEvents() {
	sent := s.createSent()

	resp, err := s.invoices.ListEvents(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Require().Len(resp.Items, 2)
	s.Equal(types.InvoiceEventCreated, resp.Items[0].Type)
	s.Equal(types.InvoiceEventSent, resp.Items[1].Type)

	_, err = s.invoices.ListEvents(s.GetContextForUser("user_other"), sent.ID)
	s.True(ierr.IsNotFound(err))
}
