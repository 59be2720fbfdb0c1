package service

import (
	"testing"
	"time"

	"github.com/invoicekit/invoicekit/internal/api/dto"
	"github.com/invoicekit/invoicekit/internal/domain/followup"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	ledgerSuite
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) record(invoiceID string, amount int64) (*dto.RecordPaymentResponse, error) {
	return s.payments.RecordPayment(s.GetContext(), invoiceID, dto.RecordPaymentRequest{
		Amount: amount,
		Method: types.PaymentMethodBankTransfer,
	})
}

func (s *PaymentServiceSuite) jobStatuses(invoiceID string) []types.FollowUpJobStatus {
	jobs, err := s.followUps.ListJobs(s.GetContext(), invoiceID)
	s.Require().NoError(err)
	return lo.Map(jobs.Items, func(j *dto.FollowUpJobResponse, _ int) types.FollowUpJobStatus {
		return j.Status
	})
}

func (s *PaymentServiceSuite) TestRecordPayment_PartialThenFull() {
	s.enableFollowUps(types.FollowUpTriggerAfterSent, 3, 7)
	sent := s.createSent()
	s.Equal([]types.FollowUpJobStatus{
		types.FollowUpJobStatusPending,
		types.FollowUpJobStatusPending,
	}, s.jobStatuses(sent.ID))

	partial, err := s.record(sent.ID, 4000)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPartiallyPaid, partial.Invoice.Status)
	s.Equal(int64(4000), partial.Invoice.PaidAmount)
	s.Equal(int64(7000), partial.Invoice.RemainingAmount)
	s.Nil(partial.Invoice.PaidAt)
	s.Equal(int64(4000), partial.Payment.Amount)

	// partial payments keep the reminders running
	s.NotContains(s.jobStatuses(sent.ID), types.FollowUpJobStatusCanceled)

	full, err := s.record(sent.ID, 7000)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, full.Invoice.Status)
	s.Equal(int64(0), full.Invoice.RemainingAmount)

	stored := s.storedInvoice(sent.ID)
	s.Equal(types.InvoiceStatusPaid, stored.Status)
	s.Equal(s.GetNow(), lo.FromPtr(stored.PaidAt))
	s.Equal(types.PaymentMethodBankTransfer, lo.FromPtr(stored.PaymentMethod))
	s.Equal([]types.FollowUpJobStatus{
		types.FollowUpJobStatusCanceled,
		types.FollowUpJobStatusCanceled,
	}, s.jobStatuses(sent.ID))

	payments, err := s.payments.ListPayments(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Len(payments.Items, 2)
	s.Equal(int64(11000), lo.SumBy(payments.Items, func(p *dto.PaymentResponse) int64 { return p.Amount }))
}

func (s *PaymentServiceSuite) TestRecordPayment_Rejected() {
	sent := s.createSent()
	draft := s.createDraft()

	tests := []struct {
		name      string
		invoiceID string
		amount    int64
		method    types.PaymentMethod
		check     func(err error) bool
	}{
		{
			name:      "overpayment",
			invoiceID: sent.ID,
			amount:    11001,
			method:    types.PaymentMethodCash,
			check:     ierr.IsBalanceExceeded,
		},
		{
			name:      "draft invoice",
			invoiceID: draft.ID,
			amount:    100,
			method:    types.PaymentMethodCash,
			check:     ierr.IsInvalidState,
		},
		{
			name:      "zero amount",
			invoiceID: sent.ID,
			amount:    0,
			method:    types.PaymentMethodCash,
			check:     ierr.IsValidation,
		},
		{
			name:      "unknown method",
			invoiceID: sent.ID,
			amount:    100,
			method:    types.PaymentMethod("barter"),
			check:     ierr.IsValidation,
		},
		{
			name:      "unknown invoice",
			invoiceID: "inv_missing",
			amount:    100,
			method:    types.PaymentMethodCash,
			check:     ierr.IsNotFound,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.payments.RecordPayment(s.GetContext(), tt.invoiceID, dto.RecordPaymentRequest{
				Amount: tt.amount,
				Method: tt.method,
			})
			s.Error(err)
			s.True(tt.check(err), "unexpected error: %v", err)
		})
	}

	stored := s.storedInvoice(sent.ID)
	s.Equal(int64(0), stored.PaidAmount)
	s.Equal(types.InvoiceStatusSent, stored.Status)
}

func (s *PaymentServiceSuite) TestRecordPayment_PaidInvoice() {
	sent := s.createSent()
	_, err := s.record(sent.ID, 11000)
	s.Require().NoError(err)

	_, err = s.record(sent.ID, 1)
	s.True(ierr.IsInvalidState(err))
}

func (s *PaymentServiceSuite) TestRecordPayment_OverdueInvoice() {
	sent := s.createSent()
	s.SetNow(s.GetNow().AddDate(0, 0, 40))

	_, err := s.invoices.MarkOverdueInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusOverdue, s.storedInvoice(sent.ID).Status)

	resp, err := s.record(sent.ID, 11000)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.Status)
}

func (s *PaymentServiceSuite) TestRecordPayment_RollsBackOnEventFailure() {
	sent := s.createSent()
	s.params.InvoiceEventRepo = &failingEventRepo{
		EventRepository: s.GetStores().InvoiceEventRepo,
		failOn:          types.InvoiceEventPaymentRecorded,
	}
	s.rebuildServices()
	rollbacks := s.GetDB().Rollbacks

	_, err := s.record(sent.ID, 4000)
	s.Error(err)
	s.True(ierr.IsDatabase(err))
	s.Equal(rollbacks+1, s.GetDB().Rollbacks)

	stored := s.storedInvoice(sent.ID)
	s.Equal(int64(0), stored.PaidAmount)
	s.Equal(types.InvoiceStatusSent, stored.Status)

	payments, err := s.payments.ListPayments(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Empty(payments.Items)
}

func (s *PaymentServiceSuite) TestMarkPaidManually() {
	s.enableFollowUps(types.FollowUpTriggerAfterDue, 1)
	sent := s.createSent()
	_, err := s.record(sent.ID, 4000)
	s.Require().NoError(err)

	resp, err := s.payments.MarkPaidManually(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.Status)
	s.Equal(int64(11000), resp.PaidAmount)
	s.Equal(types.PaymentMethodManual, lo.FromPtr(resp.PaymentMethod))

	payments, err := s.payments.ListPayments(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Require().Len(payments.Items, 2)
	manual, found := lo.Find(payments.Items, func(p *dto.PaymentResponse) bool {
		return p.Method == types.PaymentMethodManual
	})
	s.Require().True(found)
	s.Equal(int64(7000), manual.Amount)

	s.Contains(s.eventTypes(sent.ID), types.InvoiceEventPaidManual)
	s.Equal([]types.FollowUpJobStatus{types.FollowUpJobStatusCanceled}, s.jobStatuses(sent.ID))

	_, err = s.payments.MarkPaidManually(s.GetContext(), sent.ID)
	s.True(ierr.IsInvalidState(err))
}

func (s *PaymentServiceSuite) TestMarkPaidManually_ZeroTotal() {
	req := s.invoiceRequest()
	req.Discount = &dto.DiscountRequest{Type: types.DiscountTypePercentage, Value: decimal.NewFromInt(100)}
	draft, err := s.invoices.CreateInvoice(s.GetContext(), req)
	s.Require().NoError(err)
	s.Equal(int64(0), draft.Total)

	sent, err := s.invoices.SendInvoice(s.GetContext(), draft.ID)
	s.Require().NoError(err)

	// nothing is owed, so there is nothing to record
	_, err = s.record(sent.Invoice.ID, 1)
	s.True(ierr.IsBalanceExceeded(err), "unexpected error: %v", err)

	resp, err := s.payments.MarkPaidManually(s.GetContext(), sent.Invoice.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.Status)
	s.NotNil(resp.PaidAt)
	s.Equal(int64(0), resp.PaidAmount)

	payments, err := s.payments.ListPayments(s.GetContext(), sent.Invoice.ID)
	s.Require().NoError(err)
	s.Empty(payments.Items)

	s.advanceClock(31 * 24 * time.Hour)
	got, err := s.invoices.GetInvoice(s.GetContext(), sent.Invoice.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, got.Status)

	overdue, err := s.invoices.MarkOverdueInvoices(s.GetContext())
	s.Require().NoError(err)
	s.NotContains(overdue.InvoiceIDs, sent.Invoice.ID)

	_, err = s.payments.MarkPaidManually(s.GetContext(), sent.Invoice.ID)
	s.True(ierr.IsInvalidState(err))
}

func (s *PaymentServiceSuite) TestMarkPaidManually_Draft() {
	draft := s.createDraft()

	_, err := s.payments.MarkPaidManually(s.GetContext(), draft.ID)
	s.True(ierr.IsInvalidState(err))
}

func (s *PaymentServiceSuite) TestDeletePayment() {
	sent := s.createSent()
	first, err := s.record(sent.ID, 3000)
	s.Require().NoError(err)
	_, err = s.record(sent.ID, 2000)
	s.Require().NoError(err)

	resp, err := s.payments.DeletePayment(s.GetContext(), first.Payment.ID)
	s.Require().NoError(err)
	s.Equal(int64(2000), resp.PaidAmount)
	s.Equal(types.InvoiceStatusPartiallyPaid, resp.Status)

	payments, err := s.payments.ListPayments(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Len(payments.Items, 1)
	s.Contains(s.eventTypes(sent.ID), types.InvoiceEventPaymentDeleted)
}

func (s *PaymentServiceSuite) TestDeletePayment_FallsBackToViewed() {
	sent := s.createSent()
	_, err := s.invoices.GetPublicInvoice(s.GetContext(), sent.PublicID)
	s.Require().NoError(err)

	recorded, err := s.record(sent.ID, 3000)
	s.Require().NoError(err)

	resp, err := s.payments.DeletePayment(s.GetContext(), recorded.Payment.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), resp.PaidAmount)
	s.Equal(types.InvoiceStatusViewed, resp.Status)
}

func (s *PaymentServiceSuite) TestDeletePayment_PaidInvoice() {
	sent := s.createSent()
	recorded, err := s.record(sent.ID, 11000)
	s.Require().NoError(err)

	_, err = s.payments.DeletePayment(s.GetContext(), recorded.Payment.ID)
	s.True(ierr.IsInvalidState(err))
	s.Equal(int64(11000), s.storedInvoice(sent.ID).PaidAmount)
}

func (s *PaymentServiceSuite) TestDeletePayment_OtherUser() {
	sent := s.createSent()
	recorded, err := s.record(sent.ID, 1000)
	s.Require().NoError(err)

	_, err = s.payments.DeletePayment(s.GetContextForUser("user_other"), recorded.Payment.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentServiceSuite) TestCancelPendingFollowUps() {
	s.enableFollowUps(types.FollowUpTriggerAfterSent, 1, 2, 3)
	sent := s.createSent()

	canceled, err := s.payments.CancelPendingFollowUps(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Equal(3, canceled)
	s.True(lo.EveryBy(s.jobStatuses(sent.ID), func(status types.FollowUpJobStatus) bool {
		return status == types.FollowUpJobStatusCanceled
	}))

	jobs, err := s.GetStores().FollowUpRepo.ListByInvoice(s.GetContext(), sent.ID)
	s.Require().NoError(err)
	s.Len(jobs, 3)
	s.True(lo.EveryBy(jobs, func(j *followup.Job) bool { return j.SentAt == nil }))
}
