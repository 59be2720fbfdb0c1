package service

import (
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

type RecurringServiceSuite struct {
	ledgerSuite
}

func TestRecurringService(t *testing.T) {
	suite.Run(t, new(RecurringServiceSuite))
}

func (s *RecurringServiceSuite) templateRequest() dto.CreateRecurringInvoiceRequest {
	return dto.CreateRecurringInvoiceRequest{
		ClientID:  s.client.ID,
		Currency:  "usd",
		Frequency: types.RecurringFrequencyMonthly,
		DueDays:   14,
		TaxRate:   decimal.NewFromInt(10),
		Notes:     "Monthly retainer",
		Items: []*dto.LineItemRequest{
			{Description: "Retainer", Quantity: decimal.NewFromInt(2), UnitPrice: 5000},
		},
	}
}

func (s *RecurringServiceSuite) createTemplate(mutate func(req *dto.CreateRecurringInvoiceRequest)) *dto.RecurringInvoiceResponse {
	req := s.templateRequest()
	if mutate != nil {
		mutate(&req)
	}
	resp, err := s.recurring.CreateRecurringInvoice(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *RecurringServiceSuite) storedTemplateNextRun(id string) time.Time {
	tmpl, err := s.GetStores().RecurringRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return tmpl.NextRunAt
}

func (s *RecurringServiceSuite) TestCreateRecurringInvoice() {
	resp := s.createTemplate(nil)

	s.Equal(types.RecurringStatusActive, resp.Status)
	s.Equal("USD", resp.Currency)
	s.Equal(s.GetNow(), resp.NextRunAt)
	s.Require().Len(resp.Items, 1)
	s.Equal(resp.ID, resp.Items[0].RecurringInvoiceID)
}

func (s *RecurringServiceSuite) TestCreateRecurringInvoice_Validation() {
	tests := []struct {
		name   string
		mutate func(req *dto.CreateRecurringInvoiceRequest)
		check  func(err error) bool
	}{
		{
			name:   "unknown frequency",
			mutate: func(req *dto.CreateRecurringInvoiceRequest) { req.Frequency = "daily" },
			check:  ierr.IsValidation,
		},
		{
			name:   "no items",
			mutate: func(req *dto.CreateRecurringInvoiceRequest) { req.Items = nil },
			check:  ierr.IsValidation,
		},
		{
			name: "end before first run",
			mutate: func(req *dto.CreateRecurringInvoiceRequest) {
				req.EndDate = lo.ToPtr(s.GetNow().AddDate(0, 0, -1))
			},
			check: ierr.IsValidation,
		},
		{
			name:   "unknown client",
			mutate: func(req *dto.CreateRecurringInvoiceRequest) { req.ClientID = "cli_missing" },
			check:  ierr.IsNotFound,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.templateRequest()
			tt.mutate(&req)
			_, err := s.recurring.CreateRecurringInvoice(s.GetContext(), req)
			s.Error(err)
			s.True(tt.check(err), "unexpected error: %v", err)
		})
	}
}

func (s *RecurringServiceSuite) TestProcessDue_CreatesDraft() {
	tmpl := s.createTemplate(nil)

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Succeeded)
	s.Equal(0, resp.Failed)
	s.Require().Len(resp.Results, 1)

	result := resp.Results[0]
	s.True(result.Success)
	s.False(result.Delivered)
	s.Equal(s.GetNow().AddDate(0, 1, 0), lo.FromPtr(result.NextRunAt))

	inv := s.storedInvoice(result.InvoiceID)
	s.Equal(types.InvoiceStatusDraft, inv.Status)
	s.Equal(types.InvoiceSourceRecurring, inv.Source)
	s.Equal(tmpl.ID, lo.FromPtr(inv.RecurringInvoiceID))
	s.Equal(int64(11000), inv.Total)
	s.Equal(s.GetNow().AddDate(0, 0, 14), inv.DueDate)
	s.Equal("Monthly retainer", inv.Notes)
	s.Equal(types.DefaultUserID, inv.UserID)
	s.Empty(s.GetEmailSender().Messages())

	stored, err := s.GetStores().RecurringRepo.Get(s.GetContext(), tmpl.ID)
	s.Require().NoError(err)
	s.Equal(s.GetNow(), lo.FromPtr(stored.LastRunAt))
	s.Equal(s.GetNow().AddDate(0, 1, 0), stored.NextRunAt)

	again, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Empty(again.Results)
}

func (s *RecurringServiceSuite) TestProcessDue_AutoSend() {
	s.enableFollowUps(types.FollowUpTriggerAfterDue, 1)
	s.createTemplate(func(req *dto.CreateRecurringInvoiceRequest) { req.AutoSend = true })

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 1)
	s.True(resp.Results[0].Delivered)

	invoiceID := resp.Results[0].InvoiceID
	inv := s.storedInvoice(invoiceID)
	s.Equal(types.InvoiceStatusSent, inv.Status)
	s.Equal(s.GetNow(), lo.FromPtr(inv.SentAt))
	s.Equal([]types.InvoiceEventType{types.InvoiceEventCreated, types.InvoiceEventSent}, s.eventTypes(invoiceID))
	s.Len(s.GetEmailSender().Messages(), 1)

	jobs, err := s.followUps.ListJobs(s.GetContext(), invoiceID)
	s.Require().NoError(err)
	s.Len(jobs.Items, 1)
}

func (s *RecurringServiceSuite) TestProcessDue_DeliveryFailureKeepsRun() {
	tmpl := s.createTemplate(func(req *dto.CreateRecurringInvoiceRequest) { req.AutoSend = true })
	s.GetEmailSender().Err = errors.New("mailbox unavailable")

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Succeeded)
	s.Require().Len(resp.Results, 1)
	s.True(resp.Results[0].Success)
	s.False(resp.Results[0].Delivered)
	s.NotEmpty(resp.Results[0].Error)

	s.Equal(types.InvoiceStatusSent, s.storedInvoice(resp.Results[0].InvoiceID).Status)
	s.Equal(s.GetNow().AddDate(0, 1, 0), s.storedTemplateNextRun(tmpl.ID))
}

func (s *RecurringServiceSuite) TestProcessDue_BacklogOnePerTick() {
	start := s.GetNow().AddDate(0, -2, 0)
	tmpl := s.createTemplate(func(req *dto.CreateRecurringInvoiceRequest) {
		req.NextRunAt = lo.ToPtr(start)
	})

	for tick := 1; tick <= 3; tick++ {
		resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
		s.Require().NoError(err)
		s.Len(resp.Results, 1, "tick %d", tick)
		s.Equal(start.AddDate(0, tick, 0), s.storedTemplateNextRun(tmpl.ID))
	}

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Empty(resp.Results)

	invoices, err := s.invoices.ListInvoices(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Len(invoices.Items, 3)
}

func (s *RecurringServiceSuite) TestProcessDue_IsolatesFailures() {
	broken := s.createTemplate(nil)
	healthy := s.createTemplate(nil)

	// a client that disappeared underneath the template
	s.Require().NoError(s.GetStores().ClientRepo.Delete(s.GetContext(), s.client.ID))
	s.GetCache().Flush(s.GetContext())
	other := s.CreateTestClient(s.GetContext(), "Initech")
	tmpl, err := s.GetStores().RecurringRepo.Get(s.GetContext(), healthy.ID)
	s.Require().NoError(err)
	tmpl.ClientID = other.ID
	s.Require().NoError(s.GetStores().RecurringRepo.Update(s.GetContext(), tmpl))

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Succeeded)
	s.Equal(1, resp.Failed)

	failed, ok := lo.Find(resp.Results, func(r *dto.RecurringRunResult) bool { return !r.Success })
	s.Require().True(ok)
	s.Equal(broken.ID, failed.RecurringInvoiceID)
	s.NotEmpty(failed.Error)

	// the failed template stays due for the next tick
	s.Equal(s.GetNow(), s.storedTemplateNextRun(broken.ID))
	s.Equal(s.GetNow().AddDate(0, 1, 0), s.storedTemplateNextRun(healthy.ID))
}

func (s *RecurringServiceSuite) TestProcessDue_AcrossUsers() {
	s.createTemplate(nil)

	other := s.GetContextForUser("user_other")
	otherClient := s.CreateTestClient(other, "Globex")
	req := s.templateRequest()
	req.ClientID = otherClient.ID
	_, err := s.recurring.CreateRecurringInvoice(other, req)
	s.Require().NoError(err)

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(2, resp.Succeeded)

	users := lo.Map(resp.Results, func(r *dto.RecurringRunResult, _ int) string { return r.UserID })
	s.ElementsMatch([]string{types.DefaultUserID, "user_other"}, users)

	otherInvoices, err := s.invoices.ListInvoices(other, nil)
	s.Require().NoError(err)
	s.Require().Len(otherInvoices.Items, 1)
	s.Equal(otherClient.ID, otherInvoices.Items[0].ClientID)
}

func (s *RecurringServiceSuite) TestProcessDue_SkipsEndedTemplates() {
	s.createTemplate(func(req *dto.CreateRecurringInvoiceRequest) {
		req.EndDate = lo.ToPtr(s.GetNow().AddDate(0, 0, 10))
	})

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Len(resp.Results, 1)

	s.SetNow(s.GetNow().AddDate(0, 1, 0))
	resp, err = s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Empty(resp.Results)
}

func (s *RecurringServiceSuite) TestPauseResume() {
	tmpl := s.createTemplate(nil)

	paused, err := s.recurring.PauseRecurringInvoice(s.GetContext(), tmpl.ID)
	s.Require().NoError(err)
	s.Equal(types.RecurringStatusPaused, paused.Status)

	_, err = s.recurring.PauseRecurringInvoice(s.GetContext(), tmpl.ID)
	s.True(ierr.IsInvalidState(err))

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Empty(resp.Results)

	// three missed months are skipped on resume
	s.SetNow(s.GetNow().AddDate(0, 3, 0).Add(time.Hour))
	resumed, err := s.recurring.ResumeRecurringInvoice(s.GetContext(), tmpl.ID)
	s.Require().NoError(err)
	s.Equal(types.RecurringStatusActive, resumed.Status)
	s.Equal(time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC), resumed.NextRunAt)

	_, err = s.recurring.ResumeRecurringInvoice(s.GetContext(), tmpl.ID)
	s.True(ierr.IsInvalidState(err))
}

func (s *RecurringServiceSuite) TestCancel() {
	tmpl := s.createTemplate(nil)

	canceled, err := s.recurring.CancelRecurringInvoice(s.GetContext(), tmpl.ID)
	s.Require().NoError(err)
	s.Equal(types.RecurringStatusCanceled, canceled.Status)

	_, err = s.recurring.CancelRecurringInvoice(s.GetContext(), tmpl.ID)
	s.True(ierr.IsInvalidState(err))
	_, err = s.recurring.ResumeRecurringInvoice(s.GetContext(), tmpl.ID)
	s.True(ierr.IsInvalidState(err))
	_, err = s.recurring.UpdateRecurringInvoice(s.GetContext(), tmpl.ID, dto.UpdateRecurringInvoiceRequest{
		Notes: lo.ToPtr("too late"),
	})
	s.True(ierr.IsInvalidState(err))
	_, err = s.recurring.MaterializeInvoice(s.GetContext(), tmpl.ID)
	s.True(ierr.IsInvalidState(err))

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Empty(resp.Results)
}

func (s *RecurringServiceSuite) TestMaterializeInvoice_AdvancesSchedule() {
	next := s.GetNow().AddDate(0, 0, 7)
	tmpl := s.createTemplate(func(req *dto.CreateRecurringInvoiceRequest) {
		req.Frequency = types.RecurringFrequencyWeekly
		req.NextRunAt = lo.ToPtr(next)
	})

	result, err := s.recurring.MaterializeInvoice(s.GetContext(), tmpl.ID)
	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal(next.AddDate(0, 0, 7), lo.FromPtr(result.NextRunAt))
	s.Equal(types.InvoiceStatusDraft, s.storedInvoice(result.InvoiceID).Status)
}

func (s *RecurringServiceSuite) TestUpdateRecurringInvoice() {
	tmpl := s.createTemplate(nil)

	resp, err := s.recurring.UpdateRecurringInvoice(s.GetContext(), tmpl.ID, dto.UpdateRecurringInvoiceRequest{
		Frequency: lo.ToPtr(types.RecurringFrequencyQuarterly),
		AutoSend:  lo.ToPtr(true),
		Items: []*dto.LineItemRequest{
			{Description: "Quarterly retainer", Quantity: decimal.NewFromInt(1), UnitPrice: 30000},
		},
	})
	s.Require().NoError(err)
	s.Equal(types.RecurringFrequencyQuarterly, resp.Frequency)
	s.True(resp.AutoSend)

	result, err := s.recurring.MaterializeInvoice(s.GetContext(), tmpl.ID)
	s.Require().NoError(err)
	inv := s.storedInvoice(result.InvoiceID)
	s.Equal(int64(33000), inv.Total)
	s.Equal(s.GetNow().AddDate(0, 3, 0), lo.FromPtr(result.NextRunAt))
}

func (s *RecurringServiceSuite) TestUpdateRecurringInvoice_AfterLastRun() {
	endDate := s.GetNow().AddDate(0, 0, 10)
	tmpl := s.createTemplate(func(req *dto.CreateRecurringInvoiceRequest) {
		req.EndDate = lo.ToPtr(endDate)
	})

	resp, err := s.recurring.ProcessDueRecurringInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 1)
	s.True(s.storedTemplateNextRun(tmpl.ID).After(endDate))

	updated, err := s.recurring.UpdateRecurringInvoice(s.GetContext(), tmpl.ID, dto.UpdateRecurringInvoiceRequest{
		Notes: lo.ToPtr("Final retainer"),
	})
	s.Require().NoError(err)
	s.Equal("Final retainer", updated.Notes)

	_, err = s.recurring.UpdateRecurringInvoice(s.GetContext(), tmpl.ID, dto.UpdateRecurringInvoiceRequest{
		EndDate: lo.ToPtr(endDate.AddDate(0, 0, 1)),
	})
	s.True(ierr.IsValidation(err), "unexpected error: %v", err)

	extended, err := s.recurring.UpdateRecurringInvoice(s.GetContext(), tmpl.ID, dto.UpdateRecurringInvoiceRequest{
		EndDate: lo.ToPtr(endDate.AddDate(1, 0, 0)),
	})
	s.Require().NoError(err)
	s.Equal(endDate.AddDate(1, 0, 0), lo.FromPtr(extended.EndDate))
}

func (s *RecurringServiceSuite) TestDeleteRecurringInvoice_KeepsInvoices() {
	tmpl := s.createTemplate(nil)
	result, err := s.recurring.MaterializeInvoice(s.GetContext(), tmpl.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.recurring.DeleteRecurringInvoice(s.GetContext(), tmpl.ID))

	_, err = s.recurring.GetRecurringInvoice(s.GetContext(), tmpl.ID)
	s.True(ierr.IsNotFound(err))
	s.Equal(types.InvoiceStatusDraft, s.storedInvoice(result.InvoiceID).Status)
}

func (s *RecurringServiceSuite) TestListRecurringInvoices_Filter() {
	active := s.createTemplate(nil)
	paused := s.createTemplate(nil)
	_, err := s.recurring.PauseRecurringInvoice(s.GetContext(), paused.ID)
	s.Require().NoError(err)

	filter := types.NewRecurringInvoiceFilter()
	filter.Statuses = []types.RecurringStatus{types.RecurringStatusActive}
	resp, err := s.recurring.ListRecurringInvoices(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal(active.ID, resp.Items[0].ID)
	s.Equal(1, resp.Pagination.Total)
}
