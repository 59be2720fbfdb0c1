package service

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/api/dto"
	"github.com/invoicekit/invoicekit/internal/domain/client"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/testutil"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/shopspring/decimal"
)

// ledgerSuite wires every service against the in-memory stores of the base suite
type ledgerSuite struct {
	testutil.BaseServiceTestSuite

	params    ServiceParams
	clients   ClientService
	invoices  InvoiceService
	payments  PaymentService
	followUps FollowUpService
	recurring RecurringService
	stripe    StripeService

	client *client.Client
}

func (s *ledgerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupServices()
	s.client = s.CreateTestClient(s.GetContext(), "Acme Corp")
}

func (s *ledgerSuite) setupServices() {
	stores := s.GetStores()
	s.params = NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		s.GetCache(),
		stores.ClientRepo,
		stores.InvoiceRepo,
		stores.InvoiceEventRepo,
		stores.PaymentRepo,
		stores.RecurringRepo,
		stores.FollowUpRepo,
		s.GetEmailSender(),
		s.GetStripe(),
	)
	s.rebuildServices()
}

func (s *ledgerSuite) rebuildServices() {
	s.clients = NewClientService(s.params)
	s.invoices = NewInvoiceService(s.params)
	s.payments = NewPaymentService(s.params)
	s.followUps = NewFollowUpService(s.params)
	s.recurring = NewRecurringService(s.params)
	s.stripe = NewStripeService(s.params)
}

// invoiceRequest is two units at 50.00 with 10% tax: subtotal 10000, tax 1000, total 11000
func (s *ledgerSuite) invoiceRequest() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		ClientID: s.client.ID,
		Currency: "usd",
		DueDate:  s.GetNow().AddDate(0, 0, 30),
		TaxRate:  decimal.NewFromInt(10),
		Items: []*dto.LineItemRequest{
			{Description: "Design work", Quantity: decimal.NewFromInt(2), UnitPrice: 5000},
		},
	}
}

func (s *ledgerSuite) createDraft() *dto.InvoiceResponse {
	resp, err := s.invoices.CreateInvoice(s.GetContext(), s.invoiceRequest())
	s.Require().NoError(err)
	return resp
}

func (s *ledgerSuite) createSent() *dto.InvoiceResponse {
	draft := s.createDraft()
	resp, err := s.invoices.SendInvoice(s.GetContext(), draft.ID)
	s.Require().NoError(err)
	return resp.Invoice
}

func (s *ledgerSuite) storedInvoice(id string) *invoice.Invoice {
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return inv
}

func (s *ledgerSuite) eventTypes(invoiceID string) []types.InvoiceEventType {
	return s.GetStores().InvoiceEventRepo.(*testutil.InMemoryInvoiceEventStore).TypesFor(s.GetContext(), invoiceID)
}

func (s *ledgerSuite) enableFollowUps(trigger types.FollowUpTrigger, offsets ...int) {
	_, err := s.followUps.UpdateRule(s.GetContext(), dto.UpdateFollowUpRuleRequest{
		Enabled:    boolPtr(true),
		Trigger:    &trigger,
		DayOffsets: offsets,
	})
	s.Require().NoError(err)
}

func (s *ledgerSuite) advanceClock(d time.Duration) {
	s.SetNow(s.GetNow().Add(d))
}

func boolPtr(v bool) *bool {
	return &v
}

// failingEventRepo fails when asked to append one event type, to exercise rollbacks
type failingEventRepo struct {
	invoice.EventRepository
	failOn types.InvoiceEventType
}

func (r *failingEventRepo) Create(ctx context.Context, event *invoice.Event) error {
	if event.Type == r.failOn {
		return ierr.NewError("event store unavailable").
			WithHint("Event store unavailable").
			Mark(ierr.ErrDatabase)
	}
	return r.EventRepository.Create(ctx, event)
}
