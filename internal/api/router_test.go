package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/api/cron"
	"github.com/invoicekit/invoicekit/internal/api/dto"
	v1 "github.com/invoicekit/invoicekit/internal/api/v1"
	"github.com/invoicekit/invoicekit/internal/auth"
	"github.com/invoicekit/invoicekit/internal/domain/client"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/service"
	"github.com/invoicekit/invoicekit/internal/testutil"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const (
	testAPIKey      = "sk_router_test"
	testInternalKey = "sk_internal_router_test"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite

	router *gin.Engine
	client *client.Client
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	s.BaseServiceTestSuite.SetupSuite()

	cfg := s.GetConfig()
	cfg.Auth.Secret = "router-test-secret"
	cfg.Auth.APIKey.Keys = map[string]string{
		auth.HashAPIKey(testAPIKey): types.DefaultUserID,
	}
	cfg.Auth.Internal.Header = "x-internal-key"
	cfg.Auth.Internal.Keys = []string{auth.HashAPIKey(testInternalKey)}
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	params := service.NewServiceParams(
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

	invoiceService := service.NewInvoiceService(params)
	paymentService := service.NewPaymentService(params)
	recurringService := service.NewRecurringService(params)
	followUpService := service.NewFollowUpService(params)
	stripeService := service.NewStripeService(params)
	log := s.GetLogger()

	s.router = NewRouter(Handlers{
		Health:        v1.NewHealthHandler(log),
		Client:        v1.NewClientHandler(service.NewClientService(params), log),
		Invoice:       v1.NewInvoiceHandler(invoiceService, log),
		Payment:       v1.NewPaymentHandler(paymentService, stripeService, log),
		Recurring:     v1.NewRecurringInvoiceHandler(recurringService, log),
		FollowUp:      v1.NewFollowUpHandler(followUpService, log),
		Public:        v1.NewPublicInvoiceHandler(invoiceService, stripeService, log),
		Webhook:       v1.NewWebhookHandler(stripeService, log),
		CronInvoice:   cron.NewInvoiceHandler(invoiceService, log),
		CronRecurring: cron.NewRecurringInvoiceHandler(recurringService, log),
		CronFollowUp:  cron.NewFollowUpHandler(followUpService, log),
	}, s.GetConfig(), log)

	s.client = s.CreateTestClient(s.GetContext(), "Acme Corp")
}

func (s *RouterSuite) do(method, path string, body any, authenticated bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set("x-api-key", testAPIKey)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// doCron calls a batch endpoint with the given headers and no body
func (s *RouterSuite) doCron(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *RouterSuite) createInvoice() *dto.InvoiceResponse {
	w := s.do(http.MethodPost, "/v1/invoices", dto.CreateInvoiceRequest{
		ClientID: s.client.ID,
		Currency: "usd",
		DueDate:  time.Now().UTC().AddDate(0, 0, 30),
		TaxRate:  decimal.NewFromInt(10),
		Items: []*dto.LineItemRequest{
			{Description: "Design work", Quantity: decimal.NewFromInt(2), UnitPrice: 5000},
		},
	}, true)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp dto.InvoiceResponse
	s.decode(w, &resp)
	return &resp
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, false)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestRequiresAuthentication() {
	w := s.do(http.MethodGet, "/v1/invoices", nil, false)
	s.Equal(http.StatusUnauthorized, w.Code)

	var resp ierr.ErrorResponse
	s.decode(w, &resp)
	s.False(resp.Success)
}

func (s *RouterSuite) TestInvoiceLifecycle() {
	created := s.createInvoice()
	s.Equal(int64(11000), created.Total)
	s.Equal(types.InvoiceStatusDraft, created.Status)

	w := s.do(http.MethodPost, "/v1/invoices/"+created.ID+"/send", nil, true)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var sent dto.SendInvoiceResponse
	s.decode(w, &sent)
	s.True(sent.StateUpdated)
	s.True(sent.Delivered)

	w = s.do(http.MethodGet, "/public/invoices/"+created.PublicID, nil, false)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var public dto.PublicInvoiceResponse
	s.decode(w, &public)
	s.Equal(types.InvoiceStatusViewed, public.Status)

	w = s.do(http.MethodPost, "/v1/invoices/"+created.ID+"/payments", dto.RecordPaymentRequest{
		Amount: 20000,
		Method: types.PaymentMethodCash,
	}, true)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/v1/invoices/"+created.ID+"/payments", dto.RecordPaymentRequest{
		Amount: 11000,
		Method: types.PaymentMethodCash,
	}, true)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/invoices/"+created.ID, nil, true)
	s.Require().Equal(http.StatusOK, w.Code)
	var got dto.InvoiceResponse
	s.decode(w, &got)
	s.Equal(types.InvoiceStatusPaid, got.Status)
	s.Equal(int64(0), got.RemainingAmount)

	w = s.do(http.MethodGet, "/v1/invoices/"+created.ID+"/events", nil, true)
	s.Require().Equal(http.StatusOK, w.Code)
	var events dto.ListInvoiceEventsResponse
	s.decode(w, &events)
	s.NotEmpty(events.Items)
}

func (s *RouterSuite) TestSendInvoice_DeliveryFailure() {
	created := s.createInvoice()
	s.GetEmailSender().Err = errors.New("mailbox unavailable")

	w := s.do(http.MethodPost, "/v1/invoices/"+created.ID+"/send", nil, true)
	s.Require().Equal(http.StatusBadGateway, w.Code)

	var resp dto.SendInvoiceResponse
	s.decode(w, &resp)
	s.True(resp.StateUpdated)
	s.False(resp.Delivered)
	s.Equal(types.InvoiceStatusSent, resp.Invoice.Status)

	s.GetEmailSender().Err = nil
	w = s.do(http.MethodPost, "/v1/invoices/"+created.ID+"/resend", nil, true)
	s.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *RouterSuite) TestPublicInvoice_Unknown() {
	w := s.do(http.MethodGet, "/public/invoices/INVNOPE", nil, false)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestStripeWebhook_MissingSignature() {
	w := s.do(http.MethodPost, "/webhooks/stripe", map[string]string{"id": "evt_1"}, false)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestCronMarkOverdue() {
	w := s.doCron("/v1/cron/invoices/mark-overdue", map[string]string{"x-internal-key": testInternalKey})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.MarkOverdueResponse
	s.decode(w, &resp)
	s.Equal(0, resp.Failed)
}

func (s *RouterSuite) TestCron_RequiresInternalKey() {
	paths := []string{
		"/v1/cron/invoices/mark-overdue",
		"/v1/cron/recurring-invoices/process",
		"/v1/cron/follow-ups/process",
	}

	token, err := auth.NewProvider(s.GetConfig()).GenerateToken(auth.Claims{UserID: types.DefaultUserID}, time.Hour)
	s.Require().NoError(err)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "tenant api key", headers: map[string]string{"x-api-key": testAPIKey}, want: http.StatusUnauthorized},
		{name: "tenant bearer token", headers: map[string]string{types.HeaderAuthorization: "Bearer " + token}, want: http.StatusUnauthorized},
		{name: "tenant key in internal header", headers: map[string]string{"x-internal-key": testAPIKey}, want: http.StatusUnauthorized},
		{name: "no credentials", headers: nil, want: http.StatusUnauthorized},
		{name: "internal key", headers: map[string]string{"x-internal-key": testInternalKey}, want: http.StatusOK},
	}

	for _, tt := range tests {
		for _, path := range paths {
			s.Run(tt.name+" "+path, func() {
				w := s.doCron(path, tt.headers)
				s.Equal(tt.want, w.Code, w.Body.String())
			})
		}
	}
}

func (s *RouterSuite) TestListInvoices_Filter() {
	s.createInvoice()

	w := s.do(http.MethodGet, "/v1/invoices?statuses=DRAFT&limit=10", nil, true)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp dto.ListInvoicesResponse
	s.decode(w, &resp)
	s.Len(resp.Items, 1)

	w = s.do(http.MethodGet, "/v1/invoices?statuses=PAID", nil, true)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &resp)
	s.Empty(resp.Items)

	w = s.do(http.MethodGet, "/v1/invoices?limit=5000", nil, true)
	s.Equal(http.StatusBadRequest, w.Code)
}
