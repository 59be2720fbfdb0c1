package testutil

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/cache"
	"github.com/invoicekit/invoicekit/internal/config"
	"github.com/invoicekit/invoicekit/internal/domain/client"
	"github.com/invoicekit/invoicekit/internal/domain/followup"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/domain/payment"
	"github.com/invoicekit/invoicekit/internal/domain/recurring"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/invoicekit/invoicekit/internal/validator"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	ClientRepo       client.Repository
	InvoiceRepo      invoice.Repository
	InvoiceEventRepo invoice.EventRepository
	PaymentRepo      payment.Repository
	RecurringRepo    recurring.Repository
	FollowUpRepo     followup.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	db     *MockPostgresClient
	email  *RecordingEmailSender
	stripe *MockStripeGateway
	cache  cache.Cache
	logger *logger.Logger
	config *config.Configuration
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Server.PublicBaseURL = "https://invoices.example.com"
	s.config = cfg
	s.logger = NewTestLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.now = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s.setupContext()
	s.setupStores()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContextAt(s.now)
}

func (s *BaseServiceTestSuite) setupStores() {
	clients := NewInMemoryClientStore()
	invoices := NewInMemoryInvoiceStore()
	events := NewInMemoryInvoiceEventStore()
	payments := NewInMemoryPaymentStore()
	recurringInvoices := NewInMemoryRecurringInvoiceStore()
	followUps := NewInMemoryFollowUpStore()

	s.stores = Stores{
		ClientRepo:       clients,
		InvoiceRepo:      invoices,
		InvoiceEventRepo: events,
		PaymentRepo:      payments,
		RecurringRepo:    recurringInvoices,
		FollowUpRepo:     followUps,
	}

	s.db = NewMockPostgresClient(s.logger, clients, invoices, events, payments, recurringInvoices, followUps)
	s.email = NewRecordingEmailSender()
	s.stripe = NewMockStripeGateway()
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.ClientRepo.(*InMemoryClientStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.InvoiceEventRepo.(*InMemoryInvoiceEventStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.RecurringRepo.(*InMemoryRecurringInvoiceStore).Clear()
	s.stores.FollowUpRepo.(*InMemoryFollowUpStore).Clear()
	s.email.Reset()
	s.cache.Flush(s.ctx)
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context, pinned to GetNow
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// SetNow moves the pinned clock of the test context
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now.UTC()
	s.ctx = types.WithNow(s.ctx, s.now)
}

// GetContextForUser returns the test context acting as another user
func (s *BaseServiceTestSuite) GetContextForUser(userID string) context.Context {
	return types.SetUserID(s.ctx, userID)
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetEmailSender returns the recording email sender
func (s *BaseServiceTestSuite) GetEmailSender() *RecordingEmailSender {
	return s.email
}

// GetStripe returns the mocked processor gateway
func (s *BaseServiceTestSuite) GetStripe() *MockStripeGateway {
	return s.stripe
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

// CreateTestClient stores a client owned by the context user
func (s *BaseServiceTestSuite) CreateTestClient(ctx context.Context, name string) *client.Client {
	c := &client.Client{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CLIENT),
		Name:      name,
		Email:     "billing@" + lo.SnakeCase(name) + ".example.com",
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.stores.ClientRepo.Create(ctx, c))
	return c
}
