package service

import (
	"github.com/invoicekit/invoicekit/internal/cache"
	"github.com/invoicekit/invoicekit/internal/config"
	"github.com/invoicekit/invoicekit/internal/domain/client"
	"github.com/invoicekit/invoicekit/internal/domain/followup"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/domain/payment"
	"github.com/invoicekit/invoicekit/internal/domain/recurring"
	"github.com/invoicekit/invoicekit/internal/email"
	"github.com/invoicekit/invoicekit/internal/integration/stripe"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	// Repositories
	ClientRepo       client.Repository
	InvoiceRepo      invoice.Repository
	InvoiceEventRepo invoice.EventRepository
	PaymentRepo      payment.Repository
	RecurringRepo    recurring.Repository
	FollowUpRepo     followup.Repository

	// Collaborators
	EmailSender email.Sender
	Stripe      stripe.Gateway
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	clientRepo client.Repository,
	invoiceRepo invoice.Repository,
	invoiceEventRepo invoice.EventRepository,
	paymentRepo payment.Repository,
	recurringRepo recurring.Repository,
	followUpRepo followup.Repository,
	emailSender email.Sender,
	stripeGateway stripe.Gateway,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		DB:               db,
		Cache:            cache,
		ClientRepo:       clientRepo,
		InvoiceRepo:      invoiceRepo,
		InvoiceEventRepo: invoiceEventRepo,
		PaymentRepo:      paymentRepo,
		RecurringRepo:    recurringRepo,
		FollowUpRepo:     followUpRepo,
		EmailSender:      emailSender,
		Stripe:           stripeGateway,
	}
}
