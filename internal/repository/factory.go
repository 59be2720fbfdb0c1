package repository

import (
	"github.com/invoicekit/invoicekit/internal/domain/client"
	"github.com/invoicekit/invoicekit/internal/domain/followup"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/domain/payment"
	"github.com/invoicekit/invoicekit/internal/domain/recurring"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	postgresRepo "github.com/invoicekit/invoicekit/internal/repository/postgres"
)

func NewClientRepository(db *postgres.DB, logger *logger.Logger) client.Repository {
	return postgresRepo.NewClientRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewInvoiceEventRepository(db *postgres.DB, logger *logger.Logger) invoice.EventRepository {
	return postgresRepo.NewInvoiceEventRepository(db, logger)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewRecurringInvoiceRepository(db *postgres.DB, logger *logger.Logger) recurring.Repository {
	return postgresRepo.NewRecurringInvoiceRepository(db, logger)
}

func NewFollowUpRepository(db *postgres.DB, logger *logger.Logger) followup.Repository {
	return postgresRepo.NewFollowUpRepository(db, logger)
}

// NewPostgresClient exposes the DB as the transaction client services depend on
func NewPostgresClient(db *postgres.DB) postgres.IClient {
	return db
}
