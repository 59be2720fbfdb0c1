package api

import (
	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/api/cron"
	v1 "github.com/invoicekit/invoicekit/internal/api/v1"
	"github.com/invoicekit/invoicekit/internal/config"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/rest/middleware"
	"github.com/invoicekit/invoicekit/internal/types"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type Handlers struct {
	Health    *v1.HealthHandler
	Client    *v1.ClientHandler
	Invoice   *v1.InvoiceHandler
	Payment   *v1.PaymentHandler
	Recurring *v1.RecurringInvoiceHandler
	FollowUp  *v1.FollowUpHandler
	Public    *v1.PublicInvoiceHandler
	Webhook   *v1.WebhookHandler

	// Cron jobs
	CronInvoice   *cron.InvoiceHandler
	CronRecurring *cron.RecurringInvoiceHandler
	CronFollowUp  *cron.FollowUpHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	if cfg.Logging.Level != types.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Client-facing invoice link, no credentials
	public := router.Group("/public")
	public.Use(middleware.RateLimitMiddleware(cfg.Public.RateLimit, logger))
	{
		public.GET("/invoices/:public_id", handlers.Public.GetPublicInvoice)
		public.POST("/invoices/:public_id/checkout", handlers.Public.CreateCheckoutSession)
	}

	// Authenticated by the stripe signature
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", handlers.Webhook.HandleStripeWebhook)
	}

	v1Private := router.Group("/v1")
	v1Private.Use(middleware.AuthenticateMiddleware(cfg, logger))

	clients := v1Private.Group("/clients")
	{
		clients.POST("", handlers.Client.CreateClient)
		clients.GET("", handlers.Client.ListClients)
		clients.GET("/:id", handlers.Client.GetClient)
		clients.PUT("/:id", handlers.Client.UpdateClient)
		clients.DELETE("/:id", handlers.Client.DeleteClient)
	}

	invoices := v1Private.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/status-counts", handlers.Invoice.GetStatusCounts)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.PUT("/:id", handlers.Invoice.UpdateInvoice)
		invoices.DELETE("/:id", handlers.Invoice.DeleteInvoice)
		invoices.POST("/:id/duplicate", handlers.Invoice.DuplicateInvoice)
		invoices.POST("/:id/send", handlers.Invoice.SendInvoice)
		invoices.POST("/:id/resend", handlers.Invoice.ResendInvoice)
		invoices.GET("/:id/events", handlers.Invoice.ListEvents)

		invoices.POST("/:id/payments", handlers.Payment.RecordPayment)
		invoices.GET("/:id/payments", handlers.Payment.ListPayments)
		invoices.POST("/:id/mark-paid", handlers.Payment.MarkPaid)
		invoices.POST("/:id/checkout", handlers.Payment.CreateCheckoutSession)

		invoices.GET("/:id/follow-ups", handlers.FollowUp.ListJobs)
		invoices.POST("/:id/follow-ups", handlers.FollowUp.ScheduleForInvoice)
	}

	payments := v1Private.Group("/payments")
	{
		payments.DELETE("/:id", handlers.Payment.DeletePayment)
	}

	recurring := v1Private.Group("/recurring-invoices")
	{
		recurring.POST("", handlers.Recurring.CreateRecurringInvoice)
		recurring.GET("", handlers.Recurring.ListRecurringInvoices)
		recurring.GET("/:id", handlers.Recurring.GetRecurringInvoice)
		recurring.PUT("/:id", handlers.Recurring.UpdateRecurringInvoice)
		recurring.DELETE("/:id", handlers.Recurring.DeleteRecurringInvoice)
		recurring.POST("/:id/pause", handlers.Recurring.PauseRecurringInvoice)
		recurring.POST("/:id/resume", handlers.Recurring.ResumeRecurringInvoice)
		recurring.POST("/:id/cancel", handlers.Recurring.CancelRecurringInvoice)
		recurring.POST("/:id/run", handlers.Recurring.RunRecurringInvoice)
	}

	followUpRule := v1Private.Group("/follow-up-rule")
	{
		followUpRule.GET("", handlers.FollowUp.GetRule)
		followUpRule.PUT("", handlers.FollowUp.UpdateRule)
	}

	// Cron routes, internal key only
	cronGroup := router.Group("/v1/cron")
	cronGroup.Use(middleware.InternalAuthMiddleware(cfg, logger))
	{
		cronGroup.POST("/invoices/mark-overdue", handlers.CronInvoice.MarkOverdueInvoices)
		cronGroup.POST("/recurring-invoices/process", handlers.CronRecurring.ProcessDueRecurringInvoices)
		cronGroup.POST("/follow-ups/process", handlers.CronFollowUp.ProcessDueFollowUps)
	}

	return router
}
