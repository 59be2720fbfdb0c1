package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	_ "github.com/invoicekit/invoicekit/docs/swagger"
	"github.com/invoicekit/invoicekit/internal/api"
	"github.com/invoicekit/invoicekit/internal/api/cron"
	v1 "github.com/invoicekit/invoicekit/internal/api/v1"
	"github.com/invoicekit/invoicekit/internal/cache"
	"github.com/invoicekit/invoicekit/internal/config"
	"github.com/invoicekit/invoicekit/internal/email"
	"github.com/invoicekit/invoicekit/internal/integration/stripe"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	"github.com/invoicekit/invoicekit/internal/repository"
	"github.com/invoicekit/invoicekit/internal/scheduler"
	"github.com/invoicekit/invoicekit/internal/service"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/invoicekit/invoicekit/internal/validator"
	_ "github.com/lib/pq"
	"go.uber.org/fx"
)

// @title InvoiceKit API
// @version 1.0
// @description Invoices, payments, recurring billing and reminders
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description Enter your API key in the format *x-api-key &lt;api-key&gt;**
// @securityDefinitions.apikey InternalKeyAuth
// @in header
// @name x-internal-key
// @description Internal key for batch job endpoints

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			repository.NewPostgresClient,

			// Collaborators
			email.NewEmailClient,
			stripe.NewClient,

			// Repositories
			repository.NewClientRepository,
			repository.NewInvoiceRepository,
			repository.NewInvoiceEventRepository,
			repository.NewPaymentRepository,
			repository.NewRecurringInvoiceRepository,
			repository.NewFollowUpRepository,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewClientService,
			service.NewInvoiceService,
			service.NewPaymentService,
			service.NewRecurringService,
			service.NewFollowUpService,
			service.NewStripeService,
		),
	)

	// API and scheduler
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
			scheduler.New,
		),
		fx.Invoke(
			registerDBHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	logger *logger.Logger,
	clientService service.ClientService,
	invoiceService service.InvoiceService,
	paymentService service.PaymentService,
	recurringService service.RecurringService,
	followUpService service.FollowUpService,
	stripeService service.StripeService,
) api.Handlers {
	return api.Handlers{
		Health:        v1.NewHealthHandler(logger),
		Client:        v1.NewClientHandler(clientService, logger),
		Invoice:       v1.NewInvoiceHandler(invoiceService, logger),
		Payment:       v1.NewPaymentHandler(paymentService, stripeService, logger),
		Recurring:     v1.NewRecurringInvoiceHandler(recurringService, logger),
		FollowUp:      v1.NewFollowUpHandler(followUpService, logger),
		Public:        v1.NewPublicInvoiceHandler(invoiceService, stripeService, logger),
		Webhook:       v1.NewWebhookHandler(stripeService, logger),
		CronInvoice:   cron.NewInvoiceHandler(invoiceService, logger),
		CronRecurring: cron.NewRecurringInvoiceHandler(recurringService, logger),
		CronFollowUp:  cron.NewFollowUpHandler(followUpService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

func registerDBHooks(lc fx.Lifecycle, db *postgres.DB, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing database connections...")
			db.Close()
			return nil
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	sched *scheduler.Scheduler,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startScheduler(lc, sched, cfg, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeScheduler:
		startScheduler(lc, sched, cfg, log)
	case types.ModeAWSLambdaAPI:
		startAWSLambdaAPI(r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

func startScheduler(lc fx.Lifecycle, sched *scheduler.Scheduler, cfg *config.Configuration, log *logger.Logger) {
	if !cfg.Scheduler.Enabled {
		log.Info("Scheduler disabled, periodic jobs run through the cron endpoints only")
		return
	}
	sched.RegisterWithLifecycle(lc)
}

func startAWSLambdaAPI(r *gin.Engine) {
	ginLambda := ginadapter.New(r)
	lambda.Start(ginLambda.ProxyWithContext)
}
