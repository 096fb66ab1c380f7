package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lustre-salon/salon-backend/internal/availability"
	"github.com/lustre-salon/salon-backend/internal/booking"
	"github.com/lustre-salon/salon-backend/internal/cart"
	"github.com/lustre-salon/salon-backend/internal/handlers"
	"github.com/lustre-salon/salon-backend/internal/outbox"
	"github.com/lustre-salon/salon-backend/internal/payments"
	"github.com/lustre-salon/salon-backend/internal/schedule"
	"github.com/lustre-salon/salon-backend/internal/storage"
	"github.com/lustre-salon/salon-backend/internal/sweeper"
	"github.com/lustre-salon/salon-backend/libs/config"
	"github.com/lustre-salon/salon-backend/libs/db"
	"github.com/lustre-salon/salon-backend/libs/httpx"
	"github.com/lustre-salon/salon-backend/libs/kafkax"
	otelx "github.com/lustre-salon/salon-backend/libs/otel"
	"github.com/lustre-salon/salon-backend/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "salon-api")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	zone, err := schedule.LoadZone(config.String("BUSINESS_TIMEZONE", schedule.DefaultTimezone))
	if err != nil {
		logger.Error("invalid business timezone", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.String("REDIS_ADDR", "localhost:6379"),
		Password: config.String("REDIS_PASSWORD", ""),
	})
	defer func() { _ = rdb.Close() }()

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	outboxRepo := outbox.NewRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo, zone)
	cartStore := cart.NewStore(rdb, config.Duration("CART_TTL", cart.DefaultTTL))

	bookingEngine := booking.NewEngine(apptRepo, zone)
	availabilitySvc := availability.NewService(apptRepo, zone)

	stripeKey, err := config.RequiredString("STRIPE_SECRET_KEY")
	if err != nil {
		panic(err)
	}
	provider := payments.NewStripeProvider(stripeKey, config.String("STRIPE_CURRENCY", "usd"))
	paymentEngine := payments.NewEngine(provider, cartStore, apptRepo, outboxRepo, zone, logger, payments.EngineConfig{
		SuccessURL: config.String("CHECKOUT_SUCCESS_URL", "http://localhost:3000/payment/success"),
		CancelURL:  config.String("CHECKOUT_CANCEL_URL", "http://localhost:3000/payment/cancel"),
		MinCharge:  config.Float("MIN_CHARGE_DOLLARS", payments.MinChargeDollars),
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	lifecycle := sweeper.New(apptRepo, zone, logger, config.Duration("SWEEP_INTERVAL", time.Minute))
	go lifecycle.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(bookingEngine, apptRepo, zone, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(availabilitySvc, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentEngine, provider, logger)
	webhookHandler := handlers.NewWebhookHandler(paymentEngine,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		logger,
	)
	invoiceHandler := handlers.NewInvoiceHandler(apptRepo, zone, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: cartStore.ReadyCheck()},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	authed := func(h http.HandlerFunc) http.Handler {
		return handlers.RequireAuth(h, jwtSecret)
	}

	mux.HandleFunc("/api/v1/public/availability", availabilityHandler.Occupied)
	mux.Handle("/api/v1/appointments/create", authed(bookingHandler.Create))
	mux.Handle("/api/v1/appointments/book-only", authed(bookingHandler.BookOnly))
	mux.Handle("/api/v1/appointments", authed(bookingHandler.List))
	mux.Handle("/api/v1/appointments/get", authed(bookingHandler.Get))
	mux.Handle("/api/v1/appointments/my", authed(bookingHandler.My))
	mux.Handle("/api/v1/appointments/by-date", authed(bookingHandler.ByDate))
	mux.Handle("/api/v1/appointments/status", authed(bookingHandler.UpdateStatus))
	mux.Handle("/api/v1/appointments/delete", authed(bookingHandler.Delete))
	mux.Handle("/api/v1/payments/checkout", authed(paymentHandler.CreateCheckout))
	mux.Handle("/api/v1/payments/confirm", authed(paymentHandler.Confirm))
	mux.HandleFunc("/api/v1/payments/webhooks/stripe", webhookHandler.Stripe)
	mux.Handle("/api/v1/invoices/pending", authed(invoiceHandler.PendingCreatedBetween))

	limit := config.Int("RATE_LIMIT", 120)
	window := config.Duration("RATE_LIMIT_WINDOW", time.Minute)
	var rateLimitMW httpx.Middleware
	if config.String("RATE_LIMIT_BACKEND", "redis") == "memory" {
		rateLimitMW = httpx.NewRateLimiter(limit, window).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "limit", limit)
	} else {
		rl := httpx.NewRedisRateLimiter(rdb, limit, window, config.String("RATE_LIMIT_PREFIX", service))
		rateLimitMW = rl.Middleware(logger, true)
		logger.Info("rate limiting enabled (redis)", "limit", limit)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ",")),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 30*time.Second)),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "salon-api")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
