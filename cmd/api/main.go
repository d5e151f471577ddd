package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tireshop_backend/internal/appointments"
	appointmentservice "tireshop_backend/internal/appointments/service"
	"tireshop_backend/internal/audit"
	"tireshop_backend/internal/calendar"
	"tireshop_backend/internal/email"
	"tireshop_backend/internal/estimates"
	"tireshop_backend/internal/events"
	apphttp "tireshop_backend/internal/http"
	"tireshop_backend/internal/http/router"
	"tireshop_backend/internal/notification"
	"tireshop_backend/internal/payments"
	"tireshop_backend/internal/scheduler"
	"tireshop_backend/internal/sms"
	"tireshop_backend/internal/vehicle"
	"tireshop_backend/platform/config"
	"tireshop_backend/platform/db"
	"tireshop_backend/platform/logger"
	"tireshop_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	reminderScheduler, closeScheduler := initReminderScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	redisCache, closeCache := initRedisCache(cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	var mailer email.Sender = email.NoopSender{}
	if cfg.GetEmailEnabled() {
		mailer = email.NewSMTPSender(cfg)
		log.Info("smtp email sender initialized", "host", cfg.GetSMTPHost())
	} else {
		log.Warn("email delivery disabled; notifications are logged only")
	}

	var paymentGateway appointmentservice.PaymentGateway
	if cfg.IsPaymentMockEnabled() || cfg.GetMercadoPagoAccessToken() != "" {
		gw, err := payments.New(cfg, log)
		if err != nil {
			log.Error("failed to initialize payment gateway", "error", err)
			panic("failed to initialize payment gateway: " + err.Error())
		}
		paymentGateway = gw
	} else {
		log.Warn("payment gateway not configured; deposits are disabled")
	}

	smsClient := sms.New(cfg)
	calendarClient := calendar.New(cfg)
	auditLog := audit.New(pool, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	appointmentsModule := appointments.New(pool, eventBus, paymentGateway, auditLog, val, log)
	estimatesModule := estimates.New(pool, eventBus, val, log)
	vehicleModule := vehicle.New(cfg, redisCache, log)

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(mailer, smsClient, calendarClient, appointmentsModule.Repo, reminderScheduler, auditLog, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			appointmentsModule,
			estimatesModule,
			vehicleModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.ReminderScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; appointment reminders disabled")
		return scheduler.NoopScheduler{}, nil
	}

	reminderClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return scheduler.NoopScheduler{}, nil
	}

	return reminderClient, func() {
		_ = reminderClient.Close()
	}
}

func initRedisCache(cfg *config.Config, log *logger.Logger) (*redis.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; vehicle lookup cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL; vehicle lookup cache disabled", "error", err)
		return nil, nil
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig.InsecureSkipVerify = true
	}

	client := redis.NewClient(opt)
	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
