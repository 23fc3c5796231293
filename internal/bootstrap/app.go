package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xopay/notify-service/internal/application/currency"
	"github.com/xopay/notify-service/internal/application/delivery"
	"github.com/xopay/notify-service/internal/application/notify"
	"github.com/xopay/notify-service/internal/application/report"
	"github.com/xopay/notify-service/internal/application/transaction"
	"github.com/xopay/notify-service/internal/config"
	rediscache "github.com/xopay/notify-service/internal/infrastructure/caching/redis"
	"github.com/xopay/notify-service/internal/infrastructure/client"
	"github.com/xopay/notify-service/internal/infrastructure/db/postgres"
	infraemail "github.com/xopay/notify-service/internal/infrastructure/email"
	rmq "github.com/xopay/notify-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/xopay/notify-service/internal/infrastructure/rates"
	"github.com/xopay/notify-service/internal/infrastructure/sms"
	"github.com/xopay/notify-service/internal/logger"
	"github.com/xopay/notify-service/internal/security"
	"github.com/xopay/notify-service/internal/transport/http/handlers"
	authmw "github.com/xopay/notify-service/internal/transport/http/middleware"
	"github.com/xopay/notify-service/internal/transport/http/router"
)

const bootTimeout = 10 * time.Second

type App struct {
	cfg       *config.Config
	consumer  *rmq.Consumer
	scheduler *currency.Scheduler
	payments  *transaction.Handler
	mailer    *infraemail.Sender
	texter    *sms.Sender
	server    *http.Server
}

func NewApp() (*App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger.Init(logger.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	signer, err := security.NewSigner(cfg.AuthKey, cfg.AuthAlgorithm, cfg.AuthSystemUserID, cfg.AuthTokenLifetime)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), bootTimeout)
	defer cancel()

	// Rule storage
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store := postgres.New(db)

	// Outbound channels
	api := client.New(signer, logger.Component("api_client"))
	mailer := infraemail.NewSender(infraemail.Config{
		Host:          cfg.MailServer,
		Port:          cfg.MailPort,
		Username:      cfg.MailUsername,
		Password:      cfg.MailPassword,
		DefaultSender: cfg.MailDefaultSender,
	}, logger.Component("email_sender"))
	texter := sms.NewSender(0, logger.Component("sms_sender"))
	reporter := report.NewReporter(api, mailer, cfg.AdminBaseURL, logger.Logger)

	// Subscriber cache (optional)
	var cache notify.SubscriberCache
	var cacheCleanup func()
	if cfg.RedisAddr != "" {
		rc, err := rediscache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SubscribersCacheTTL, logger.Logger)
		if err != nil {
			log.Warn().Err(err).
				Str("addr", cfg.RedisAddr).
				Msg("redis unreachable, dispatching without subscriber cache")
		} else {
			cache = rc
			cacheCleanup = func() { _ = rc.Close() }
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Msg("redis enabled for subscriber cache")
		}
	} else {
		log.Info().Msg("redis disabled (subscriber cache)")
	}

	// Notify engine with the rule cache warmed before any consuming starts.
	engine := notify.NewEngine(notify.Config{
		Queue:        cfg.QueueRequest,
		AdminBaseURL: cfg.AdminBaseURL,
	}, store, api, mailer, cache, logger.Logger)
	if err := engine.Reload(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	// Currency refresh
	sources := []rates.Source{
		rates.NewPrivatBank(nil, logger.Component("rates")),
		rates.NewAlfaBank(nil, logger.Component("rates")),
	}
	currencySvc := currency.NewService(sources, api, reporter, cfg.AdminBaseURL, logger.Logger)
	scheduler := currency.NewScheduler(cfg.UpdateHours, cfg.Location, currencySvc, logger.Logger)

	// Queue consumers
	payments := transaction.NewHandler(api, reporter, cfg.QueueTransStatus, cfg.ClientBaseURL, logger.Logger)
	consumer := rmq.NewConsumer(rmq.Config{URL: cfg.AMQPURL()}, []rmq.Handler{
		payments,
		delivery.NewEmailHandler(mailer, cfg.QueueEmail, logger.Logger),
		delivery.NewSMSHandler(texter, cfg.QueueSMS, logger.Logger),
		engine,
	}, logger.Logger)

	// Admin HTTP API
	rules := handlers.NewRulesHandler(store, engine, logger.Logger)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(rules, handlers.NewHealthHandler(), authmw.NewAuth(signer), cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	app := &App{
		cfg:       cfg,
		consumer:  consumer,
		scheduler: scheduler,
		payments:  payments,
		mailer:    mailer,
		texter:    texter,
		server:    srv,
	}

	cleanup := func() {
		log.Info().Msg("releasing resources")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		_ = app.Stop(ctx)
		if cacheCleanup != nil {
			cacheCleanup()
		}
		_ = db.Close()
	}

	return app, cleanup, nil
}

// Start launches the consumer and the scheduler, then blocks serving the
// admin API until Stop shuts the listener down.
func (a *App) Start(ctx context.Context) error {
	log.Info().Msg("starting queue consumer")
	if err := a.consumer.Start(ctx); err != nil {
		return err
	}

	log.Info().Msg("starting currency scheduler")
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	log.Info().Str("addr", a.server.Addr).Str("env", a.cfg.Env).Msg("admin api listening")
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains components in dependency order: no new HTTP work, no new
// refreshes, no new deliveries, then the senders. Safe to call twice.
func (a *App) Stop(ctx context.Context) error {
	log.Info().Msg("shutting down notify service")

	if a.server != nil {
		_ = a.server.Shutdown(ctx)
	}
	if a.scheduler != nil {
		_ = a.scheduler.Stop(ctx)
	}
	if a.consumer != nil {
		_ = a.consumer.Stop(ctx)
	}
	if a.payments != nil {
		a.waitPayments(ctx)
	}
	if a.mailer != nil {
		a.mailer.Stop()
	}
	if a.texter != nil {
		a.texter.Stop()
	}
	return nil
}

// waitPayments gives background status retries until the shutdown deadline
// to finish; whatever is still pending dies with the process.
func (a *App) waitPayments(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.payments.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("payment status retries still pending at shutdown")
	}
}
