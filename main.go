package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonpro-billing/config"
	"salonpro-billing/controllers"
	"salonpro-billing/repository"
	"salonpro-billing/routes"
	"salonpro-billing/services"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET not set")
	}

	db, err := config.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := config.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := repository.EnsureSettings(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to seed settings")
	}

	var locker services.Locker = services.NewLocalLocker()
	if cfg.RedisURL != "" {
		rdb, err := config.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		locker = services.NewRedisLocker(rdb, cfg.LockTTL())
	}

	var events services.EventPublisher = services.NopPublisher{}
	if cfg.KafkaBrokers != "" {
		events = services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info().Str("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	}
	defer events.Close()

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.TwilioEnabled() {
		notifier = services.NewTwilioNotifier(services.TwilioConfig{
			AccountSID:     cfg.TwilioAccountSID,
			AuthToken:      cfg.TwilioAuthToken,
			PhoneNumber:    cfg.TwilioPhoneNumber,
			WhatsAppNumber: cfg.TwilioWhatsAppNumber,
		})
	}

	repos := repository.New(db)
	invoiceService := services.NewInvoiceService(repos, locker, events, notifier)
	bookingService := services.NewBookingService(repos, locker)
	commissionService := services.NewCommissionService(repos, events)

	scheduler := services.NewScheduler(invoiceService, cfg.StockReconcileCron)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("invalid stock reconciliation schedule")
	}

	r := routes.SetupRouter(cfg, routes.Handlers{
		Invoices:    &controllers.InvoiceController{Invoices: invoiceService},
		Bookings:    &controllers.BookingController{Bookings: bookingService},
		Commissions: &controllers.CommissionController{Commissions: commissionService},
	})
	for _, route := range r.Routes() {
		log.Debug().Str("method", route.Method).Str("path", route.Path).Msg("route")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("billing API listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
