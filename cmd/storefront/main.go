package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/auth"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/catalog"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/config"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/db"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/handler"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/media"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/order"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/payment"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/site"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/transport"
)

const development = "development"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg.App)
	log.Info().Str("env", cfg.App.Env).Msg("Storefront API starting...")

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := pg.Migrate(ctx, cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}

	productSvc := catalog.NewService(catalog.NewRepository(pg.SQLX))
	orderRepo := order.NewRepository(pg.Pool)
	orderSvc := order.NewService(orderRepo, productSvc, cfg.App.ShippingFee)
	siteSvc := site.NewService(site.NewRepository(pg.Pool))
	paymentSvc := payment.NewService(
		orderRepo,
		payment.NewPaystack(cfg.Paystack, httpClient),
		payment.NewMpesa(cfg.Mpesa, httpClient),
		payment.Options{FrontendURL: cfg.App.FrontendURL, BackendURL: cfg.App.BackendURL},
	)
	mediaSvc, err := media.NewService(cfg.Cloudinary)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure media host")
	}
	authn := auth.New(cfg.Admin, cfg.App.Env != development)

	router := transport.NewRouter(log.Logger, authn, transport.Handlers{
		Products: handler.NewProductHandler(productSvc),
		Orders:   handler.NewOrderHandler(orderSvc),
		Site:     handler.NewSiteHandler(siteSvc),
		Upload:   handler.NewUploadHandler(mediaSvc),
		Payments: handler.NewPaymentHandler(paymentSvc),
		Auth:     handler.NewAuthHandler(authn),
		Admin:    handler.NewAdminHandler(orderSvc, productSvc),
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Storefront API stopped gracefully")
}

func setupLogger(app config.AppConfig) {
	level, err := zerolog.ParseLevel(app.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if app.Env == development {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	log.Logger = log.With().Str("service", app.Name).Logger()
}
