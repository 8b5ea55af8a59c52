package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/carebridgehealth/carebridge-backend/api/routes"
	"github.com/carebridgehealth/carebridge-backend/internal/accounts"
	"github.com/carebridgehealth/carebridge-backend/internal/activity"
	"github.com/carebridgehealth/carebridge-backend/internal/billing"
	checkoutsvc "github.com/carebridgehealth/carebridge-backend/internal/checkout"
	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/internal/patients"
	"github.com/carebridgehealth/carebridge-backend/internal/plans"
	"github.com/carebridgehealth/carebridge-backend/internal/profiles"
	stripewebhook "github.com/carebridgehealth/carebridge-backend/internal/webhooks/stripe"
	"github.com/carebridgehealth/carebridge-backend/pkg/config"
	"github.com/carebridgehealth/carebridge-backend/pkg/db"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
	"github.com/carebridgehealth/carebridge-backend/pkg/metrics"
	"github.com/carebridgehealth/carebridge-backend/pkg/migrate"
	"github.com/carebridgehealth/carebridge-backend/pkg/pubsub"
	"github.com/carebridgehealth/carebridge-backend/pkg/redis"
	"github.com/carebridgehealth/carebridge-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	// Pub/Sub fan-out is optional; without a project the feed still persists.
	var activityPublisher activity.Publisher
	var pubsubPinger pubsub.Pinger
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		activityPublisher = pubsubClient.ActivityPublisher()
		pubsubPinger = pubsubClient
	}

	userRepo := accounts.NewRepository(dbClient.DB())
	patientRepo := patients.NewRepository(dbClient.DB())
	clinicRepo := clinics.NewRepository(dbClient.DB())
	planRepo := plans.NewRepository(dbClient.DB())
	billingRepo := billing.NewRepository(dbClient.DB())
	activityRepo := activity.NewRepository(dbClient.DB())

	activityService, err := activity.NewService(activityRepo, activityPublisher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create activity service", err)
		os.Exit(1)
	}

	plansService, err := plans.NewService(planRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create plans service", err)
		os.Exit(1)
	}

	poller, err := profiles.NewPoller(profiles.PolicyFromConfig(cfg.Profile), patientRepo, clinicRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create profile poller", err)
		os.Exit(1)
	}

	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Users:    userRepo,
		Patients: patientRepo,
		Clinics:  clinicRepo,
		Waiter:   poller,
		Tokens:   redisClient,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(cfg.Stripe, checkoutsvc.NewStripeClient(stripeClient), planRepo, patientRepo, clinicRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BillingRepo:       billingRepo,
		ClinicRepo:        clinicRepo,
		PatientRepo:       patientRepo,
		PlanRepo:          planRepo,
		Activity:          activityService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			PubSub:         pubsubPinger,
			Accounts:       accountsService,
			Checkout:       checkoutService,
			Plans:          plansService,
			Activity:       activityService,
			Clinics:        clinicRepo,
			StripeClient:   stripeClient,
			WebhookService: webhookService,
			WebhookGuard:   webhookGuard,
			WebhookMetrics: webhookMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
