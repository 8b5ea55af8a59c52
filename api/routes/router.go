package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carebridgehealth/carebridge-backend/api/controllers"
	webhookcontrollers "github.com/carebridgehealth/carebridge-backend/api/controllers/webhooks"
	"github.com/carebridgehealth/carebridge-backend/api/middleware"
	"github.com/carebridgehealth/carebridge-backend/internal/accounts"
	"github.com/carebridgehealth/carebridge-backend/internal/activity"
	checkoutsvc "github.com/carebridgehealth/carebridge-backend/internal/checkout"
	"github.com/carebridgehealth/carebridge-backend/internal/clinics"
	"github.com/carebridgehealth/carebridge-backend/internal/plans"
	stripewebhook "github.com/carebridgehealth/carebridge-backend/internal/webhooks/stripe"
	"github.com/carebridgehealth/carebridge-backend/pkg/config"
	"github.com/carebridgehealth/carebridge-backend/pkg/db"
	"github.com/carebridgehealth/carebridge-backend/pkg/enums"
	"github.com/carebridgehealth/carebridge-backend/pkg/logger"
	"github.com/carebridgehealth/carebridge-backend/pkg/metrics"
	"github.com/carebridgehealth/carebridge-backend/pkg/pubsub"
	"github.com/carebridgehealth/carebridge-backend/pkg/redis"
	"github.com/carebridgehealth/carebridge-backend/pkg/stripe"
)

type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB     db.Pinger
	Redis  redis.Pinger
	PubSub pubsub.Pinger

	Accounts accounts.Service
	Checkout checkoutsvc.Service
	Plans    plans.Service
	Activity activity.Service
	Clinics  clinics.Repository

	StripeClient   *stripe.Client
	WebhookService webhookcontrollers.StripeWebhookService
	WebhookGuard   *stripewebhook.IdempotencyGuard
	WebhookMetrics *metrics.WebhookMetrics
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, deps.PubSub, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookService, deps.StripeClient, deps.WebhookGuard, deps.WebhookMetrics, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(deps.Accounts, logg))
		r.Post("/login", controllers.AuthLogin(deps.Accounts, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Post("/logout", controllers.AuthLogout(deps.Accounts, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", controllers.ListPlans(deps.Plans, logg))
		r.Get("/plans/{planID}", controllers.GetPlan(deps.Plans, logg))
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/plan", controllers.PlanCheckout(deps.Checkout, logg))
			r.Post("/base-fee", controllers.BaseFeeCheckout(deps.Checkout, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", controllers.ListPlans(deps.Plans, logg))
			r.Post("/", controllers.CreatePlan(deps.Plans, logg))
			r.Get("/{planID}", controllers.GetPlan(deps.Plans, logg))
			r.Patch("/{planID}", controllers.UpdatePlan(deps.Plans, logg))
		})
		r.Get("/activity", controllers.ActivityFeed(deps.Activity, logg))
		r.Get("/clinics", controllers.ListClinics(deps.Clinics, logg))
	})

	return r
}
