package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/boutique-checkout/api/controllers"
	webhookcontrollers "github.com/angelmondragon/boutique-checkout/api/controllers/webhooks"
	"github.com/angelmondragon/boutique-checkout/api/middleware"
	"github.com/angelmondragon/boutique-checkout/pkg/config"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Gatherer prometheus.Gatherer

	Bags     controllers.BagStore
	Checkout controllers.CheckoutService

	Webhooks      webhookcontrollers.EventDispatcher
	WebhookGuard  webhookcontrollers.EventGuard
	SigningClient webhookcontrollers.SigningClient
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	stripeWebhook := webhookcontrollers.StripeWebhook(deps.Webhooks, deps.SigningClient, deps.WebhookGuard, logg)
	r.Post("/api/v1/webhooks/stripe", stripeWebhook)
	r.Post("/checkout/wh/", stripeWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.CORS(cfg.App.CORSOrigins),
			middleware.Session(cfg.Checkout.SessionCookie, cfg.Checkout.SessionTTL, cfg.App.IsProd()),
			middleware.OptionalAuth(cfg.JWT, logg),
		)

		r.Get("/bag", controllers.BagGet(deps.Bags, logg))
		r.Put("/bag", controllers.BagPut(deps.Bags, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", controllers.CheckoutStart(deps.Checkout, logg))
			r.Post("/", controllers.CheckoutSubmit(deps.Checkout, logg))
			r.Post("/cache-data", controllers.CheckoutCacheData(deps.Checkout, logg))
			r.Get("/success/{orderNumber}", controllers.CheckoutSuccess(deps.Checkout, logg))
		})
	})

	return r
}
