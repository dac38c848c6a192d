package router

import (
	"net/http"

	"coupon-engine/internal/handler"
	"coupon-engine/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// New creates a new HTTP router with all routes and middleware configured.
// Inbound W3C trace context is extracted before routing, so service spans
// join the caller's trace.
func New(
	couponHandler *handler.CouponHandler,
	metricsHandler http.Handler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Applied in order: RequestID -> Recovery -> Logging -> CORS -> APIKeyAuth
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(apiKey, logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/coupons", func(r chi.Router) {
		r.Post("/", couponHandler.Create)
		r.Get("/", couponHandler.List)

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", couponHandler.GetByCode)
			r.Post("/apply", couponHandler.Apply)
			r.Post("/redeem", couponHandler.Redeem)
			r.Get("/redemptions", couponHandler.ListRedemptions)
		})
	})

	return otelhttp.NewHandler(r, "coupon-engine",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
