package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avelora/storefront/internal/checkout"
	"github.com/avelora/storefront/pkg/health"
	"github.com/avelora/storefront/pkg/middleware"
)

// NewRouter creates a chi router with all checkout coordinator routes.
func NewRouter(
	checkoutService *checkout.Service,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("checkout-coordinator"))

	// Health and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Checkout API endpoints
	checkoutHandler := NewCheckoutHandler(checkoutService, logger)

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Post("/", checkoutHandler.SubmitCheckout)
		r.Get("/{id}", checkoutHandler.GetSession)
		r.Post("/{id}/navigation", checkoutHandler.ReportNavigation)
		r.Post("/{id}/exit", checkoutHandler.ReportExit)
	})

	return r
}
