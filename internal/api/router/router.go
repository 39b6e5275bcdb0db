package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oakwellhealth/scheduling-platform/internal/http/handlers"
	httpmiddleware "github.com/oakwellhealth/scheduling-platform/internal/http/middleware"
	"github.com/oakwellhealth/scheduling-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Scheduling         *handlers.SchedulingHandler
	Policy             *handlers.PolicyHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// RateLimitPerSecond throttles the tenant-scoped API per client IP;
	// zero disables throttling.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// AdminJWTSecret guards policy mutation when set.
	AdminJWTSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		if cfg.Scheduling != nil {
			public.Get("/health", cfg.Scheduling.HealthCheck)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Tenant-scoped scheduling API
	r.Route("/scheduling", func(api chi.Router) {
		api.Use(requireTenantID)
		if cfg.RateLimitPerSecond > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		}

		if cfg.Scheduling != nil {
			api.Post("/holds", cfg.Scheduling.CreateHold)
			api.Post("/holds/{holdID}/cancel", cfg.Scheduling.CancelHold)
			api.Post("/bookings", cfg.Scheduling.CreateBooking)
			api.Post("/bookings/{bookingID}/confirm", cfg.Scheduling.ConfirmBooking)
			api.Post("/bookings/{bookingID}/reschedule", cfg.Scheduling.RescheduleBooking)
			api.Post("/bookings/{bookingID}/cancel", cfg.Scheduling.CancelBooking)
			api.Post("/bookings/{bookingID}/no-show", cfg.Scheduling.MarkNoShow)
			api.Post("/bookings/{bookingID}/payment-status", cfg.Scheduling.RecordPaymentStatus)
			api.Post("/bookings/{bookingID}/begin", cfg.Scheduling.BeginAppointment)
			api.Post("/bookings/{bookingID}/complete", cfg.Scheduling.CompleteAppointment)
			api.Post("/coverage", cfg.Scheduling.ApplyCoverage)
			api.Post("/coverage/{coverageID}/release", cfg.Scheduling.ReleaseCoverage)
		}
		if cfg.Policy != nil {
			api.Get("/clinics/{clinicID}/policy", cfg.Policy.GetPolicy)
			if cfg.AdminJWTSecret != "" {
				api.With(httpmiddleware.AdminJWT(cfg.AdminJWTSecret)).
					Put("/clinics/{clinicID}/policy", cfg.Policy.UpdatePolicy)
			} else {
				api.Put("/clinics/{clinicID}/policy", cfg.Policy.UpdatePolicy)
			}
		}
	})

	return r
}
