package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/odontosys/booking-wizard/internal/http/handlers"
	"github.com/odontosys/booking-wizard/internal/http/middleware"
	"github.com/odontosys/booking-wizard/pkg/logging"
)

// Config carries everything the router needs. All fields except
// MetricsHandler are required.
type Config struct {
	Logger             *logging.Logger
	Wizard             *handlers.WizardHandler
	PatientJWTSecret   string
	CORSAllowedOrigins []string
	MetricsHandler     http.Handler
}

// New assembles the HTTP routes and middleware stack.
func New(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/bookings/wizard", func(r chi.Router) {
		r.Use(middleware.PatientAuth(cfg.PatientJWTSecret))
		r.Post("/", cfg.Wizard.Start)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", cfg.Wizard.Get)
			r.Delete("/", cfg.Wizard.Abandon)
			r.Put("/selection", cfg.Wizard.UpdateSelection)
			r.Post("/selection/validate", cfg.Wizard.ValidateSelection)
			r.Post("/advance", cfg.Wizard.Advance)
			r.Post("/retreat", cfg.Wizard.Retreat)
			r.Post("/submit", cfg.Wizard.Submit)
		})
	})

	return r
}
