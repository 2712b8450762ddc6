package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/odontosys/booking-wizard/internal/api/router"
	"github.com/odontosys/booking-wizard/internal/clinicapi"
	appconfig "github.com/odontosys/booking-wizard/internal/config"
	"github.com/odontosys/booking-wizard/internal/http/handlers"
	"github.com/odontosys/booking-wizard/internal/observability/metrics"
	"github.com/odontosys/booking-wizard/internal/session"
	"github.com/odontosys/booking-wizard/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-wizard API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	metricsHandler, bookingMetrics := setupBookingMetrics()

	store := newSessionStore(cfg, logger)

	client := clinicapi.NewClient(cfg.ClinicAPIBaseURL, cfg.ClinicAPIToken, logger)
	gateway := clinicapi.NewInstrumented(client, bookingMetrics)

	wizardHandler := handlers.NewWizardHandler(handlers.WizardConfig{
		Gateway:            gateway,
		Store:              store,
		Metrics:            bookingMetrics,
		Logger:             logger,
		RedirectDelay:      cfg.RedirectDelay,
		CaptchaPassthrough: cfg.CaptchaPassthrough,
	})

	// Setup router
	r := router.New(router.Config{
		Logger:             logger,
		Wizard:             wizardHandler,
		PatientJWTSecret:   cfg.PatientJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsHandler:     metricsHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// setupBookingMetrics builds a dedicated registry so the exported metrics
// carry only this service's series plus the standard process collectors.
func setupBookingMetrics() (http.Handler, *metrics.BookingMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), bookingMetrics
}

// newSessionStore selects the snapshot backend. Redis keeps sessions
// across restarts; memory is for single-instance and local runs.
func newSessionStore(cfg *appconfig.Config, logger *logging.Logger) session.Store {
	if cfg.SessionBackend != "redis" {
		logger.Info("using in-memory session store", "ttl", cfg.SessionTTL.String())
		return session.NewMemoryStore(cfg.SessionTTL)
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable, falling back to in-memory sessions", "addr", cfg.RedisAddr, "error", err)
		return session.NewMemoryStore(cfg.SessionTTL)
	}

	logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
	return session.NewRedisStore(client, cfg.SessionTTL, nil)
}
