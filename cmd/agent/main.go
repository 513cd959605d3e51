// Package main is the entry point for the appointment agent backend.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clinicvoice/agent-backend/internal/agent"
	"github.com/clinicvoice/agent-backend/internal/calendar"
	"github.com/clinicvoice/agent-backend/internal/config"
	"github.com/clinicvoice/agent-backend/internal/handler"
	"github.com/clinicvoice/agent-backend/internal/llm"
	"github.com/clinicvoice/agent-backend/internal/middleware"
	"github.com/clinicvoice/agent-backend/internal/notify"
	"github.com/clinicvoice/agent-backend/internal/store"
	"github.com/clinicvoice/agent-backend/internal/summary"
	"github.com/clinicvoice/agent-backend/pkg/logger"
	"github.com/clinicvoice/agent-backend/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting agent backend")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, terr := tracing.InitTracer(ctx, "agent-backend", cfg.TracingEndpoint)
		if terr != nil {
			log.Warn("failed to initialize tracing", zap.Error(terr))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to the appointment store
	st, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		log.Error("failed to connect to MongoDB", zap.Error(err))
		os.Exit(1)
	}
	defer st.Close(ctx)

	// Connect the notification channel; fall back to log-only delivery so a
	// NATS outage never blocks call handling.
	var sink notify.Sink
	var conn handler.ConnChecker
	natsSink, err := notify.Connect(ctx, notify.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Warn("failed to connect to NATS, notifications will be log-only", zap.Error(err))
		sink = notify.NewLogSink(log)
	} else {
		defer natsSink.Close()
		sink = natsSink
		conn = natsSink
	}

	// Initialize the summarizer LLM client
	var llmClient llm.Client
	switch {
	case llm.Provider(cfg.DefaultLLM) == llm.ProviderAnthropic && cfg.AnthropicAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	case llm.Provider(cfg.DefaultLLM) == llm.ProviderOpenAI && cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	}
	if err != nil {
		log.Warn("failed to create LLM client, summaries will be deterministic only", zap.Error(err))
		llmClient = nil
	}

	cal := calendar.New(cfg.DefaultSlots, cfg.CalendarOverride)
	summarizer := summary.NewGenerator(llmClient, cfg.SummaryModel, cfg.SummaryTimeout, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st, conn)
	adminHandler := handler.NewAdminHandler(st, cal, log)
	sessionHandler := handler.NewSessionHandler(func(sessionID string) *agent.Controller {
		return agent.NewController(sessionID, st, cal, sink, summarizer, log)
	}, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Admin API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/users/lookup", adminHandler.LookupUser)
		r.Get("/users/{id}/appointments", adminHandler.ListAppointments)
		r.Get("/users/{id}/summaries", adminHandler.ListSummaries)
		r.Get("/slots", adminHandler.Slots)

		// Dialogue sessions, driven by the voice pipeline
		r.Post("/sessions", sessionHandler.Create)
		r.Post("/sessions/{id}/tools/{tool}", sessionHandler.InvokeTool)
		r.Post("/sessions/{id}/transcript", sessionHandler.AppendTranscript)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
