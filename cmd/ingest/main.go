// Command ingest serves only the analytics ingest function, for deployments
// where it runs apart from the desktop backend.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"quicksend/internal/config"
	"quicksend/internal/domain"
	"quicksend/internal/handler"
	"quicksend/internal/metrics"
	"quicksend/internal/middleware"
	"quicksend/internal/service/analytics"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger, closeLog := config.NewLogger(cfg, "quicksend-ingest")
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	if len(cfg.AnonKeys()) == 0 {
		logger.Warn("no anon key configured, every submission will fail with server_misconfigured")
	}

	eventRepo, closeEvents, err := analytics.SetupEventRepository(ctx, cfg, logger)
	if err != nil {
		if !errors.Is(err, domain.ErrMisconfigured) {
			log.Fatalf("Failed to set up analytics sink: %v", err)
		}
		logger.Warn("analytics sink not configured", "error", err)
	}
	defer closeEvents()

	catalog, err := analytics.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load event catalog: %v", err)
	}

	ingestService := analytics.NewIngestService(catalog, eventRepo, m, logger)
	ingestHandler := handler.NewAnalyticsIngestHandler(ingestService, cfg.AnonKeys(), m, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle(analytics.IngestPath, ingestHandler)
	// Edge runtimes mount the function at the root as well
	mux.Handle("/", ingestHandler)

	var h http.Handler = middleware.Metrics(m)(mux)
	h = cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "apikey", "x-client-info"},
	}).Handler(h)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("ingest listening",
			"addr", server.Addr,
			"path", analytics.IngestPath,
			"sink", cfg.AnalyticsSink,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}
