package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
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

	"quicksend/internal/auth"
	"quicksend/internal/config"
	"quicksend/internal/domain"
	"quicksend/internal/domain/models"
	"quicksend/internal/handler"
	"quicksend/internal/metrics"
	"quicksend/internal/middleware"
	"quicksend/internal/repository/postgres"
	"quicksend/internal/service/analytics"
	"quicksend/internal/service/groups"
)

func main() {
	startedAt := time.Now()

	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, closeLog := config.NewLogger(cfg, "quicksend-server")
	defer closeLog()

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"analytics_sink", cfg.AnalyticsSink,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Optional: without a JWKS only loopback callers manage groups
	var jwtVerifier auth.JWTVerifier
	if cfg.SupabaseJWKSURL != "" {
		v, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
		if err != nil {
			logger.Warn("JWT verifier unavailable, remote hosts cannot authenticate", "error", err)
		} else {
			jwtVerifier = v
			defer v.Close()
		}
	}

	// Groups live in Postgres
	if cfg.SupabaseDBURL == "" {
		log.Fatal("SUPABASE_DB_URL is required")
	}
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	groupRepo := postgres.NewGroupRepository(repoConfig)
	if err := groupRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare groups table: %v", err)
	}
	if err := groupRepo.EnsureRoot(ctx); err != nil {
		log.Fatalf("Failed to create root group: %v", err)
	}
	txManager := postgres.NewTransactionManager(pool, logger)

	// Missing sink settings are reported per request as server_misconfigured
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

	groupService := groups.NewService(groupRepo, txManager, cfg.AllowRemoteGroupCreate, logger)
	ingestService := analytics.NewIngestService(catalog, eventRepo, m, logger)

	groupHandler := handler.NewGroupHandler(groupService, logger)
	ingestHandler := handler.NewAnalyticsIngestHandler(ingestService, cfg.AnonKeys(), m, logger)

	tracker := startTracker(ctx, cfg, m, logger)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	viewer := middleware.Viewer(jwtVerifier, logger)
	api := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, viewer(fn))
	}

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", m.Handler())

	// Group routes
	api("GET /api/groups", groupHandler.ListGroups)
	api("POST /api/groups", groupHandler.CreateGroup)
	api("GET /api/groups/tree", groupHandler.GetTree)
	api("GET /api/groups/options", groupHandler.GetOptions)
	api("PUT /api/groups/{id}", groupHandler.UpdateGroup)
	api("DELETE /api/groups/{id}", groupHandler.DeleteGroup)
	api("POST /api/groups/{id}/hidden", groupHandler.SetHidden)

	// Ingest function; method gating is part of its contract
	mux.Handle(analytics.IngestPath, ingestHandler)

	// Order: CORS → Recovery → Metrics → Routes
	var h http.Handler = mux
	h = middleware.Metrics(m)(h)
	h = middleware.Recovery(m, logger)(h)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "apikey", "x-client-info"},
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	tracker.Track(models.EventAppOpen, map[string]interface{}{
		"start_ms": time.Since(startedAt).Milliseconds(),
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := tracker.Close(shutdownCtx); err != nil {
		logger.Warn("analytics queue not drained", "error", err)
	}
	logger.Info("server stopped")
}

// startTracker wires the outbound tracker to this installation and emits
// install on first run
func startTracker(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *analytics.Tracker {
	installationID, created, err := analytics.LoadInstallationID(cfg.DataDir)
	if err != nil {
		logger.Warn("installation id not persisted", "error", err)
		installationID = analytics.NewID()
	}

	tracker := analytics.NewTracker(analytics.TrackerConfig{
		Enabled:        cfg.AnalyticsEnabled,
		SupabaseURL:    cfg.SupabaseURL,
		AnonKey:        cfg.TrackerAnonKey(),
		QueueSize:      config.TrackerQueueSize,
		InstallationID: installationID,
		SessionID:      analytics.NewID(),
		AppVersion:     cfg.AppVersion,
	}, m, logger)
	tracker.Start(context.WithoutCancel(ctx))

	if created {
		tracker.Track(models.EventInstall, nil)
	}
	return tracker
}
