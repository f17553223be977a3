package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"quicksend/internal/config"
	"quicksend/internal/domain"
	"quicksend/internal/domain/repositories"
	"quicksend/internal/repository/clickhouse"
	"quicksend/internal/repository/postgres"
	"quicksend/internal/repository/supabase"
)

// SetupEventRepository builds the event store selected by cfg.AnalyticsSink.
// The returned func releases its connections. An error wrapping
// domain.ErrMisconfigured means required settings are missing.
func SetupEventRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.EventRepository, func(), error) {
	noop := func() {}

	switch cfg.AnalyticsSink {
	case config.SinkRPC:
		repo, err := supabase.NewEventRepository(cfg.SupabaseURL, cfg.ServiceRoleKey, nil)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("analytics sink configured", "sink", repo.Name(), "rpc", supabase.InsertEventRPC)
		return repo, noop, nil

	case config.SinkPostgres:
		if cfg.SupabaseDBURL == "" {
			return nil, noop, fmt.Errorf("SUPABASE_DB_URL is required for the postgres sink: %w", domain.ErrMisconfigured)
		}
		pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
		if err != nil {
			return nil, noop, err
		}
		repo := postgres.NewEventRepository(pool, cfg.AnalyticsSchema, cfg.AnalyticsTable)
		logger.Info("analytics sink configured",
			"sink", repo.Name(),
			"schema", cfg.AnalyticsSchema,
			"table", cfg.AnalyticsTable,
		)
		return repo, pool.Close, nil

	case config.SinkClickHouse:
		conn, err := clickhouse.Open(ctx, cfg.ClickHouse, cfg.AppVersion)
		if err != nil {
			return nil, noop, err
		}
		repo := clickhouse.NewEventRepository(conn, cfg.ClickHouse.Table)
		logger.Info("analytics sink configured", "sink", repo.Name(), "table", cfg.ClickHouse.Table)
		return repo, func() { conn.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown ANALYTICS_SINK %q: %w", cfg.AnalyticsSink, domain.ErrMisconfigured)
	}
}
