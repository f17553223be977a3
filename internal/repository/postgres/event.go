package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quicksend/internal/config"
	"quicksend/internal/domain/models"
	"quicksend/internal/domain/repositories"
)

// PostgresEventRepository writes analytics rows straight into a namespaced
// table over a service-role database connection.
type PostgresEventRepository struct {
	pool  *pgxpool.Pool
	table string
}

// NewEventRepository creates an event repository for schema.table
func NewEventRepository(pool *pgxpool.Pool, schema, table string) *PostgresEventRepository {
	return &PostgresEventRepository{
		pool:  pool,
		table: pgx.Identifier{schema, table}.Sanitize(),
	}
}

var _ repositories.EventRepository = (*PostgresEventRepository)(nil)

// Name implements repositories.EventRepository
func (r *PostgresEventRepository) Name() string { return config.SinkPostgres }

// Insert writes one row. Postgres diagnostics (code, message, hint) are
// returned in the InsertError details.
func (r *PostgresEventRepository) Insert(ctx context.Context, row *models.EventRow) error {
	props, err := row.Props.Encode()
	if err != nil {
		return fmt.Errorf("encode props: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (event_name, installation_id, session_id, app_version, platform, is_frozen, props)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`, r.table)

	_, err = r.pool.Exec(ctx, query,
		row.EventName,
		row.InstallationID,
		row.SessionID,
		row.AppVersion,
		row.Platform,
		row.IsFrozen,
		string(props),
	)
	if err != nil {
		return &repositories.InsertError{
			Details: pgErrorDetails(err),
			Err:     err,
		}
	}
	return nil
}
