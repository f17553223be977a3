package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"quicksend/internal/config"
	"quicksend/internal/domain"
	"quicksend/internal/domain/models"
	"quicksend/internal/domain/repositories"
)

// EventRepository writes analytics rows to a ClickHouse table over the native protocol
type EventRepository struct {
	conn  clickhouse.Conn
	table string
}

// Open connects to ClickHouse and verifies the connection with a ping
func Open(ctx context.Context, cfg config.ClickHouseConfig, appVersion string) (clickhouse.Conn, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST and CLICKHOUSE_DB_NAME are required: %w", domain.ErrMisconfigured)
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.NativePort)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "quicksend-ingest", Version: appVersion}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return conn, nil
}

// NewEventRepository creates an event repository writing to table
func NewEventRepository(conn clickhouse.Conn, table string) *EventRepository {
	return &EventRepository{conn: conn, table: table}
}

var _ repositories.EventRepository = (*EventRepository)(nil)

// Name implements repositories.EventRepository
func (r *EventRepository) Name() string { return config.SinkClickHouse }

// Insert writes one row. Props are stored as a JSON string column and
// received_at is the time this process accepted the event.
func (r *EventRepository) Insert(ctx context.Context, row *models.EventRow) error {
	props, err := row.Props.Encode()
	if err != nil {
		return fmt.Errorf("encode props: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (event_name, installation_id, session_id, app_version, platform, is_frozen, props, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.table)

	err = r.conn.Exec(ctx, query,
		row.EventName,
		row.InstallationID,
		row.SessionID,
		row.AppVersion,
		row.Platform,
		row.IsFrozen,
		string(props),
		time.Now().UTC(),
	)
	if err != nil {
		return &repositories.InsertError{
			Details: exceptionDetails(err),
			Err:     err,
		}
	}
	return nil
}

func exceptionDetails(err error) map[string]interface{} {
	var ex *clickhouse.Exception
	if !errors.As(err, &ex) {
		return nil
	}
	return map[string]interface{}{
		"code":    ex.Code,
		"message": ex.Message,
	}
}
