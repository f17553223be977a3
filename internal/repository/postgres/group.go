package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quicksend/internal/domain"
	"quicksend/internal/domain/models"
	"quicksend/internal/domain/repositories"
)

// PostgresGroupRepository implements repositories.GroupRepository
type PostgresGroupRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(config *RepositoryConfig) *PostgresGroupRepository {
	return &PostgresGroupRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

var _ repositories.GroupRepository = (*PostgresGroupRepository)(nil)

// EnsureSchema creates the groups table when it does not exist
func (r *PostgresGroupRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			parent_id  TEXT,
			created_by TEXT NOT NULL DEFAULT '',
			hidden     BOOLEAN NOT NULL DEFAULT FALSE,
			is_pinned  BOOLEAN NOT NULL DEFAULT FALSE,
			mtime      TIMESTAMPTZ NOT NULL DEFAULT now(),
			seq        BIGSERIAL
		)
	`, r.tables.Groups)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query); err != nil {
		return fmt.Errorf("create groups table: %w", err)
	}

	// Tables created before seq existed get it here; existing rows are numbered in scan order
	alter := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS seq BIGSERIAL`, r.tables.Groups)
	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, alter); err != nil {
		return fmt.Errorf("add groups seq column: %w", err)
	}
	return nil
}

// DropTable removes the groups table. Used by the seeder only.
func (r *PostgresGroupRepository) DropTable(ctx context.Context) error {
	query := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, r.tables.Groups)
	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query); err != nil {
		return fmt.Errorf("drop groups table: %w", err)
	}
	return nil
}

// ClearNonRoot deletes every group except root
func (r *PostgresGroupRepository) ClearNonRoot(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id <> $1`, r.tables.Groups)
	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, models.RootGroupID)
	if err != nil {
		return 0, fmt.Errorf("clear groups: %w", err)
	}
	return result.RowsAffected(), nil
}

// EnsureRoot inserts the root group if it is missing
func (r *PostgresGroupRepository) EnsureRoot(ctx context.Context) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, parent_id, created_by, mtime)
		VALUES ($1, $2, NULL, 'system', $3)
		ON CONFLICT (id) DO NOTHING
	`, r.tables.Groups)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query, models.RootGroupID, models.RootGroupID, time.Now())
	if err != nil {
		return fmt.Errorf("ensure root group: %w", err)
	}
	return nil
}

// listGroupsQuery orders by seq, which is assigned on insert and never updated
func listGroupsQuery(tables *TableNames) string {
	return fmt.Sprintf(`
		SELECT id, name, parent_id, created_by, hidden, is_pinned, mtime
		FROM %s
		ORDER BY seq ASC
	`, tables.Groups)
}

// List returns every group in creation order
func (r *PostgresGroupRepository) List(ctx context.Context) ([]models.Group, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, listGroupsQuery(r.tables))
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	groups, err := pgx.CollectRows(rows, scanGroup)
	if err != nil {
		return nil, fmt.Errorf("scan groups: %w", err)
	}
	return groups, nil
}

// Lock takes a self-conflicting table lock for the rest of the transaction.
// Concurrent moves and deletes queue behind it, so a cycle check sees
// every committed parent change.
func (r *PostgresGroupRepository) Lock(ctx context.Context) error {
	if repositories.GetTx(ctx) == nil {
		return fmt.Errorf("lock groups: no transaction in context")
	}
	query := fmt.Sprintf(`LOCK TABLE %s IN SHARE ROW EXCLUSIVE MODE`, r.tables.Groups)
	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query); err != nil {
		return fmt.Errorf("lock groups: %w", err)
	}
	return nil
}

// GetByID retrieves a group by ID
func (r *PostgresGroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	query := fmt.Sprintf(`
		SELECT id, name, parent_id, created_by, hidden, is_pinned, mtime
		FROM %s
		WHERE id = $1
	`, r.tables.Groups)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	group, err := pgx.CollectExactlyOneRow(rows, scanGroup)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &group, nil
}

// Create inserts a new group
func (r *PostgresGroupRepository) Create(ctx context.Context, group *models.Group) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, parent_id, created_by, hidden, is_pinned, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.Groups)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		group.ID,
		group.Name,
		group.ParentID,
		group.CreatedBy,
		group.Hidden,
		group.IsPinned,
		group.UpdatedAt,
	)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("group %s: %w", group.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update writes the mutable fields of a group
func (r *PostgresGroupRepository) Update(ctx context.Context, group *models.Group) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, parent_id = $2, hidden = $3, is_pinned = $4, mtime = $5
		WHERE id = $6
	`, r.tables.Groups)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		group.Name,
		group.ParentID,
		group.Hidden,
		group.IsPinned,
		group.UpdatedAt,
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", group.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a group
func (r *PostgresGroupRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Groups)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Reparent moves the direct children of fromID under toID
func (r *PostgresGroupRepository) Reparent(ctx context.Context, fromID, toID string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, mtime = $2
		WHERE parent_id = $3
	`, r.tables.Groups)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, toID, time.Now(), fromID)
	if err != nil {
		return 0, fmt.Errorf("reparent groups: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanGroup(row pgx.CollectableRow) (models.Group, error) {
	var g models.Group
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.ParentID,
		&g.CreatedBy,
		&g.Hidden,
		&g.IsPinned,
		&g.UpdatedAt,
	)
	return g, err
}
