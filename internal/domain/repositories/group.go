package repositories

import (
	"context"

	"quicksend/internal/domain/models"
)

// GroupRepository defines data access operations for groups
type GroupRepository interface {
	// List returns every group, root included, in creation order.
	// Updates, hiding and re-parenting never change a group's position.
	List(ctx context.Context) ([]models.Group, error)

	// GetByID retrieves a group, wrapping domain.ErrNotFound when absent
	GetByID(ctx context.Context, id string) (*models.Group, error)

	// Create inserts a new group; ID must be set by the caller
	Create(ctx context.Context, group *models.Group) error

	// Update writes name, parent, pinned and hidden flags
	Update(ctx context.Context, group *models.Group) error

	// Delete removes a group
	Delete(ctx context.Context, id string) error

	// Reparent moves every direct child of fromID under toID
	Reparent(ctx context.Context, fromID, toID string) (int64, error)

	// Lock serializes structural changes (moves, deletes) until the
	// surrounding transaction ends. Must be called inside ExecTx.
	Lock(ctx context.Context) error

	// EnsureRoot creates the root group if it is missing
	EnsureRoot(ctx context.Context) error
}
