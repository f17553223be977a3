package services

import (
	"context"

	"quicksend/internal/domain/models"
	"quicksend/internal/httputil"
)

// Group delete modes
const (
	DeleteOnly      = "delete_only"
	DeleteWithFiles = "delete_with_files"
)

// GroupService handles group business logic.
// Mutations other than Create require a host viewer.
type GroupService interface {
	// List returns the groups visible to the viewer with their visible children
	List(ctx context.Context, viewer httputil.Viewer) ([]models.GroupItem, error)

	// Create adds a group and returns its id
	Create(ctx context.Context, viewer httputil.Viewer, req *CreateGroupRequest) (string, error)

	// Update renames, moves or (un)pins a group
	Update(ctx context.Context, viewer httputil.Viewer, id string, req *UpdateGroupRequest) error

	// Delete removes a group, re-parenting its children to its parent.
	// Returns the effective mode.
	Delete(ctx context.Context, viewer httputil.Viewer, id, mode string) (string, error)

	// SetHidden toggles the hidden flag
	SetHidden(ctx context.Context, viewer httputil.Viewer, id string, hidden bool) error

	// Tree returns the visible groups nested under root
	Tree(ctx context.Context, viewer httputil.Viewer) ([]*models.GroupTreeNode, error)

	// Options returns the visible groups flattened in pre-order with depth
	Options(ctx context.Context, viewer httputil.Viewer) ([]models.GroupOption, error)
}

// CreateGroupRequest represents a group creation request
type CreateGroupRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"` // null or empty for root
}

// UpdateGroupRequest represents a partial group update
type UpdateGroupRequest struct {
	Name     *string                 `json:"name,omitempty"`
	ParentID httputil.OptionalString `json:"parent_id"` // null moves to root
	IsPinned *bool                   `json:"is_pinned,omitempty"`
}

// SetHiddenRequest is the body of POST /api/groups/{id}/hidden
type SetHiddenRequest struct {
	Hidden bool `json:"hidden"`
}
