package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"quicksend/internal/config"
	"quicksend/internal/domain"
	"quicksend/internal/domain/models"
	"quicksend/internal/domain/repositories"
	"quicksend/internal/domain/services"
	"quicksend/internal/httputil"
)

type groupService struct {
	repo              repositories.GroupRepository
	txManager         repositories.TransactionManager
	allowRemoteCreate bool
	logger            *slog.Logger
}

// NewService creates the group service
func NewService(
	repo repositories.GroupRepository,
	txManager repositories.TransactionManager,
	allowRemoteCreate bool,
	logger *slog.Logger,
) services.GroupService {
	return &groupService{
		repo:              repo,
		txManager:         txManager,
		allowRemoteCreate: allowRemoteCreate,
		logger:            logger,
	}
}

// visible returns the groups the viewer may see, in repository order
func (s *groupService) visible(ctx context.Context, viewer httputil.Viewer) ([]models.Group, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if viewer.IsHost {
		return all, nil
	}
	out := make([]models.Group, 0, len(all))
	for _, g := range all {
		if !g.Hidden {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *groupService) List(ctx context.Context, viewer httputil.Viewer) ([]models.GroupItem, error) {
	groups, err := s.visible(ctx, viewer)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool, len(groups))
	for _, g := range groups {
		ids[g.ID] = true
	}

	children := make(map[string][]string, len(groups))
	for _, g := range groups {
		if g.ParentID != nil && ids[*g.ParentID] {
			children[*g.ParentID] = append(children[*g.ParentID], g.ID)
		}
	}

	items := make([]models.GroupItem, 0, len(groups))
	for _, g := range groups {
		// a parent the viewer cannot see is reported as no parent
		var parentID *string
		if g.ParentID != nil && ids[*g.ParentID] {
			parentID = g.ParentID
		}
		kids := children[g.ID]
		if kids == nil {
			kids = []string{}
		}
		items = append(items, models.GroupItem{
			ID:       g.ID,
			Name:     g.Name,
			ParentID: parentID,
			MTime:    float64(g.UpdatedAt.UnixMicro()) / 1e6,
			Children: kids,
			Hidden:   g.Hidden,
			IsPinned: g.IsPinned,
		})
	}
	return items, nil
}

func (s *groupService) Create(ctx context.Context, viewer httputil.Viewer, req *services.CreateGroupRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	if err := validation.Validate(name,
		validation.Required.Error("name required"),
		validation.RuneLength(1, config.MaxGroupNameLength),
	); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if !viewer.IsHost && !s.allowRemoteCreate {
		return "", fmt.Errorf("remote create disabled: %w", domain.ErrForbidden)
	}

	parentID := models.RootGroupID
	if req.ParentID != nil && strings.TrimSpace(*req.ParentID) != "" {
		parentID = strings.TrimSpace(*req.ParentID)
	}
	if err := s.requireParent(ctx, parentID); err != nil {
		return "", err
	}

	group := &models.Group{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:      name,
		ParentID:  &parentID,
		CreatedBy: createdBy(viewer),
		UpdatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return "", err
	}

	s.logger.Info("group created",
		"id", group.ID,
		"name", group.Name,
		"parent_id", parentID,
		"created_by", group.CreatedBy,
	)
	return group.ID, nil
}

func (s *groupService) Update(ctx context.Context, viewer httputil.Viewer, id string, req *services.UpdateGroupRequest) error {
	if !viewer.IsHost {
		return domain.ErrForbidden
	}

	var group *models.Group
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		// the ancestor walk and the write must see the same parents
		if err := s.repo.Lock(ctx); err != nil {
			return err
		}

		var err error
		group, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.applyUpdate(ctx, group, req); err != nil {
			return err
		}

		group.UpdatedAt = time.Now()
		return s.repo.Update(ctx, group)
	})
	if err != nil {
		return err
	}

	s.logger.Info("group updated",
		"id", group.ID,
		"name", group.Name,
		"parent_id", group.Parent(),
		"is_pinned", group.IsPinned,
	)
	return nil
}

// applyUpdate validates req against the stored groups and applies it to group
func (s *groupService) applyUpdate(ctx context.Context, group *models.Group, req *services.UpdateGroupRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validation.Validate(name,
			validation.Required.Error("name required"),
			validation.RuneLength(1, config.MaxGroupNameLength),
		); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		group.Name = name
	}

	// Tri-state: only move the group if parent_id was present
	if req.ParentID.Present {
		parentID := models.RootGroupID
		if req.ParentID.Value != nil && strings.TrimSpace(*req.ParentID.Value) != "" {
			parentID = strings.TrimSpace(*req.ParentID.Value)
		}
		if group.ID == models.RootGroupID {
			return fmt.Errorf("%w: root group cannot be moved", domain.ErrValidation)
		}
		if err := s.requireParent(ctx, parentID); err != nil {
			return err
		}
		if err := s.checkCycle(ctx, group.ID, parentID); err != nil {
			return err
		}
		group.ParentID = &parentID
	}

	if req.IsPinned != nil {
		group.IsPinned = *req.IsPinned
	}
	return nil
}

func (s *groupService) Delete(ctx context.Context, viewer httputil.Viewer, id, mode string) (string, error) {
	if !viewer.IsHost {
		return "", domain.ErrForbidden
	}

	mode = strings.TrimSpace(mode)
	if mode == "" {
		mode = services.DeleteOnly
	}
	if err := validation.Validate(mode, validation.In(services.DeleteOnly, services.DeleteWithFiles)); err != nil {
		return "", fmt.Errorf("%w: mode: %v", domain.ErrValidation, err)
	}

	if id == models.RootGroupID {
		return "", fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
	}

	var moved int64
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx); err != nil {
			return err
		}
		group, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		moved, err = s.repo.Reparent(ctx, id, group.Parent())
		if err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("group deleted", "id", id, "mode", mode, "children_moved", moved)
	return mode, nil
}

func (s *groupService) SetHidden(ctx context.Context, viewer httputil.Viewer, id string, hidden bool) error {
	if !viewer.IsHost {
		return domain.ErrForbidden
	}

	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	group.Hidden = hidden
	group.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, group); err != nil {
		return err
	}

	s.logger.Info("group visibility changed", "id", id, "hidden", hidden)
	return nil
}

func (s *groupService) Tree(ctx context.Context, viewer httputil.Viewer) ([]*models.GroupTreeNode, error) {
	groups, err := s.visible(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return BuildGroupTree(groups), nil
}

func (s *groupService) Options(ctx context.Context, viewer httputil.Viewer) ([]models.GroupOption, error) {
	tree, err := s.Tree(ctx, viewer)
	if err != nil {
		return nil, err
	}
	flat := FlattenTree(tree)
	options := make([]models.GroupOption, 0, len(flat))
	for _, node := range flat {
		options = append(options, models.GroupOption{
			ID:       node.ID,
			Name:     node.Name,
			Depth:    node.Depth,
			IsPinned: node.IsPinned,
		})
	}
	return options, nil
}

// requireParent checks that parentID names an existing group. Root always exists.
func (s *groupService) requireParent(ctx context.Context, parentID string) error {
	if parentID == models.RootGroupID {
		return nil
	}
	if _, err := s.repo.GetByID(ctx, parentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: invalid parent %q", domain.ErrValidation, parentID)
		}
		return err
	}
	return nil
}

// checkCycle walks up from parentID and fails if it reaches id
func (s *groupService) checkCycle(ctx context.Context, id, parentID string) error {
	if parentID == id {
		return &domain.CycleError{GroupID: id, ParentID: parentID}
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	parents := make(map[string]string, len(all))
	for _, g := range all {
		parents[g.ID] = g.Parent()
	}

	cur := parentID
	for steps := 0; cur != models.RootGroupID && steps <= len(parents); steps++ {
		if cur == id {
			return &domain.CycleError{GroupID: id, ParentID: parentID}
		}
		next, ok := parents[cur]
		if !ok {
			break
		}
		cur = next
	}
	return nil
}

func createdBy(viewer httputil.Viewer) string {
	if viewer.UserID != "" {
		return viewer.UserID
	}
	return viewer.RemoteAddr
}
