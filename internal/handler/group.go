package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"quicksend/internal/domain/services"
	"quicksend/internal/httputil"
)

// GroupHandler handles group HTTP requests
type GroupHandler struct {
	groupService services.GroupService
	logger       *slog.Logger
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(groupService services.GroupService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		logger:       logger,
	}
}

// ListGroups returns the visible groups as a flat list
// GET /api/groups
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	items, err := h.groupService.List(r.Context(), httputil.GetViewer(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, items)
}

// CreateGroup creates a group
// POST /api/groups → 201 {"id": ...}
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req services.CreateGroupRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.groupService.Create(r.Context(), httputil.GetViewer(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateGroup renames, moves or pins a group
// PUT /api/groups/{id}
func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "group id is required")
		return
	}

	var req services.UpdateGroupRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.groupService.Update(r.Context(), httputil.GetViewer(r), id, &req); err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

// DeleteGroup removes a group. The mode comes from ?mode= or a JSON body.
// DELETE /api/groups/{id}
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "group id is required")
		return
	}

	mode := strings.TrimSpace(r.URL.Query().Get("mode"))
	if mode == "" && r.ContentLength != 0 {
		var body struct {
			Mode string `json:"mode"`
		}
		// a missing or malformed body means the default mode
		_ = httputil.ParseJSON(w, r, &body)
		mode = body.Mode
	}

	mode, err := h.groupService.Delete(r.Context(), httputil.GetViewer(r), id, mode)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"message": "deleted", "mode": mode})
}

// SetHidden hides or shows a group for remote viewers
// POST /api/groups/{id}/hidden
func (h *GroupHandler) SetHidden(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req services.SetHiddenRequest
	if r.ContentLength != 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.groupService.SetHidden(r.Context(), httputil.GetViewer(r), id, req.Hidden); err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"message": "ok", "hidden": req.Hidden})
}

// GetTree returns the groups nested under root
// GET /api/groups/tree
func (h *GroupHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.groupService.Tree(r.Context(), httputil.GetViewer(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, tree)
}

// GetOptions returns the groups flattened in display order with depth
// GET /api/groups/options
func (h *GroupHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.groupService.Options(r.Context(), httputil.GetViewer(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, options)
}
