package models

import "time"

// RootGroupID is the id of the implicit top-level group every other group descends from
const RootGroupID = "root"

// Group is a folder-like container for shared files
type Group struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	ParentID  *string   `json:"parent_id" db:"parent_id"` // nil = child of root
	CreatedBy string    `json:"-" db:"created_by"`
	Hidden    bool      `json:"hidden" db:"hidden"`
	IsPinned  bool      `json:"is_pinned" db:"is_pinned"`
	UpdatedAt time.Time `json:"-" db:"mtime"`
}

// Parent returns the declared parent id, defaulting to root
func (g *Group) Parent() string {
	if g.ParentID == nil || *g.ParentID == "" {
		return RootGroupID
	}
	return *g.ParentID
}

// GroupItem is the wire shape of GET /api/groups
type GroupItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID *string  `json:"parent_id"`
	MTime    float64  `json:"mtime"` // unix seconds
	Children []string `json:"children"`
	Hidden   bool     `json:"hidden"`
	IsPinned bool     `json:"is_pinned"`
}

// GroupTreeNode is a group with its nested children.
// Built fresh from a flat list on every call; never persisted.
type GroupTreeNode struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	ParentID      *string          `json:"parent_id"`
	Hidden        bool             `json:"hidden"`
	IsPinned      bool             `json:"is_pinned"`
	Depth         int              `json:"depth"`
	ChildrenNodes []*GroupTreeNode `json:"childrenNodes"`
}

// GroupOption is one row of a depth-indented group selection list
type GroupOption struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Depth    int    `json:"depth"`
	IsPinned bool   `json:"is_pinned"`
}
