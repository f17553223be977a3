package groups

import (
	"slices"

	"quicksend/internal/domain/models"
)

// BuildGroupTree nests a flat group list under the synthetic root group.
//
// Every distinct id appears exactly once in the result:
//   - a parent id that is not in the list attaches the group to root
//   - a group whose ancestor chain loops back to itself attaches to root
//   - duplicate ids keep the last record, placed where the id first appeared
//
// Siblings are ordered pinned first, otherwise in input order.
func BuildGroupTree(records []models.Group) []*models.GroupTreeNode {
	nodes := make(map[string]*models.GroupTreeNode, len(records)+1)
	parents := make(map[string]string, len(records))
	order := make([]string, 0, len(records))

	for _, g := range records {
		if _, seen := nodes[g.ID]; !seen {
			order = append(order, g.ID)
		}
		nodes[g.ID] = &models.GroupTreeNode{
			ID:            g.ID,
			Name:          g.Name,
			ParentID:      g.ParentID,
			Hidden:        g.Hidden,
			IsPinned:      g.IsPinned,
			ChildrenNodes: []*models.GroupTreeNode{},
		}
		parents[g.ID] = g.Parent()
	}

	root, ok := nodes[models.RootGroupID]
	if !ok {
		root = &models.GroupTreeNode{
			ID:            models.RootGroupID,
			Name:          models.RootGroupID,
			ChildrenNodes: []*models.GroupTreeNode{},
		}
		nodes[models.RootGroupID] = root
	}

	for _, id := range order {
		if id == models.RootGroupID {
			continue
		}
		parent, exists := nodes[parents[id]]
		if !exists || onCycle(id, parents) {
			parent = root
		}
		parent.ChildrenNodes = append(parent.ChildrenNodes, nodes[id])
	}

	for _, node := range nodes {
		slices.SortStableFunc(node.ChildrenNodes, func(a, b *models.GroupTreeNode) int {
			switch {
			case a.IsPinned && !b.IsPinned:
				return -1
			case !a.IsPinned && b.IsPinned:
				return 1
			}
			return 0
		})
	}

	setDepth(root, 0)

	return []*models.GroupTreeNode{root}
}

// onCycle reports whether following declared parents from id leads back to id
// before reaching root or an unknown group.
func onCycle(id string, parents map[string]string) bool {
	cur := parents[id]
	for steps := 0; steps < len(parents); steps++ {
		if cur == id {
			return true
		}
		next, known := parents[cur]
		if !known || cur == models.RootGroupID {
			return false
		}
		cur = next
	}
	return cur == id
}

func setDepth(node *models.GroupTreeNode, depth int) {
	node.Depth = depth
	for _, child := range node.ChildrenNodes {
		setDepth(child, depth+1)
	}
}

// FlattenTree lists nodes in pre-order: each node is followed by its whole subtree
func FlattenTree(nodes []*models.GroupTreeNode) []*models.GroupTreeNode {
	var out []*models.GroupTreeNode
	var walk func([]*models.GroupTreeNode)
	walk = func(level []*models.GroupTreeNode) {
		for _, node := range level {
			out = append(out, node)
			walk(node.ChildrenNodes)
		}
	}
	walk(nodes)
	return out
}
