package feed

import (
	"github.com/google/uuid"

	"mangrove/internal/models"
)

// Pure tree operations over a forest of comments. Every operation is
// copy-on-write: the input forest is never mutated, and nodes along
// the path to the changed node are shallow-copied. Holding the prior
// slice is therefore a valid snapshot, which is what makes the undo
// and rollback paths in the engine cheap.
//
// All operations are total: a missing target id returns the input
// unchanged rather than an error.

// Find returns the node with the given id, searching all levels.
func Find(tree []*models.Comment, id uuid.UUID) *models.Comment {
	for _, c := range tree {
		if c.ID == id {
			return c
		}
		if found := Find(c.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// Locate reports where a node sits in the forest: its parent id (nil
// for top-level) and its index among its siblings.
func Locate(tree []*models.Comment, id uuid.UUID) (parentID *uuid.UUID, index int, ok bool) {
	return locate(tree, nil, id)
}

func locate(tree []*models.Comment, parent *uuid.UUID, id uuid.UUID) (*uuid.UUID, int, bool) {
	for i, c := range tree {
		if c.ID == id {
			return parent, i, true
		}
		pid := c.ID
		if p, idx, ok := locate(c.Children, &pid, id); ok {
			return p, idx, ok
		}
	}
	return nil, 0, false
}

// InsertReply appends node to the children of parentID. When the
// parent is not in the forest the forest comes back unchanged; the
// caller must treat that as a logic error, a reply is never silently
// promoted to top level.
func InsertReply(tree []*models.Comment, parentID uuid.UUID, node *models.Comment) []*models.Comment {
	out, _ := insertReply(tree, parentID, node)
	return out
}

func insertReply(tree []*models.Comment, parentID uuid.UUID, node *models.Comment) ([]*models.Comment, bool) {
	for i, c := range tree {
		if c.ID == parentID {
			cp := *c
			cp.Children = append(copyNodes(c.Children), node)
			return replaceAt(tree, i, &cp), true
		}
		if children, ok := insertReply(c.Children, parentID, node); ok {
			cp := *c
			cp.Children = children
			return replaceAt(tree, i, &cp), true
		}
	}
	return tree, false
}

// UpdateContent replaces the content of the node with the given id,
// recursing into children at any depth.
func UpdateContent(tree []*models.Comment, id uuid.UUID, content string) []*models.Comment {
	out, _ := updateContent(tree, id, content)
	return out
}

func updateContent(tree []*models.Comment, id uuid.UUID, content string) ([]*models.Comment, bool) {
	for i, c := range tree {
		if c.ID == id {
			cp := *c
			cp.Content = content
			return replaceAt(tree, i, &cp), true
		}
		if children, ok := updateContent(c.Children, id, content); ok {
			cp := *c
			cp.Children = children
			return replaceAt(tree, i, &cp), true
		}
	}
	return tree, false
}

// Remove excises the node (and its whole subtree) from wherever it
// occurs in the forest.
func Remove(tree []*models.Comment, id uuid.UUID) []*models.Comment {
	out, _ := remove(tree, id)
	return out
}

func remove(tree []*models.Comment, id uuid.UUID) ([]*models.Comment, bool) {
	for i, c := range tree {
		if c.ID == id {
			out := make([]*models.Comment, 0, len(tree)-1)
			out = append(out, tree[:i]...)
			out = append(out, tree[i+1:]...)
			return out, true
		}
		if children, ok := remove(c.Children, id); ok {
			cp := *c
			cp.Children = children
			return replaceAt(tree, i, &cp), true
		}
	}
	return tree, false
}

// RestoreAt reinserts node as a child of parentID (top level when
// parentID is nil) at the given sibling position, clamping the index
// to [0, len]. A missing parent leaves the forest unchanged.
func RestoreAt(tree []*models.Comment, parentID *uuid.UUID, index int, node *models.Comment) []*models.Comment {
	if parentID == nil {
		return insertAt(tree, index, node)
	}
	out, _ := restoreAt(tree, *parentID, index, node)
	return out
}

func restoreAt(tree []*models.Comment, parentID uuid.UUID, index int, node *models.Comment) ([]*models.Comment, bool) {
	for i, c := range tree {
		if c.ID == parentID {
			cp := *c
			cp.Children = insertAt(c.Children, index, node)
			return replaceAt(tree, i, &cp), true
		}
		if children, ok := restoreAt(c.Children, parentID, index, node); ok {
			cp := *c
			cp.Children = children
			return replaceAt(tree, i, &cp), true
		}
	}
	return tree, false
}

// ReplaceNode swaps the node with the given id for replacement,
// keeping its position. Children are NOT carried over; the caller
// decides what the replacement's children should be.
func ReplaceNode(tree []*models.Comment, id uuid.UUID, replacement *models.Comment) []*models.Comment {
	out, _ := replaceNode(tree, id, replacement)
	return out
}

func replaceNode(tree []*models.Comment, id uuid.UUID, replacement *models.Comment) ([]*models.Comment, bool) {
	for i, c := range tree {
		if c.ID == id {
			return replaceAt(tree, i, replacement), true
		}
		if children, ok := replaceNode(c.Children, id, replacement); ok {
			cp := *c
			cp.Children = children
			return replaceAt(tree, i, &cp), true
		}
	}
	return tree, false
}

func copyNodes(nodes []*models.Comment) []*models.Comment {
	out := make([]*models.Comment, len(nodes))
	copy(out, nodes)
	return out
}

func replaceAt(nodes []*models.Comment, i int, node *models.Comment) []*models.Comment {
	out := copyNodes(nodes)
	out[i] = node
	return out
}

func insertAt(nodes []*models.Comment, index int, node *models.Comment) []*models.Comment {
	if index < 0 {
		index = 0
	}
	if index > len(nodes) {
		index = len(nodes)
	}
	out := make([]*models.Comment, 0, len(nodes)+1)
	out = append(out, nodes[:index]...)
	out = append(out, node)
	out = append(out, nodes[index:]...)
	return out
}
