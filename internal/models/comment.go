package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a single comment node. Content is an opaque serialized
// structured document; nothing in this package ever interprets it.
// Children holds direct replies in arrival order, so a slice of
// top-level comments forms the full nested tree for a post.
type Comment struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Content        string     `json:"content" db:"content"`
	AuthorID       uuid.UUID  `json:"authorId" db:"author_id"`
	AuthorUsername string     `json:"authorUsername" db:"author_username"`
	PostID         uuid.UUID  `json:"postId" db:"post_id"`
	ParentID       *uuid.UUID `json:"parentId,omitempty" db:"parent_id"`
	Children       []*Comment `json:"children"` // Not in comments table
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// BuildCommentTree assembles flat rows into a forest of top-level
// comments. Children keep the relative order of the input, so callers
// that want arrival order should pass rows sorted by creation time.
// Rows whose parent is missing from the input are treated as top-level
// rather than dropped.
func BuildCommentTree(flat []*Comment) []*Comment {
	byID := make(map[uuid.UUID]*Comment, len(flat))
	for _, c := range flat {
		c.Children = make([]*Comment, 0)
		byID[c.ID] = c
	}

	roots := make([]*Comment, 0)
	for _, c := range flat {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Children = append(parent.Children, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}
