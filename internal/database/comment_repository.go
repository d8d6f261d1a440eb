package database

import (
	"context"
	"fmt"
	"time"

	"mangrove/internal/models"
	"mangrove/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentDocument represents comment data in MongoDB. Rows are flat;
// nesting is reconstructed from parentId at read time.
type CommentDocument struct {
	ID             string    `bson:"_id"`
	Content        string    `bson:"content"`
	AuthorID       string    `bson:"authorId"`
	AuthorUsername string    `bson:"authorUsername"`
	PostID         string    `bson:"postId"`
	ParentID       *string   `bson:"parentId,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

// SaveComment creates or updates a comment in MongoDB
func (m *MongoDB) SaveComment(ctx context.Context, comment *models.Comment) error {
	doc := CommentDocument{
		ID:             comment.ID.String(),
		Content:        comment.Content,
		AuthorID:       comment.AuthorID.String(),
		AuthorUsername: comment.AuthorUsername,
		PostID:         comment.PostID.String(),
		CreatedAt:      comment.CreatedAt,
		UpdatedAt:      comment.UpdatedAt,
	}
	if comment.ParentID != nil {
		parentIDStr := comment.ParentID.String()
		doc.ParentID = &parentIDStr
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}

	if _, err := m.Comments.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save comment: %v", err)
	}
	return nil
}

// GetComment retrieves a comment by ID
func (m *MongoDB) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var doc CommentDocument
	err := m.Comments.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %v", err)
	}
	return convertCommentDocumentToModel(&doc)
}

// UpdateCommentContent replaces a comment's content and bumps its
// updated timestamp.
func (m *MongoDB) UpdateCommentContent(ctx context.Context, id uuid.UUID, content string) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{
		"content":   content,
		"updatedAt": time.Now(),
	}}

	result, err := m.Comments.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update comment content: %v", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	return nil
}

// GetPostComments retrieves all comments for a post as flat rows in
// creation order. Callers assemble the tree with
// models.BuildCommentTree.
func (m *MongoDB) GetPostComments(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := m.Comments.Find(ctx, bson.M{"postId": postID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get post comments: %v", err)
	}
	defer cursor.Close(ctx)

	var comments []*models.Comment
	for cursor.Next(ctx) {
		var doc CommentDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %v", err)
		}
		comment, err := convertCommentDocumentToModel(&doc)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// DeleteCommentTree removes a comment and every descendant reply. It
// returns the number of rows deleted so the caller can adjust the
// post's comment count.
func (m *MongoDB) DeleteCommentTree(ctx context.Context, id uuid.UUID) (int, error) {
	// Collect descendant ids breadth first. parentId is indexed, so
	// each level is one query.
	ids := []string{id.String()}
	frontier := []string{id.String()}
	for len(frontier) > 0 {
		cursor, err := m.Comments.Find(ctx, bson.M{"parentId": bson.M{"$in": frontier}})
		if err != nil {
			return 0, fmt.Errorf("failed to find comment replies: %v", err)
		}

		var next []string
		for cursor.Next(ctx) {
			var doc CommentDocument
			if err := cursor.Decode(&doc); err != nil {
				cursor.Close(ctx)
				return 0, fmt.Errorf("failed to decode comment: %v", err)
			}
			next = append(next, doc.ID)
		}
		cursor.Close(ctx)

		ids = append(ids, next...)
		frontier = next
	}

	result, err := m.Comments.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete comment tree: %v", err)
	}
	if result.DeletedCount == 0 {
		return 0, utils.NewAppError(utils.ErrNotFound, "Comment not found", nil)
	}
	return int(result.DeletedCount), nil
}

func convertCommentDocumentToModel(doc *CommentDocument) (*models.Comment, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid comment ID: %v", err)
	}
	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID: %v", err)
	}
	postID, err := uuid.Parse(doc.PostID)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID: %v", err)
	}

	var parentID *uuid.UUID
	if doc.ParentID != nil {
		parsed, err := uuid.Parse(*doc.ParentID)
		if err != nil {
			return nil, fmt.Errorf("invalid parent ID: %v", err)
		}
		parentID = &parsed
	}

	return &models.Comment{
		ID:             id,
		Content:        doc.Content,
		AuthorID:       authorID,
		AuthorUsername: doc.AuthorUsername,
		PostID:         postID,
		ParentID:       parentID,
		Children:       make([]*models.Comment, 0),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

// EnsureCommentIndexes creates required indexes for the comments collection
func (m *MongoDB) EnsureCommentIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "postId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "authorId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "parentId", Value: 1}},
		},
	}

	if _, err := m.Comments.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create comment indexes: %v", err)
	}
	return nil
}
