// internal/database/post_repository.go
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

// PostDocument represents the MongoDB schema for a post.
type PostDocument struct {
	ID             string    `bson:"_id"`
	Title          string    `bson:"title"`
	Content        string    `bson:"content"`
	AuthorID       string    `bson:"authorId"`
	AuthorUsername string    `bson:"authorUsername"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
	CommentCount   int       `bson:"commentCount"`
}

// SavePost creates or updates a post in MongoDB
func (m *MongoDB) SavePost(ctx context.Context, post *models.Post) error {
	doc := PostDocument{
		ID:             post.ID.String(),
		Title:          post.Title,
		Content:        post.Content,
		AuthorID:       post.AuthorID.String(),
		AuthorUsername: post.AuthorUsername,
		CreatedAt:      post.CreatedAt,
		UpdatedAt:      post.UpdatedAt,
		CommentCount:   post.CommentCount,
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}

	if _, err := m.Posts.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save post: %v", err)
	}
	return nil
}

// GetPost retrieves a post by ID
func (m *MongoDB) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var doc PostDocument
	err := m.Posts.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Post not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %v", err)
	}
	return convertPostDocumentToModel(&doc)
}

// GetRecentPosts lists posts newest first.
func (m *MongoDB) GetRecentPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := m.Posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent posts: %v", err)
	}
	defer cursor.Close(ctx)

	var posts []*models.Post
	for cursor.Next(ctx) {
		var doc PostDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode post: %v", err)
		}
		post, err := convertPostDocumentToModel(&doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// IncrementPostCommentCount adjusts the comment count by delta, which
// may be negative after a subtree delete.
func (m *MongoDB) IncrementPostCommentCount(ctx context.Context, postID uuid.UUID, delta int) error {
	filter := bson.M{"_id": postID.String()}
	update := bson.M{
		"$inc": bson.M{"commentCount": delta},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	result, err := m.Posts.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update post comment count: %v", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Post not found", nil)
	}
	return nil
}

func convertPostDocumentToModel(doc *PostDocument) (*models.Post, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID: %v", err)
	}
	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID: %v", err)
	}
	return &models.Post{
		ID:             id,
		Title:          doc.Title,
		Content:        doc.Content,
		AuthorID:       authorID,
		AuthorUsername: doc.AuthorUsername,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		CommentCount:   doc.CommentCount,
	}, nil
}
