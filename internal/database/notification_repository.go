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

// NotificationDocument represents the MongoDB document structure for
// notifications.
type NotificationDocument struct {
	ID        string            `bson:"_id"`
	UserID    string            `bson:"userId"`
	Type      string            `bson:"type"`
	Title     string            `bson:"title"`
	Message   string            `bson:"message"`
	Link      string            `bson:"link,omitempty"`
	IsRead    bool              `bson:"isRead"`
	CreatedAt time.Time         `bson:"createdAt"`
	Data      map[string]string `bson:"data,omitempty"`
}

// SaveNotification inserts one notification row.
func (m *MongoDB) SaveNotification(ctx context.Context, n *models.Notification) error {
	doc := NotificationDocument{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
		Data:      n.Data,
	}

	if _, err := m.Notifications.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save notification: %v", err)
	}
	return nil
}

// GetNotifications lists one user's notifications newest first, with
// the total count matching the filter.
func (m *MongoDB) GetNotifications(ctx context.Context, userID uuid.UUID, filter models.NotificationFilter, limit, offset int) (*models.NotificationPage, error) {
	query := bson.M{"userId": userID.String()}
	if filter.UnreadOnly {
		query["isRead"] = false
	}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}

	total, err := m.Notifications.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %v", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts = opts.SetSkip(int64(offset))
	}

	cursor, err := m.Notifications.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %v", err)
	}
	defer cursor.Close(ctx)

	items := make([]*models.Notification, 0)
	for cursor.Next(ctx) {
		var doc NotificationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %v", err)
		}
		n, err := convertNotificationDocumentToModel(&doc)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}

	return &models.NotificationPage{Items: items, Total: int(total)}, nil
}

// MarkNotificationRead flips one notification to read. The userId
// filter keeps a user from touching someone else's rows.
func (m *MongoDB) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	filter := bson.M{"_id": notificationID.String(), "userId": userID.String()}
	update := bson.M{"$set": bson.M{"isRead": true}}

	result, err := m.Notifications.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %v", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Notification not found", nil)
	}
	return nil
}

// MarkAllNotificationsRead flips every unread notification for a user
// and returns the number of rows updated.
func (m *MongoDB) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int, error) {
	filter := bson.M{"userId": userID.String(), "isRead": false}
	update := bson.M{"$set": bson.M{"isRead": true}}

	result, err := m.Notifications.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %v", err)
	}
	return int(result.ModifiedCount), nil
}

func convertNotificationDocumentToModel(doc *NotificationDocument) (*models.Notification, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification ID: %v", err)
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification user ID: %v", err)
	}
	return &models.Notification{
		ID:        id,
		UserID:    userID,
		Type:      models.NotificationType(doc.Type),
		Title:     doc.Title,
		Message:   doc.Message,
		Link:      doc.Link,
		IsRead:    doc.IsRead,
		CreatedAt: doc.CreatedAt,
		Data:      doc.Data,
	}, nil
}

// EnsureNotificationIndexes creates the listing index for the
// notifications collection.
func (m *MongoDB) EnsureNotificationIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "isRead", Value: 1},
			},
		},
	}

	if _, err := m.Notifications.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create notification indexes: %v", err)
	}
	return nil
}
