package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies who/what produced a notification.
type NotificationType string

const (
	NotificationReply        NotificationType = "reply"
	NotificationMention      NotificationType = "mention"
	NotificationLike         NotificationType = "like"
	NotificationFollow       NotificationType = "follow"
	NotificationSystem       NotificationType = "system"
	NotificationReport       NotificationType = "report"
	NotificationModeration   NotificationType = "moderation"
	NotificationRegistration NotificationType = "registration"
)

// Notification is one row delivered to one recipient. Rows are created
// only by the notification actor and mutated only to flip IsRead.
type Notification struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	UserID    uuid.UUID         `json:"userId" db:"user_id"`
	Type      NotificationType  `json:"type" db:"type"`
	Title     string            `json:"title" db:"title"`
	Message   string            `json:"message" db:"message"`
	Link      string            `json:"link,omitempty" db:"link"`
	IsRead    bool              `json:"isRead" db:"is_read"`
	CreatedAt time.Time         `json:"createdAt" db:"created_at"`
	Data      map[string]string `json:"data,omitempty"`
}

// NotificationFilter narrows a notification listing. Zero value means
// no filtering beyond the recipient.
type NotificationFilter struct {
	UnreadOnly bool
	Type       NotificationType
}

// NotificationPage is one page of a user's notifications plus the
// total matching count, which the client uses for its unread math.
type NotificationPage struct {
	Items []*Notification `json:"items"`
	Total int             `json:"total"`
}

// MarkReadResponse reports how many notification rows a mark-read
// request actually flipped.
type MarkReadResponse struct {
	Updated int `json:"updated"`
}

// StatusResponse is a generic success/failure reply body.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
