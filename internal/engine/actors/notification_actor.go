package actors

import (
	stdctx "context"
	"fmt"
	"log"
	"time"

	"mangrove/internal/database"
	"mangrove/internal/mentions"
	"mangrove/internal/models"
	"mangrove/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Events from the comment actor.
type (
	CommentCreatedEvt struct {
		Comment *models.Comment
		Post    *models.Post
	}

	CommentEditedEvt struct {
		Comment         *models.Comment
		Post            *models.Post
		PreviousContent string
	}
)

// Query and mutation messages from the handlers.
type (
	ListNotificationsMsg struct {
		UserID uuid.UUID
		Filter models.NotificationFilter
		Limit  int
		Offset int
	}

	MarkNotificationsReadMsg struct {
		UserID          uuid.UUID
		NotificationIDs []uuid.UUID
	}

	MarkAllNotificationsReadMsg struct {
		UserID uuid.UUID
	}
)

// Pusher delivers a notification to the recipient's live connections.
// Satisfied by the websocket hub.
type Pusher interface {
	PushNotification(n *models.Notification)
}

// seenKey dedups fan-out per recipient per comment, so editing a
// comment only notifies users mentioned for the first time.
type seenKey struct {
	recipient uuid.UUID
	commentID uuid.UUID
}

// NotificationActor turns comment events into notification rows. Each
// row is written and pushed independently; one bad recipient never
// blocks the rest, and a fan-out failure never fails the comment that
// caused it.
type NotificationActor struct {
	db      database.DBAdapter
	pusher  Pusher
	metrics *utils.MetricsCollector
	seen    map[seenKey]bool
}

func NewNotificationActor(db database.DBAdapter, pusher Pusher, metrics *utils.MetricsCollector) actor.Actor {
	return &NotificationActor{
		db:      db,
		pusher:  pusher,
		metrics: metrics,
		seen:    make(map[seenKey]bool),
	}
}

func (a *NotificationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("NotificationActor started with PID: %v", context.Self())

	case *CommentCreatedEvt:
		a.handleCommentCreated(msg)

	case *CommentEditedEvt:
		a.handleCommentEdited(msg)

	case *ListNotificationsMsg:
		a.handleList(context, msg)

	case *MarkNotificationsReadMsg:
		a.handleMarkRead(context, msg)

	case *MarkAllNotificationsReadMsg:
		a.handleMarkAllRead(context, msg)

	default:
		log.Printf("NotificationActor: Unknown message type %T", msg)
	}
}

// recipientPlan is one planned notification row before delivery.
type recipientPlan struct {
	userID uuid.UUID
	kind   models.NotificationType
	title  string
}

func (a *NotificationActor) handleCommentCreated(evt *CommentCreatedEvt) {
	ctx := stdctx.Background()
	comment := evt.Comment
	actorID := comment.AuthorID

	plans := make([]recipientPlan, 0, 4)
	planned := make(map[uuid.UUID]bool)

	add := func(userID uuid.UUID, kind models.NotificationType, title string) {
		if userID == actorID || planned[userID] {
			return
		}
		if a.seen[seenKey{recipient: userID, commentID: comment.ID}] {
			return
		}
		plans = append(plans, recipientPlan{userID: userID, kind: kind, title: title})
		planned[userID] = true
	}

	if comment.ParentID == nil {
		add(evt.Post.AuthorID, models.NotificationReply,
			fmt.Sprintf("%s commented on your post %q", comment.AuthorUsername, evt.Post.Title))
	} else {
		parent, err := a.db.GetComment(ctx, *comment.ParentID)
		if err != nil {
			log.Printf("NotificationActor: failed to fetch parent comment %s: %v", *comment.ParentID, err)
		} else {
			add(parent.AuthorID, models.NotificationReply,
				fmt.Sprintf("%s replied to your comment", comment.AuthorUsername))
		}
	}

	a.planMentions(ctx, comment, add)
	a.deliver(ctx, evt.Post, comment, plans)
}

// handleCommentEdited re-runs mention fan-out only. The per-comment
// seen set keeps everyone notified for the original text from being
// notified again; only newly added mentions produce rows.
func (a *NotificationActor) handleCommentEdited(evt *CommentEditedEvt) {
	ctx := stdctx.Background()
	comment := evt.Comment
	actorID := comment.AuthorID

	plans := make([]recipientPlan, 0, 2)
	planned := make(map[uuid.UUID]bool)

	add := func(userID uuid.UUID, kind models.NotificationType, title string) {
		if userID == actorID || planned[userID] {
			return
		}
		if a.seen[seenKey{recipient: userID, commentID: comment.ID}] {
			return
		}
		plans = append(plans, recipientPlan{userID: userID, kind: kind, title: title})
		planned[userID] = true
	}

	// Mentions that were already present in the previous content were
	// fanned out when the comment was created or last edited. Seed the
	// seen set from them in case this process restarted in between.
	for _, username := range mentions.Extract(evt.PreviousContent) {
		if user, err := a.db.GetUserByUsername(ctx, username); err == nil {
			a.seen[seenKey{recipient: user.ID, commentID: comment.ID}] = true
		}
	}

	a.planMentions(ctx, comment, add)
	a.deliver(ctx, evt.Post, comment, plans)
}

func (a *NotificationActor) planMentions(ctx stdctx.Context, comment *models.Comment, add func(uuid.UUID, models.NotificationType, string)) {
	for _, username := range mentions.Extract(comment.Content) {
		user, err := a.db.GetUserByUsername(ctx, username)
		if err != nil {
			// Unknown mentions are silently skipped.
			if !utils.IsErrorCode(err, utils.ErrUserNotFound) {
				log.Printf("NotificationActor: failed to resolve mention @%s: %v", username, err)
			}
			continue
		}
		add(user.ID, models.NotificationMention,
			fmt.Sprintf("%s mentioned you", comment.AuthorUsername))
	}
}

func (a *NotificationActor) deliver(ctx stdctx.Context, post *models.Post, comment *models.Comment, plans []recipientPlan) {
	for _, plan := range plans {
		n := &models.Notification{
			ID:        uuid.New(),
			UserID:    plan.userID,
			Type:      plan.kind,
			Title:     plan.title,
			Message:   snippet(comment.Content),
			Link:      fmt.Sprintf("/post/%s#comment-%s", post.ID, comment.ID),
			CreatedAt: time.Now(),
			Data: map[string]string{
				"postId":    post.ID.String(),
				"commentId": comment.ID.String(),
				"actorId":   comment.AuthorID.String(),
			},
		}

		if err := a.db.SaveNotification(ctx, n); err != nil {
			// This recipient misses out; everyone else still gets
			// their row.
			log.Printf("NotificationActor: failed to save notification for user %s: %v", plan.userID, err)
			a.metrics.NotificationFailed()
			continue
		}

		a.seen[seenKey{recipient: plan.userID, commentID: comment.ID}] = true
		a.metrics.NotificationSent(string(plan.kind))

		if a.pusher != nil {
			a.pusher.PushNotification(n)
		}
	}
}

// snippet trims content for the notification message body. Structured
// documents stay opaque; the client renders from Data instead.
func snippet(content string) string {
	const max = 200
	if len(content) <= max {
		return content
	}
	return content[:max]
}

func (a *NotificationActor) handleList(context actor.Context, msg *ListNotificationsMsg) {
	ctx := stdctx.Background()
	page, err := a.db.GetNotifications(ctx, msg.UserID, msg.Filter, msg.Limit, msg.Offset)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch notifications", err))
		return
	}
	context.Respond(page)
}

// handleMarkRead flips each requested row and reports how many it
// actually updated. Rows that don't exist or belong to someone else
// are skipped rather than failing the batch.
func (a *NotificationActor) handleMarkRead(context actor.Context, msg *MarkNotificationsReadMsg) {
	ctx := stdctx.Background()
	updated := 0
	for _, id := range msg.NotificationIDs {
		if err := a.db.MarkNotificationRead(ctx, msg.UserID, id); err != nil {
			if !utils.IsErrorCode(err, utils.ErrNotFound) {
				log.Printf("NotificationActor: mark read %s failed: %v", id, err)
			}
			continue
		}
		updated++
	}
	context.Respond(&models.MarkReadResponse{Updated: updated})
}

func (a *NotificationActor) handleMarkAllRead(context actor.Context, msg *MarkAllNotificationsReadMsg) {
	ctx := stdctx.Background()
	updated, err := a.db.MarkAllNotificationsRead(ctx, msg.UserID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to mark notifications read", err))
		return
	}
	context.Respond(&models.MarkReadResponse{Updated: updated})
}
