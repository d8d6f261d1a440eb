package actors

import (
	stdctx "context"
	"log"
	"strings"
	"time"

	"mangrove/internal/database"
	"mangrove/internal/models"
	"mangrove/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for CommentActor
type (
	CreateCommentMsg struct {
		Content  string     `json:"content"`
		AuthorID uuid.UUID  `json:"authorId"`
		PostID   uuid.UUID  `json:"postId"`
		ParentID *uuid.UUID `json:"parentId,omitempty"`
	}

	EditCommentMsg struct {
		CommentID uuid.UUID `json:"commentId"`
		AuthorID  uuid.UUID `json:"authorId"`
		Content   string    `json:"content"`
	}

	DeleteCommentMsg struct {
		CommentID uuid.UUID `json:"commentId"`
		AuthorID  uuid.UUID `json:"authorId"`
	}

	GetCommentMsg struct {
		CommentID uuid.UUID `json:"commentId"`
	}

	GetCommentsForPostMsg struct {
		PostID uuid.UUID `json:"postId"`
	}
)

// CommentActor owns all comment writes. Every confirmed create and
// edit is forwarded to the notification actor, which decides who
// hears about it.
type CommentActor struct {
	db        database.DBAdapter
	notifier  *actor.PID
	metrics   *utils.MetricsCollector
	userCache map[uuid.UUID]string
}

func NewCommentActor(db database.DBAdapter, notifier *actor.PID, metrics *utils.MetricsCollector) actor.Actor {
	return &CommentActor{
		db:        db,
		notifier:  notifier,
		metrics:   metrics,
		userCache: make(map[uuid.UUID]string),
	}
}

func (a *CommentActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("CommentActor started with PID: %v", context.Self())

	case *CreateCommentMsg:
		a.handleCreateComment(context, msg)

	case *EditCommentMsg:
		a.handleEditComment(context, msg)

	case *DeleteCommentMsg:
		a.handleDeleteComment(context, msg)

	case *GetCommentMsg:
		a.handleGetComment(context, msg)

	case *GetCommentsForPostMsg:
		a.handleGetPostComments(context, msg)

	default:
		log.Printf("CommentActor: Unknown message type %T", msg)
	}
}

// getUsername reads through a small cache; usernames are immutable
// here so staleness is not a concern.
func (a *CommentActor) getUsername(ctx stdctx.Context, userID uuid.UUID) (string, error) {
	if username, ok := a.userCache[userID]; ok {
		return username, nil
	}
	user, err := a.db.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	a.userCache[userID] = user.Username
	return user.Username, nil
}

func (a *CommentActor) handleCreateComment(context actor.Context, msg *CreateCommentMsg) {
	start := time.Now()

	if strings.TrimSpace(msg.Content) == "" {
		context.Respond(utils.NewEmptyContentError())
		return
	}

	ctx := stdctx.Background()
	post, err := a.db.GetPost(ctx, msg.PostID)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			context.Respond(utils.NewAppError(utils.ErrNotFound, "Post not found", nil))
		} else {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch post", err))
		}
		return
	}

	username, err := a.getUsername(ctx, msg.AuthorID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch author details", err))
		return
	}

	if msg.ParentID != nil {
		parent, err := a.db.GetComment(ctx, *msg.ParentID)
		if err != nil {
			if utils.IsErrorCode(err, utils.ErrNotFound) {
				context.Respond(utils.NewAppError(utils.ErrNotFound, "Parent comment not found", nil))
			} else {
				context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch parent comment", err))
			}
			return
		}
		if parent.PostID != msg.PostID {
			context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Parent comment belongs to a different post", nil))
			return
		}
	}

	now := time.Now()
	newComment := &models.Comment{
		ID:             uuid.New(),
		Content:        msg.Content,
		AuthorID:       msg.AuthorID,
		AuthorUsername: username,
		PostID:         msg.PostID,
		ParentID:       msg.ParentID,
		Children:       make([]*models.Comment, 0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := a.db.SaveComment(ctx, newComment); err != nil {
		log.Printf("Error saving comment to database: %v", err)
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to save comment", err))
		return
	}

	if err := a.db.IncrementPostCommentCount(ctx, msg.PostID, 1); err != nil {
		log.Printf("Warning: failed to bump comment count for post %s: %v", msg.PostID, err)
	}

	// Fan-out happens off the request path; the author never waits on
	// notification delivery.
	if a.notifier != nil {
		context.Send(a.notifier, &CommentCreatedEvt{Comment: newComment, Post: post})
	}

	a.metrics.AddOperationLatency("create_comment", time.Since(start))
	log.Printf("Created comment %s on post %s by %s", newComment.ID, msg.PostID, username)
	context.Respond(newComment)
}

func (a *CommentActor) handleEditComment(context actor.Context, msg *EditCommentMsg) {
	start := time.Now()

	if strings.TrimSpace(msg.Content) == "" {
		context.Respond(utils.NewEmptyContentError())
		return
	}

	ctx := stdctx.Background()
	comment, err := a.db.GetComment(ctx, msg.CommentID)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			context.Respond(utils.NewAppError(utils.ErrNotFound, "Comment not found", nil))
		} else {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch comment", err))
		}
		return
	}

	if comment.AuthorID != msg.AuthorID {
		context.Respond(utils.NewForbiddenError("Not the comment author"))
		return
	}

	previousContent := comment.Content
	if err := a.db.UpdateCommentContent(ctx, msg.CommentID, msg.Content); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to update comment", err))
		return
	}

	comment.Content = msg.Content
	comment.UpdatedAt = time.Now()

	if a.notifier != nil {
		post, err := a.db.GetPost(ctx, comment.PostID)
		if err != nil {
			log.Printf("Warning: skipping edit fan-out, failed to fetch post %s: %v", comment.PostID, err)
		} else {
			context.Send(a.notifier, &CommentEditedEvt{
				Comment:         comment,
				Post:            post,
				PreviousContent: previousContent,
			})
		}
	}

	a.metrics.AddOperationLatency("edit_comment", time.Since(start))
	context.Respond(comment)
}

func (a *CommentActor) handleDeleteComment(context actor.Context, msg *DeleteCommentMsg) {
	start := time.Now()
	ctx := stdctx.Background()

	comment, err := a.db.GetComment(ctx, msg.CommentID)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			context.Respond(utils.NewAppError(utils.ErrNotFound, "Comment not found", nil))
		} else {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch comment", err))
		}
		return
	}

	if comment.AuthorID != msg.AuthorID {
		context.Respond(utils.NewForbiddenError("Not the comment author"))
		return
	}

	deleted, err := a.db.DeleteCommentTree(ctx, msg.CommentID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to delete comment", err))
		return
	}

	if err := a.db.IncrementPostCommentCount(ctx, comment.PostID, -deleted); err != nil {
		log.Printf("Warning: failed to adjust comment count for post %s: %v", comment.PostID, err)
	}

	a.metrics.AddOperationLatency("delete_comment", time.Since(start))
	log.Printf("Deleted comment %s and %d descendants", msg.CommentID, deleted-1)
	context.Respond(&models.StatusResponse{Success: true})
}

func (a *CommentActor) handleGetComment(context actor.Context, msg *GetCommentMsg) {
	ctx := stdctx.Background()
	comment, err := a.db.GetComment(ctx, msg.CommentID)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			context.Respond(utils.NewAppError(utils.ErrNotFound, "Comment not found", nil))
		} else {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch comment", err))
		}
		return
	}
	context.Respond(comment)
}

func (a *CommentActor) handleGetPostComments(context actor.Context, msg *GetCommentsForPostMsg) {
	start := time.Now()
	ctx := stdctx.Background()

	flat, err := a.db.GetPostComments(ctx, msg.PostID)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch comments", err))
		return
	}

	a.metrics.AddOperationLatency("get_post_comments", time.Since(start))
	context.Respond(models.BuildCommentTree(flat))
}
