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

// Message types for PostActor
type (
	CreatePostMsg struct {
		Title    string    `json:"title"`
		Content  string    `json:"content"`
		AuthorID uuid.UUID `json:"authorId"`
	}

	GetPostMsg struct {
		PostID uuid.UUID `json:"postId"`
	}

	GetRecentPostsMsg struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
)

// PostActor owns post reads and writes.
type PostActor struct {
	db      database.DBAdapter
	metrics *utils.MetricsCollector
}

func NewPostActor(db database.DBAdapter, metrics *utils.MetricsCollector) actor.Actor {
	return &PostActor{db: db, metrics: metrics}
}

func (a *PostActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		log.Printf("PostActor started with PID: %v", context.Self())

	case *CreatePostMsg:
		a.handleCreatePost(context, msg)

	case *GetPostMsg:
		a.handleGetPost(context, msg)

	case *GetRecentPostsMsg:
		a.handleGetRecentPosts(context, msg)

	default:
		log.Printf("PostActor: Unknown message type %T", msg)
	}
}

func (a *PostActor) handleCreatePost(context actor.Context, msg *CreatePostMsg) {
	start := time.Now()

	if strings.TrimSpace(msg.Title) == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Post title cannot be empty", nil))
		return
	}

	ctx := stdctx.Background()
	author, err := a.db.GetUser(ctx, msg.AuthorID)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrUserNotFound) {
			context.Respond(utils.NewAppError(utils.ErrUserNotFound, "Author not found", nil))
		} else {
			context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch author", err))
		}
		return
	}

	now := time.Now()
	post := &models.Post{
		ID:             uuid.New(),
		Title:          msg.Title,
		Content:        msg.Content,
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := a.db.SavePost(ctx, post); err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to save post", err))
		return
	}

	a.metrics.AddOperationLatency("create_post", time.Since(start))
	log.Printf("Created post %s by %s", post.ID, author.Username)
	context.Respond(post)
}

func (a *PostActor) handleGetPost(context actor.Context, msg *GetPostMsg) {
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
	context.Respond(post)
}

func (a *PostActor) handleGetRecentPosts(context actor.Context, msg *GetRecentPostsMsg) {
	ctx := stdctx.Background()

	limit := msg.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	posts, err := a.db.GetRecentPosts(ctx, limit, msg.Offset)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrDatabase, "Failed to fetch posts", err))
		return
	}
	if posts == nil {
		posts = make([]*models.Post, 0)
	}
	context.Respond(posts)
}
