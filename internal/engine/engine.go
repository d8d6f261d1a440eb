package engine

import (
	"mangrove/internal/database"
	"mangrove/internal/engine/actors"
	"mangrove/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine spawns and holds the actor graph. Handlers talk to actors
// through the PIDs it exposes; actors talk to each other directly.
type Engine struct {
	userActor         *actor.PID
	postActor         *actor.PID
	commentActor      *actor.PID
	notificationActor *actor.PID
}

// NewEngine wires the actor graph. The notification actor is spawned
// first so the comment actor can hold its PID for event fan-out.
func NewEngine(system *actor.ActorSystem, db database.DBAdapter, pusher actors.Pusher, metrics *utils.MetricsCollector) *Engine {
	context := system.Root

	notificationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewNotificationActor(db, pusher, metrics)
	})
	notificationPID := context.Spawn(notificationProps)

	commentProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewCommentActor(db, notificationPID, metrics)
	})
	commentPID := context.Spawn(commentProps)

	postProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewPostActor(db, metrics)
	})
	postPID := context.Spawn(postProps)

	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserActor(db)
	})
	userPID := context.Spawn(userProps)

	return &Engine{
		userActor:         userPID,
		postActor:         postPID,
		commentActor:      commentPID,
		notificationActor: notificationPID,
	}
}

// GetUserActor returns the PID of the user actor
func (e *Engine) GetUserActor() *actor.PID {
	return e.userActor
}

// GetPostActor returns the PID of the post actor
func (e *Engine) GetPostActor() *actor.PID {
	return e.postActor
}

// GetCommentActor returns the PID of the comment actor
func (e *Engine) GetCommentActor() *actor.PID {
	return e.commentActor
}

// GetNotificationActor returns the PID of the notification actor
func (e *Engine) GetNotificationActor() *actor.PID {
	return e.notificationActor
}
