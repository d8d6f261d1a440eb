package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"mangrove/internal/engine"
	"mangrove/internal/utils"
	"mangrove/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Metrics        *utils.MetricsCollector
	Hub            *websocket.Hub
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	context *actor.RootContext,
	eng *engine.Engine,
	metrics *utils.MetricsCollector,
	hub *websocket.Hub,
) *Server {
	return &Server{
		System:         system,
		Context:        context,
		Engine:         eng,
		Metrics:        metrics,
		Hub:            hub,
		RequestTimeout: 5 * time.Second,
	}
}

// writeJSON encodes a success response body.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeAppError maps an AppError to its HTTP status and the standard
// error body shape.
func writeAppError(w http.ResponseWriter, appErr *utils.AppError) {
	writeJSON(w, utils.AppErrorToHTTPStatus(appErr.Code), map[string]string{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// respondActorResult writes an actor reply: AppErrors become error
// responses, everything else is encoded as-is.
func respondActorResult(w http.ResponseWriter, result interface{}) {
	if appErr, ok := result.(*utils.AppError); ok {
		writeAppError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
