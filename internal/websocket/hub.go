package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangrove/internal/models"
)

// directPush addresses one payload to every live connection of one user.
type directPush struct {
	targetUserID uuid.UUID
	payload      []byte
}

// envelope frames everything pushed down a socket so clients can
// dispatch on type.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub is the connection registry: it tracks which users currently
// have live websocket connections and delivers pushed notifications
// to all of them. A user with no connections is silently skipped;
// persistence is the notification store's job, not the hub's.
type Hub struct {
	// clients maps a user id to that user's open connections. A user
	// may hold several (multiple tabs, devices).
	clients map[uuid.UUID]map[*Client]bool

	push       chan *directPush
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		push:       make(chan *directPush, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]map[*Client]bool),
	}
}

// Run drives the registry loop. Meant to run on its own goroutine for
// the process lifetime.
func (h *Hub) Run() {
	log.Println("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[client.UserID]; !ok {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			log.Printf("WebSocket client registered for user %s (%d connections)", client.UserID, len(h.clients[client.UserID]))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case msg := <-h.push:
			h.deliver(msg)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	userClients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, exists := userClients[client]; !exists {
		return
	}
	delete(userClients, client)
	close(client.Send)
	if len(userClients) == 0 {
		delete(h.clients, client.UserID)
		log.Printf("WebSocket user %s has no more connections", client.UserID)
	}
}

func (h *Hub) deliver(msg *directPush) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[msg.targetUserID]
	if !ok {
		// Offline recipients still get the row persisted upstream;
		// nothing to do here.
		return
	}
	for client := range userClients {
		select {
		case client.Send <- msg.payload:
		default:
			// A full buffer means the reader is gone or wedged.
			// Drop the connection so the registry self-heals.
			log.Printf("WebSocket send buffer full for user %s, dropping connection", client.UserID)
			h.removeLocked(client)
		}
	}
}

// PushNotification delivers a notification to every live connection
// of its recipient, wrapped in the standard envelope. It never
// blocks the caller for long; delivery is best effort.
func (h *Hub) PushNotification(n *models.Notification) {
	payload, err := json.Marshal(envelope{Type: "notification", Payload: n})
	if err != nil {
		log.Printf("WebSocket hub: failed to encode notification %s: %v", n.ID, err)
		return
	}
	select {
	case h.push <- &directPush{targetUserID: n.UserID, payload: payload}:
	case <-time.After(time.Second):
		log.Printf("WebSocket hub: push queue blocked, dropped notification for user %s", n.UserID)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
