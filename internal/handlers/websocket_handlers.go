package handlers

import (
	"log"
	"net/http"

	"mangrove/internal/middleware"
	ws "mangrove/internal/websocket"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and attaches it to the hub.
// Browsers cannot set headers on websocket dials, so the token rides
// in the query string instead of an Authorization header.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Missing token", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ValidateToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}

		client := ws.NewClient(s.Hub, claims.UserID, conn)
		go client.WritePump()
		go client.ReadPump()
	}
}
