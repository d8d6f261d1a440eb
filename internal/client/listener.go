package client

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mangrove/internal/models"
)

const reconnectDelay = 3 * time.Second

// Listener maintains the websocket connection that carries pushed
// notifications. Each delivered notification is handed to the sink;
// a dropped connection is redialed until the context ends.
type Listener struct {
	baseURL string
	token   string
	sink    func(*models.Notification)
}

// NewListener creates a listener that will connect to the engine at
// baseURL (http scheme, rewritten to ws) authenticating with token.
func NewListener(baseURL, token string, sink func(*models.Notification)) *Listener {
	return &Listener{baseURL: baseURL, token: token, sink: sink}
}

// envelope matches the hub's wire format.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Run connects and consumes until ctx is cancelled, reconnecting on
// any failure. It blocks; run it on its own goroutine.
func (l *Listener) Run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil && ctx.Err() == nil {
			log.Printf("ws listener: connection lost: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.wsURL(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage
	// unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("ws listener: malformed frame: %v", err)
			continue
		}
		if env.Type != "notification" {
			continue
		}

		var n models.Notification
		if err := json.Unmarshal(env.Payload, &n); err != nil {
			log.Printf("ws listener: malformed notification payload: %v", err)
			continue
		}
		l.sink(&n)
	}
}

func (l *Listener) wsURL() string {
	base := l.baseURL
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws?token=" + url.QueryEscape(l.token)
}
