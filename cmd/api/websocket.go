package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grubwheel/grubwheel/pkg/session"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: (60 * time.Second * 9) / 10,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, this should be more restrictive
		return true
	},
}

// SessionEvents streams session state changes over a WebSocket. The stream
// is one-way: incoming frames are read only to detect the peer going away.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFromRequest(w, r)
	if s == nil {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	events, unsubscribe := s.Subscribe()
	done := make(chan struct{})

	// Snapshot first so a late joiner starts from the current state
	initial, _ := json.Marshal(map[string]interface{}{
		"type":    "state",
		"payload": s.Snapshot(),
	})

	go writePump(conn, initial, events, done)
	go readPump(conn, func() {
		unsubscribe()
		close(done)
	})
}

// readPump discards incoming frames until the connection drops, then runs
// the cleanup.
func readPump(conn *websocket.Conn, cleanup func()) {
	config := DefaultWebSocketConfig()

	defer func() {
		cleanup()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(config.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump forwards session events to the WebSocket connection.
func writePump(conn *websocket.Conn, initial []byte, events <-chan session.Event, done <-chan struct{}) {
	config := DefaultWebSocketConfig()
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		return
	}

	for {
		select {
		case evt := <-events:
			payload, err := json.Marshal(evt)
			if err != nil {
				log.Printf("Failed to encode event: %v", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
