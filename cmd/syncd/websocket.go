// WebSocket surface for the desktop/web clients: sync state and cycle events
// are pushed to subscribers instead of the UI polling engine internals.
package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Growth-Sheriff/dernekv1-sub001/internal/logging"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local clients only
		return strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1")
	},
}

// WebSocket event types.
const (
	EventSyncStarted          = "sync.started"
	EventSyncCompleted        = "sync.completed"
	EventSyncSkipped          = "sync.skipped"
	EventSyncFailed           = "sync.failed"
	EventSyncConflictDetected = "sync.conflict_detected"
	EventSyncState            = "sync.state"
)

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// WSClient is one connected UI client.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub maintains active client connections and broadcasts events.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// NewWSHub creates a hub and starts its dispatch loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full; drop the client.
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event envelope to all connected clients.
func (h *WSHub) Broadcast(messageType string, data map[string]any) {
	envelope := WSEnvelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("failed to marshal websocket event", err)
		return
	}
	h.broadcast <- payload
}

// BroadcastState pushes a sync state snapshot. Wired into the engine's
// state subscription at startup.
func (h *WSHub) BroadcastState(state models.SyncState) {
	h.Broadcast(EventSyncState, map[string]any{
		"is_online":     state.IsOnline,
		"is_syncing":    state.IsSyncing,
		"last_sync_at":  state.LastSyncAt,
		"pending_count": state.PendingCount,
	})
}

// BroadcastCycleStarted announces a manual cycle beginning.
func (h *WSHub) BroadcastCycleStarted() {
	h.Broadcast(EventSyncStarted, map[string]any{"status": "started"})
}

// BroadcastCycleCompleted announces a finished cycle.
func (h *WSHub) BroadcastCycleCompleted(pushed, pulled, conflicts int, duration time.Duration) {
	h.Broadcast(EventSyncCompleted, map[string]any{
		"pushed":      pushed,
		"pulled":      pulled,
		"conflicts":   conflicts,
		"duration_ms": duration.Milliseconds(),
		"status":      "completed",
	})
}

// BroadcastCycleSkipped announces a cycle that coalesced into a running one
// or short-circuited offline. Every started event gets a terminal event,
// skips included, so subscribers never wait on a dangling start.
func (h *WSHub) BroadcastCycleSkipped(reason string) {
	h.Broadcast(EventSyncSkipped, map[string]any{
		"reason": reason,
		"status": "skipped",
	})
}

// BroadcastCycleFailed announces a failed cycle.
func (h *WSHub) BroadcastCycleFailed(errorCode string) {
	h.Broadcast(EventSyncFailed, map[string]any{
		"error_code": errorCode,
		"status":     "failed",
	})
}

// BroadcastConflicts announces newly detected conflicts.
func (h *WSHub) BroadcastConflicts(conflicts []models.SyncConflict) {
	entries := make([]map[string]any, 0, len(conflicts))
	for _, c := range conflicts {
		entries = append(entries, map[string]any{
			"table":       string(c.Table),
			"record_id":   c.RecordID,
			"detected_at": c.DetectedAt,
		})
	}
	h.Broadcast(EventSyncConflictDetected, map[string]any{
		"conflicts": entries,
	})
}

// ServeWS upgrades an HTTP request to a WebSocket subscription.
func (h *WSHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", err)
		return
	}
	client := &WSClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("websocket read error", map[string]any{"error": err.Error()})
			}
			return
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
