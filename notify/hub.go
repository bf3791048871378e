// Package notify pushes server events to connected clients over
// websockets. Each user gets a room keyed by their user ID; publishing
// fans out to every live connection in the room.
package notify

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second

	// sendBuffer bounds per-connection backlog. A full buffer drops
	// the event rather than blocking the publisher.
	sendBuffer = 32
)

// Event is the wire envelope for every push.
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// TokenVerifier resolves a session token to a user ID.
type TokenVerifier interface {
	VerifySession(token string) (string, error)
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan Event
}

// Hub tracks live connections grouped by user.
type Hub struct {
	Tokens TokenVerifier
	Logger *zap.Logger

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*client]bool
}

func NewHub(tokens TokenVerifier, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		Tokens: tokens,
		Logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]bool),
	}
}

// Publish sends an event to every connection of the given user. Pushes
// are advisory: slow or absent connections do not block the caller.
func (h *Hub) Publish(userID, event string, payload any) {
	ev := Event{Event: event, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[userID] {
		select {
		case c.send <- ev:
		default:
			h.Logger.Warn("dropping event for slow client",
				zap.String("userId", userID), zap.String("event", event))
		}
	}
}

// ConnectedUsers reports how many users have at least one connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// HandleWS upgrades the request and joins the caller's room. The token
// comes from the "token" query parameter or a bearer Authorization
// header.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	userID, err := h.Tokens.VerifySession(token)
	if err != nil {
		http.Error(w, "Token is not valid", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan Event, sendBuffer)}
	h.join(c)
	h.Logger.Info("client connected", zap.String("userId", userID))

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.userID]
	if room == nil {
		room = make(map[*client]bool)
		h.rooms[c.userID] = room
	}
	room[c] = true
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.userID]
	if room != nil && room[c] {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.userID)
		}
		close(c.send)
	}
}

// readLoop consumes client messages. The only client-initiated event is
// upload:start which is acknowledged back into the room.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.leave(c)
		c.conn.Close()
		h.Logger.Info("client disconnected", zap.String("userId", c.userID))
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.Event == "upload:start" {
			h.Publish(c.userID, "upload:acknowledged", ev.Payload)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Warn("marshal event failed", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
