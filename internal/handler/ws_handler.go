package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/auth"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler. allowedOrigins has the same format as the CORS middleware:
// "*" or a comma-separated list.
func NewWSHandler(hub *Hub, allowedOrigins string) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed string) func(*http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowed, ",") {
		origins[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origins[origin]
	}
}

// ServeWS handles GET /api/v1/ws and upgrades to WebSocket. It runs behind auth.Middleware,
// which accepts the token as a ?token= query parameter for upgrade requests.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)

	welcome, _ := json.Marshal(WSEvent{Type: EventConnected, Data: map[string]any{
		"user_id":           userID,
		"max_subscriptions": maxSubscriptions,
	}})
	h.hub.deliver(client, welcome, EventConnected)

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("userId", userID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump handles subscribe and unsubscribe actions until the peer goes away, then removes the
// connection from the hub. Malformed messages are ignored.
func (h *WSHandler) readPump(c *WSConn) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(maxMsgSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("userId", c.userID).Msg("WebSocket unexpected close")
			}
			return
		}
		var msg ClientMessage
		if json.Unmarshal(data, &msg) == nil && msg.GameID != "" {
			h.handleAction(c, msg)
		}
	}
}

func (h *WSHandler) disconnect(c *WSConn) {
	h.hub.Unregister(c)
	c.conn.Close()
	log.Info().Str("userId", c.userID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client disconnected")
}

func (h *WSHandler) handleAction(c *WSConn, msg ClientMessage) {
	switch msg.Action {
	case ActionSubscribe:
		if err := h.hub.Subscribe(c, msg.GameID); err != nil {
			log.Warn().Err(err).Str("userId", c.userID).Str("gameId", msg.GameID).Msg("Subscription refused")
			reply, _ := json.Marshal(WSEvent{Type: EventError, GameID: msg.GameID, Data: map[string]string{"error": err.Error()}})
			h.hub.deliver(c, reply, EventError)
		}
	case ActionUnsubscribe:
		h.hub.Unsubscribe(c, msg.GameID)
	}
}

// writePump owns all writes to the connection. It sends each queued event as its own text frame
// and pings on an idle ticker; it exits once the hub closes the queue or a write fails.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		var err error
		select {
		case msg, ok := <-c.send:
			if !ok {
				writeFrame(c.conn, websocket.CloseMessage, nil)
				return
			}
			err = writeFrame(c.conn, websocket.TextMessage, msg)
		case <-ticker.C:
			err = writeFrame(c.conn, websocket.PingMessage, nil)
		}
		if err != nil {
			log.Debug().Err(err).Str("userId", c.userID).Msg("WebSocket write failed")
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, messageType int, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, data)
}
