package handler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/metrics"
	"github.com/lunar-flights/super-game/internal/service"
)

// maxSubscriptions caps how many games a single connection may watch.
const maxSubscriptions = 16

// Hub-level event types. Game event types live in the service package.
const (
	EventConnected = "connected"
	EventError     = "error"
)

// Client actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

var errTooManySubscriptions = errors.New("too many subscriptions")

// WSEvent is the envelope for all WebSocket messages. Seq numbers the events of one game channel
// so a client can tell when a slow connection had events dropped.
type WSEvent struct {
	Type   string `json:"type"`
	GameID string `json:"game_id,omitempty"`
	Seq    uint64 `json:"seq,omitempty"`
	Data   any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string `json:"action"`
	GameID string `json:"game_id"`
}

// WSConn is one upgraded connection of a signed-in user.
type WSConn struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	games  map[string]struct{} // guarded by Hub.mu
}

type gameChannel struct {
	seq      uint64
	watchers map[*WSConn]struct{}
}

// Hub fans game events out to the connections watching each game. It implements
// service.Broadcaster.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[*WSConn]struct{}
	games map[string]*gameChannel
	conns int
	rec   *metrics.Recorder
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		users: make(map[string]map[*WSConn]struct{}),
		games: make(map[string]*gameChannel),
	}
}

// WithMetrics makes the hub report connections and dropped events to rec.
func (h *Hub) WithMetrics(rec *metrics.Recorder) *Hub {
	h.rec = rec
	return h
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*WSConn]struct{})
	}
	if _, ok := h.users[c.userID][c]; ok {
		return
	}
	h.users[c.userID][c] = struct{}{}
	h.conns++
	h.rec.Connection(context.Background(), 1)
}

// Unregister drops a connection and all its subscriptions, then closes its send queue.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.users[c.userID]
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.users, c.userID)
	}
	for gameID := range c.games {
		h.leave(c, gameID)
	}
	h.conns--
	h.rec.Connection(context.Background(), -1)
	close(c.send)
}

// Subscribe starts sending the events of gameID to c.
func (h *Hub) Subscribe(c *WSConn, gameID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := c.games[gameID]; ok {
		return nil
	}
	if len(c.games) >= maxSubscriptions {
		return errTooManySubscriptions
	}
	if c.games == nil {
		c.games = make(map[string]struct{})
	}
	ch := h.games[gameID]
	if ch == nil {
		ch = &gameChannel{watchers: make(map[*WSConn]struct{})}
		h.games[gameID] = ch
	}
	ch.watchers[c] = struct{}{}
	c.games[gameID] = struct{}{}
	return nil
}

// Unsubscribe stops sending the events of gameID to c.
func (h *Hub) Unsubscribe(c *WSConn, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(c, gameID)
}

// leave must be called with h.mu held.
func (h *Hub) leave(c *WSConn, gameID string) {
	delete(c.games, gameID)
	ch, ok := h.games[gameID]
	if !ok {
		return
	}
	delete(ch.watchers, c)
	if len(ch.watchers) == 0 {
		delete(h.games, gameID)
	}
}

// BroadcastGameEvent pushes a service event to everyone watching the game. The channel is torn
// down after the game ends.
func (h *Hub) BroadcastGameEvent(gameID string, eventType string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := h.games[gameID]
	if ch == nil {
		return
	}
	ch.seq++
	msg, err := json.Marshal(WSEvent{Type: eventType, GameID: gameID, Seq: ch.seq, Data: data})
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Str("event", eventType).Msg("Failed to marshal WebSocket event")
		return
	}
	for c := range ch.watchers {
		h.deliver(c, msg, eventType)
	}

	if eventType == service.EventGameEnded {
		for c := range ch.watchers {
			delete(c.games, gameID)
		}
		delete(h.games, gameID)
	}
}

// BroadcastToUser sends an event to every connection of a user.
func (h *Hub) BroadcastToUser(userID string, event WSEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		h.deliver(c, msg, event.Type)
	}
}

// deliver never blocks; a connection that cannot keep up loses the message.
func (h *Hub) deliver(c *WSConn, msg []byte, eventType string) {
	select {
	case c.send <- msg:
	default:
		h.rec.EventDropped(context.Background(), eventType)
		log.Warn().Str("userId", c.userID).Str("event", eventType).Msg("Dropping WebSocket message, buffer full")
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns
}

// GameSubscriberCount returns the number of connections watching a game.
func (h *Hub) GameSubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ch := h.games[gameID]; ch != nil {
		return len(ch.watchers)
	}
	return 0
}
