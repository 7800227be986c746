package bot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lunar-flights/super-game/internal/model"
	"github.com/lunar-flights/super-game/pkg/supergame"
)

// WSEvent mirrors handler.WSEvent for client-side deserialization.
type WSEvent struct {
	Type   string         `json:"type"`
	GameID string         `json:"game_id"`
	Seq    uint64         `json:"seq"`
	Data   map[string]any `json:"data"`
}

// Client is an HTTP+WebSocket client for a single remote player.
type Client struct {
	name     string
	baseURL  string
	token    string
	userID   string
	wsConn   *websocket.Conn
	events   chan WSEvent
	httpC    *http.Client
	mu       sync.Mutex
	closedWS bool
}

// NewClient creates a new client targeting the given server URL.
func NewClient(name, baseURL string) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		events:  make(chan WSEvent, 64),
		httpC:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the player name.
func (c *Client) Name() string { return c.name }

// UserID returns the player's user ID after login.
func (c *Client) UserID() string { return c.userID }

// Login authenticates via the dev login endpoint.
func (c *Client) Login() error {
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(http.MethodGet, "/auth/dev?name="+url.QueryEscape(c.name), nil, &tokens); err != nil {
		return fmt.Errorf("dev login: %w", err)
	}
	c.token = tokens.AccessToken

	var user model.User
	if err := c.do(http.MethodGet, "/api/v1/users/me", nil, &user); err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	c.userID = user.ID
	log.Debug().Str("player", c.name).Str("userId", c.userID).Msg("Remote player logged in")
	return nil
}

// CreateGame creates a multiplayer lobby. The remaining seats beyond the second human are bots.
func (c *Client) CreateGame(maxPlayers int, mapSize string, turnTimeLimit time.Duration) (*model.Game, error) {
	body := map[string]any{
		"max_players":     maxPlayers,
		"multiplayer":     true,
		"map_size":        mapSize,
		"turn_time_limit": turnTimeLimit.String(),
	}
	var game model.Game
	if err := c.do(http.MethodPost, "/api/v1/games", body, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// JoinGame joins an existing lobby.
func (c *Client) JoinGame(gameID string) error {
	return c.do(http.MethodPost, "/api/v1/games/"+gameID+"/join", nil, nil)
}

// GetGame fetches game details.
func (c *Client) GetGame(gameID string) (*model.Game, error) {
	var game model.Game
	if err := c.do(http.MethodGet, "/api/v1/games/"+gameID, nil, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// GetState fetches the engine state of a game.
func (c *Client) GetState(gameID string) (*supergame.GameState, error) {
	var raw json.RawMessage
	if err := c.do(http.MethodGet, "/api/v1/games/"+gameID+"/state", nil, &raw); err != nil {
		return nil, err
	}
	return supergame.Unmarshal(raw)
}

// Move moves or attacks from one tile to an adjacent one.
func (c *Client) Move(gameID string, from, to supergame.Coord) (*supergame.MoveResult, error) {
	var res supergame.MoveResult
	body := map[string]any{"from": from, "to": to}
	if err := c.do(http.MethodPost, "/api/v1/games/"+gameID+"/move", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Recruit buys units on an owned tile.
func (c *Client) Recruit(gameID string, r Recruit) error {
	body := map[string]any{"unit_type": r.Unit, "quantity": r.Quantity, "at": r.At}
	return c.do(http.MethodPost, "/api/v1/games/"+gameID+"/recruit", body, nil)
}

// EndTurn finishes the player's turn.
func (c *Client) EndTurn(gameID string) (*supergame.TurnReport, error) {
	var report supergame.TurnReport
	if err := c.do(http.MethodPost, "/api/v1/games/"+gameID+"/end-turn", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ConnectWS opens a WebSocket connection and starts listening for events.
func (c *Client) ConnectWS() error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/v1/ws?token=" + url.QueryEscape(c.token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	c.wsConn = conn

	go c.readWSLoop()
	return nil
}

// SubscribeGame sends a subscribe message for the given game.
func (c *Client) SubscribeGame(gameID string) error {
	msg := map[string]string{"action": "subscribe", "game_id": gameID}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wsConn.WriteJSON(msg)
}

// Events returns the channel of incoming WebSocket events.
func (c *Client) Events() <-chan WSEvent { return c.events }

// CloseWS closes the WebSocket connection.
func (c *Client) CloseWS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn != nil && !c.closedWS {
		c.closedWS = true
		c.wsConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.wsConn.Close()
	}
}

func (c *Client) readWSLoop() {
	defer close(c.events)
	lastSeq := make(map[string]uint64)
	for {
		_, msg, err := c.wsConn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closedWS
			c.mu.Unlock()
			if !closed {
				log.Debug().Err(err).Str("player", c.name).Msg("WS read error")
			}
			return
		}
		// Tolerate several newline-separated events in one frame.
		dec := json.NewDecoder(bytes.NewReader(msg))
		for {
			var event WSEvent
			if err := dec.Decode(&event); err != nil {
				break
			}
			if event.Seq > 0 {
				if prev := lastSeq[event.GameID]; prev > 0 && event.Seq > prev+1 {
					log.Debug().Str("player", c.name).Str("gameId", event.GameID).
						Uint64("missed", event.Seq-prev-1).Msg("WS events dropped by server")
				}
				lastSeq[event.GameID] = event.Seq
			}
			c.events <- event
		}
	}
}

// do sends a request and decodes the response into out when it is non-nil. Error statuses are
// returned with the response body.
func (c *Client) do(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpC.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
