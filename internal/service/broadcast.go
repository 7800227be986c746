package service

// Event types pushed to clients watching a game.
const (
	EventPlayerJoined   = "player_joined"
	EventGameStarted    = "game_started"
	EventUnitMoved      = "unit_moved"
	EventUnitsRecruited = "units_recruited"
	EventBuilt          = "building_constructed"
	EventTurnEnded      = "turn_ended"
	EventGameEnded      = "game_ended"
)

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastGameEvent(gameID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastGameEvent(string, string, any) {}
