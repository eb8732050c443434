package service

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastMatchEvent(matchID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMatchEvent(string, string, any) {}

// Event types pushed to spectators.
const (
	EventConstructCaptured    = "construct_captured"
	EventConstructTypeChanged = "construct_type_changed"
	EventMatchTick            = "match_tick"
	EventMatchPaused          = "match_paused"
	EventMatchResumed         = "match_resumed"
	EventMatchEnded           = "match_ended"
)
