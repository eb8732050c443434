package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/minimalists/api/internal/auth"
	"github.com/freeeve/minimalists/api/pkg/conquest"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

// EventMatchSnapshot is sent to a connection right after it subscribes.
const EventMatchSnapshot = "match_snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware
	},
}

// SnapshotSource supplies the current state of a match.
type SnapshotSource interface {
	Snapshot(ctx context.Context, matchID string) (*conquest.Snapshot, error)
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub       *Hub
	jwtMgr    *auth.JWTManager
	snapshots SnapshotSource
}

// NewWSHandler creates a WSHandler. snapshots may be nil.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, snapshots SnapshotSource) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, snapshots: snapshots}
}

// ServeWS handles GET /api/v1/ws and upgrades to WebSocket. Spectating is
// open; an optional ?token= seat token tags the connection with its seat.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	var seat string
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		claims, err := h.jwtMgr.ValidateToken(tokenStr)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		seat = claims.MatchID + "/" + claims.FactionID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn: conn,
		id:   uuid.NewString(),
		seat: seat,
		send: make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)

	// Send a welcome message so the client can confirm the connection is live.
	h.hub.sendTo(client, WSEvent{Type: "connected", Data: map[string]any{"conn_id": client.id}})

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("connId", client.id).Str("seat", seat).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("connId", c.id).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connId", c.id).Msg("WebSocket unexpected close")
			}
			break
		}
		h.handleMessage(c, message)
	}
}

func (h *WSHandler) handleMessage(c *WSConn, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.MatchID == "" {
		return
	}

	switch msg.Action {
	case "subscribe":
		h.hub.Subscribe(c, msg.MatchID)
		h.sendSnapshot(c, msg.MatchID)
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.MatchID)
	}
}

// sendSnapshot primes a new subscriber with the match's current state.
func (h *WSHandler) sendSnapshot(c *WSConn, matchID string) {
	if h.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	snap, err := h.snapshots.Snapshot(ctx, matchID)
	if err != nil {
		log.Debug().Err(err).Str("connId", c.id).Str("matchId", matchID).Msg("No snapshot for subscriber")
		return
	}
	h.hub.sendTo(c, WSEvent{Type: EventMatchSnapshot, MatchID: matchID, Data: snap})
}

// writePump writes messages to the WebSocket connection.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
