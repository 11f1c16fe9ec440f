package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/layout"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer; drag messages are tiny
	maxMessageSize = 512

	// Pending error replies per connection
	replyBuffer = 8
)

// WebSocketMessage is an out-of-band message sent alongside frames.
type WebSocketMessage struct {
	Type    string      `json:"type"` // "error"
	Payload interface{} `json:"payload"`
}

// StreamHandler streams simulation frames over websockets and accepts drag
// messages in the other direction.
type StreamHandler struct {
	svc      *layout.Service
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a handler accepting upgrades from the given
// origins. Requests without an Origin header are always accepted, and "*"
// accepts every origin.
func NewStreamHandler(svc *layout.Service, allowedOrigins []string) *StreamHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &StreamHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// client is one websocket subscribed to one simulation.
type client struct {
	svc         *layout.Service
	simID       string
	conn        *websocket.Conn
	frames      <-chan layout.Frame
	unsubscribe func()
	replies     chan WebSocketMessage
}

// HandleWebSocket upgrades the connection and streams frames until the
// peer disconnects or the simulation is deleted.
// GET /api/simulations/{id}/ws
func (h *StreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	simID := mux.Vars(r)["id"]
	frames, unsubscribe, err := h.svc.Subscribe(simID)
	if err != nil {
		writeLayoutError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		unsubscribe()
		logger.WarnContext(r.Context(), "Failed to upgrade to WebSocket", "error", err, "simulation_id", simID)
		return
	}

	c := &client{
		svc:         h.svc,
		simID:       simID,
		conn:        conn,
		frames:      frames,
		unsubscribe: unsubscribe,
		replies:     make(chan WebSocketMessage, replyBuffer),
	}
	metrics.WebSocketConnections.Inc()
	logger.InfoContext(r.Context(), "WebSocket client connected", "simulation_id", simID)

	go c.writePump()
	go c.readPump()
}

// readPump applies inbound drag messages until the connection fails.
func (c *client) readPump() {
	defer func() {
		c.unsubscribe()
		c.conn.Close()
		metrics.WebSocketConnections.Dec()
		logger.WithSimulation("stream", c.simID).Info("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket unexpected close", "error", err, "simulation_id", c.simID)
			}
			return
		}

		var req layout.DragRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.reply(apierr.ValidationInvalidJSON())
			continue
		}
		if _, err := c.svc.Drag(c.simID, req); err != nil {
			c.reply(toAPIError(err))
		}
	}
}

// reply queues an error for the writer, dropping it when the queue is full.
func (c *client) reply(e *apierr.Error) {
	select {
	case c.replies <- WebSocketMessage{Type: "error", Payload: e}:
	default:
	}
}

// writePump is the only goroutine writing to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.frames:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// unsubscribed or simulation deleted
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "simulation closed"))
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
			metrics.WebSocketMessagesSent.Inc()

		case msg := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			metrics.WebSocketMessagesSent.Inc()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
