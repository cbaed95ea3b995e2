// File: internal/server/websocket.go
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
)

// Constants for WebSocket timeouts and limits (based on Gorilla WebSocket examples).
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 8192
	// Send buffer size
	sendChannelSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The CORS middleware allows any origin, so the handshake mirrors that.
	// Restrict this before exposing the server beyond localhost.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient represents a single active WebSocket connection. It manages the
// connection lifecycle and message pumps.
type wsClient struct {
	logger *zap.Logger
	conn   *websocket.Conn
	// Buffered channel of outgoing events. The writePump reads from this.
	send chan ProgressEvent
	// Closed when the read side ends, releasing the forwarder.
	done chan struct{}
}

// handleProgressSocket streams progress events for one analysis over a
// WebSocket. The stream replays the job's current status on connect and ends
// after a terminal event.
func (s *Server) handleProgressSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analysisID := chi.URLParam(r, "analysisID")
		job, err := s.repo.Get(r.Context(), analysisID)
		if err != nil {
			if errors.Is(err, schemas.ErrAnalysisNotFound) {
				http.Error(w, "analysis not found", http.StatusNotFound)
			} else {
				s.logger.Error("Failed to load analysis for progress stream.", zap.Error(err))
				http.Error(w, "failed to load analysis", http.StatusInternalServerError)
			}
			return
		}

		// Subscribe before upgrading so no events slip between the status
		// snapshot and the live stream.
		events, unsubscribe := s.broker.Subscribe(analysisID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			unsubscribe()
			// upgrader.Upgrade already sent an HTTP error response.
			s.logger.Error("Failed to upgrade connection to WebSocket", zap.Error(err))
			return
		}
		s.logger.Debug("Progress stream connected.",
			zap.String("analysis_id", analysisID), zap.String("remote_addr", r.RemoteAddr))

		client := &wsClient{
			logger: s.logger,
			conn:   conn,
			send:   make(chan ProgressEvent, sendChannelSize),
			done:   make(chan struct{}),
		}

		snapshot := statusEvent(job)
		snapshot.Record = job.Record
		client.send <- snapshot

		go client.writePump()

		if snapshot.Type.Terminal() {
			// Nothing further will be published for a finished job.
			unsubscribe()
			close(client.send)
			client.readPump()
			return
		}

		go client.forward(events, unsubscribe)
		client.readPump()
	}
}

// forward moves broker events into the client's send buffer. Progress events
// are dropped when the client cannot keep up; the terminal event always gets
// through and ends the stream.
func (c *wsClient) forward(events <-chan ProgressEvent, unsubscribe func()) {
	defer unsubscribe()
	for {
		select {
		case ev := <-events:
			if ev.Type.Terminal() {
				select {
				case c.send <- ev:
				case <-c.done:
					return
				}
				close(c.send)
				return
			}
			select {
			case c.send <- ev:
			default:
				c.logger.Warn("WebSocket send buffer full, dropping progress event. Client may be unresponsive.",
					zap.String("analysis_id", ev.AnalysisID))
			}
		case <-c.done:
			return
		}
	}
}

// readPump keeps the connection responsive to control messages. Progress
// streams are one-way, so incoming data frames are discarded.
func (c *wsClient) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps events to the WebSocket connection. It centralizes all
// writes, ensuring synchronized access as required by Gorilla WebSocket, and
// sends PING messages to keep the connection alive.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("Failed to set write deadline", zap.Error(err))
				return
			}

			if !ok {
				// The send channel was closed after a terminal event. Tell the
				// client the stream is over and exit.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis finished"))
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug("Error writing JSON message to WebSocket", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("Failed to set write deadline for PING", zap.Error(err))
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
