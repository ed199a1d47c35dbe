package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/intentflow/engine/internal/engine"
	"github.com/intentflow/engine/pkg/api"
	"github.com/intentflow/engine/pkg/log"
)

// Client represents a WebSocket client connection streaming one flow's
// step results
type Client struct {
	server   *Server
	conn     *websocket.Conn
	consumer engine.EventConsumer
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16

	subscribeType = "subscribe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket upgrades the connection and streams flow events. The
// client selects a flow by sending a subscribe message; the stream closes
// when the flow completes
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", log.Error(err))
		return
	}

	client := &Client{server: s, conn: conn}
	go client.run()
}

func (c *Client) run() {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	flowID, ok := c.awaitSubscribe()
	if !ok {
		return
	}

	consumer, active := c.server.engine.Watch(flowID)
	if !active {
		c.writeError("flow is not active")
		return
	}
	c.consumer = consumer
	defer c.consumer.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		select {
		case event, open := <-c.consumer.Receive():
			if !open {
				c.writeClose()
				return
			}
			if !c.writeJSON(event) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(
				websocket.PingMessage, nil,
			); err != nil {
				return
			}
		case _, open := <-incoming:
			if !open {
				return
			}
		}
	}
}

// awaitSubscribe blocks until the client names a flow to stream
func (c *Client) awaitSubscribe() (api.FlowID, bool) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", false
		}
		var req api.SubscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.writeError("malformed subscribe message")
			continue
		}
		if req.Type != subscribeType || req.FlowID == "" {
			c.writeError("expected a subscribe message naming a flow")
			continue
		}
		return req.FlowID, true
	}
}

// readMessages drains the connection so pong frames are processed; the
// channel closes when the client goes away
func (c *Client) readMessages(incoming chan<- []byte) {
	defer close(incoming)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		incoming <- data
	}
}

func (c *Client) writeJSON(v any) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v) == nil
}

func (c *Client) writeError(msg string) {
	_ = c.writeJSON(api.ErrorResponse{Error: msg})
}

func (c *Client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}
