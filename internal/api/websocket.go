package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wemix/blockwait/internal/track"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size in bytes.
	maxMessageSize = 512

	wsSendBufferSize      = 256
	wsBroadcastBufferSize = 256
)

// WebSocket topics clients can subscribe to.
const (
	// TopicHeight carries bare height updates.
	TopicHeight = "height"

	// TopicStatus carries full tracker snapshots.
	TopicStatus = "status"
)

var validWSTopics = map[string]bool{
	TopicHeight: true,
	TopicStatus: true,
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin policy is enforced by the CORS middleware.
		return true
	},
}

// WSMessage is the envelope for every message sent to a client.
type WSMessage struct {
	Type  string      `json:"type"`
	Topic string      `json:"topic"`
	Data  interface{} `json:"data,omitempty"`
	Time  int64       `json:"timestamp"`
}

// WSSubscribeRequest is the inbound subscription control message.
type WSSubscribeRequest struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// WSClient is one connected WebSocket peer.
type WSClient struct {
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]bool
	mu            sync.Mutex
}

// writeMessage queues a message for delivery without blocking. Messages
// to a slow client are dropped once its buffer is full.
func (c *WSClient) writeMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) subscribedTo(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions[topic]
}

func (c *WSClient) setSubscription(topic string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.subscriptions[topic] = true
	} else {
		delete(c.subscriptions, topic)
	}
}

// handleWebSocket upgrades the connection and registers the client.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &WSClient{
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]bool),
	}

	s.wsClientsMu.Lock()
	s.wsClients[client] = true
	count := len(s.wsClients)
	s.wsClientsMu.Unlock()

	s.logger.Info("websocket client connected", zap.Int("clients", count))

	client.writeMessage(WSMessage{
		Type:  "connected",
		Topic: "system",
		Data:  gin.H{"topics": []string{TopicHeight, TopicStatus}},
		Time:  time.Now().Unix(),
	})

	go client.writePump()
	go client.readPump(s)
}

func (s *Server) unregisterClient(client *WSClient) {
	s.wsClientsMu.Lock()
	if _, ok := s.wsClients[client]; ok {
		delete(s.wsClients, client)
		close(client.send)
	}
	count := len(s.wsClients)
	s.wsClientsMu.Unlock()

	s.logger.Info("websocket client disconnected", zap.Int("clients", count))
}

// readPump consumes control messages from the peer until the connection
// drops, then unregisters the client.
func (c *WSClient) readPump(s *Server) {
	defer func() {
		s.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Warn("invalid websocket request", zap.Error(err))
			continue
		}

		s.handleSubscribeRequest(c, req)
	}
}

func (s *Server) handleSubscribeRequest(c *WSClient, req WSSubscribeRequest) {
	switch req.Action {
	case "subscribe":
		for _, topic := range req.Topics {
			if !validWSTopics[topic] {
				s.logger.Warn("subscription to unknown topic ignored", zap.String("topic", topic))
				continue
			}
			c.setSubscription(topic, true)
			c.writeMessage(WSMessage{Type: "subscribed", Topic: topic, Time: time.Now().Unix()})
		}
	case "unsubscribe":
		for _, topic := range req.Topics {
			c.setSubscription(topic, false)
			c.writeMessage(WSMessage{Type: "unsubscribed", Topic: topic, Time: time.Now().Unix()})
		}
	default:
		s.logger.Warn("unknown websocket action", zap.String("action", req.Action))
	}
}

// writePump delivers queued messages and keeps the connection alive with
// pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// runBroadcast fans queued broadcasts out to subscribed clients.
func (s *Server) runBroadcast() {
	for {
		select {
		case <-s.wsDone:
			return
		case msg := <-s.wsBroadcast:
			s.wsClientsMu.RLock()
			for client := range s.wsClients {
				if client.subscribedTo(msg.Topic) {
					client.writeMessage(msg)
				}
			}
			s.wsClientsMu.RUnlock()
		}
	}
}

// BroadcastHeight publishes a height update to TopicHeight subscribers.
func (s *Server) BroadcastHeight(height int64) {
	s.broadcast(WSMessage{
		Type:  "update",
		Topic: TopicHeight,
		Data:  gin.H{"height": height},
		Time:  time.Now().Unix(),
	})
}

// BroadcastStatus publishes a tracker snapshot to TopicStatus
// subscribers.
func (s *Server) BroadcastStatus(snap track.Snapshot) {
	s.broadcast(WSMessage{
		Type:  "update",
		Topic: TopicStatus,
		Data:  snap,
		Time:  time.Now().Unix(),
	})
}

func (s *Server) broadcast(msg WSMessage) {
	select {
	case s.wsBroadcast <- msg:
	default:
		s.logger.Warn("websocket broadcast channel full, dropping message",
			zap.String("topic", msg.Topic))
	}
}
