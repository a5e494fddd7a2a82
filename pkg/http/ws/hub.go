package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendQueueSize = 256
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	writeWait     = 10 * time.Second
)

// Hub tracks live connections and the topics each one follows.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection
	topics      map[string]map[uuid.UUID]struct{}
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		topics:      make(map[string]map[uuid.UUID]struct{}),
		logger:      logger,
	}
}

// Register adds a connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID] = conn
	h.logger.Debug().Str("conn_id", conn.ID.String()).Msg("connection registered")
}

// Unregister closes and forgets a connection and its subscriptions.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.connections[id]; ok {
		conn.Close()
		delete(h.connections, id)
	}
	for topic, subs := range h.topics {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Subscribe adds the connection to topic.
func (h *Hub) Subscribe(topic string, id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[uuid.UUID]struct{})
		h.topics[topic] = subs
	}
	subs[id] = struct{}{}
}

// Unsubscribe removes the connection from topic.
func (h *Hub) Unsubscribe(topic string, id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish sends msg to every subscriber of topic and returns how many accepted it.
func (h *Hub) Publish(topic string, msg Message) int {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.topics[topic]))
	for id := range h.topics[topic] {
		if conn, ok := h.connections[id]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, conn := range targets {
		if err := conn.Send(msg); err != nil {
			h.logger.Warn().Err(err).Str("conn_id", conn.ID.String()).Str("topic", topic).Msg("publish send failed")
			continue
		}
		sent++
	}
	return sent
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Connection is a WebSocket connection with a buffered send queue.
type Connection struct {
	ID     uuid.UUID
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection. conn may be nil in tests that
// only exercise the send queue.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		ID:     uuid.New(),
		conn:   conn,
		sendCh: make(chan Message, sendQueueSize),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection. Safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// WritePump drains the send queue and keeps the peer alive with pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump receives messages and calls handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionClosed = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull    = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
