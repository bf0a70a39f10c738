package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client represents one websocket connection of one portal user, scoped to
// a single push topic.
type Client struct {
	ID     string          // Unique client ID
	UserID string          // Authenticated user ID
	Topic  string          // "messages" or "notifications"
	Conn   *websocket.Conn // WebSocket connection
	Send   chan []byte     // Outbound frame channel
	rooms  map[string]bool // Subscribed rooms
	mu     sync.RWMutex    // Protects rooms map and conn writes
}

func NewClient(conn *websocket.Conn, userID, topic string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Topic:  topic,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		rooms:  make(map[string]bool),
	}
}

// Subscribe adds a room to the client's subscriptions (internal use only)
func (c *Client) Subscribe(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

// Unsubscribe removes a room from the client's subscriptions (internal use only)
func (c *Client) Unsubscribe(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// InRoom checks if the client is subscribed to a room
func (c *Client) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

// Rooms returns a copy of all subscribed rooms
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// WriteLoop handles outbound frames from the Send channel
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case msg, ok := <-c.Send:
			if !ok {
				c.close()
				return
			}
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.Conn.WriteMessage(websocket.TextMessage, msg)
			c.mu.Unlock()
		case <-ticker.C:
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.Conn.WriteMessage(websocket.PingMessage, []byte("ping"))
			c.mu.Unlock()
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	_ = c.Conn.Close()
	c.mu.Unlock()
}

// Deliver queues a frame for the client (non-blocking)
func (c *Client) Deliver(msg []byte) {
	select {
	case c.Send <- msg:
	default:
		// Channel full, frame dropped
	}
}
