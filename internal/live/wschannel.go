package live

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"givebridge/internal/events"
	givebridge_errors "givebridge/pkg/errors"
	"givebridge/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingInterval     = 30 * time.Second
	reconnectMinWait = 500 * time.Millisecond
	reconnectMaxWait = 30 * time.Second
)

// WSChannel implements Channel over a websocket connection to the portal's
// /ws endpoint. One instance serves one topic.
type WSChannel struct {
	endpoint string
	topic    string
	token    string
	log      *logger.Logger

	mu             sync.RWMutex
	conn           *websocket.Conn
	handlers       map[string][]Handler
	onConnected    func()
	onDisconnected func()
	closed         bool

	send chan []byte
	done chan struct{}
}

func NewWSChannel(endpoint, topic, token string, log *logger.Logger) *WSChannel {
	if log == nil {
		log = logger.NewNop()
	}
	return &WSChannel{
		endpoint: endpoint,
		topic:    topic,
		token:    token,
		log:      log,
		handlers: make(map[string][]Handler),
		send:     make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

func (c *WSChannel) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

func (c *WSChannel) OnConnected(f func()) {
	c.mu.Lock()
	c.onConnected = f
	c.mu.Unlock()
}

func (c *WSChannel) OnDisconnected(f func()) {
	c.mu.Lock()
	c.onDisconnected = f
	c.mu.Unlock()
}

// Connect dials the endpoint. The first dial is synchronous so the caller
// learns about a dead backend immediately; afterwards a manager goroutine
// redials with exponential backoff until Close.
func (c *WSChannel) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.run(conn)
	return nil
}

func (c *WSChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("topic", c.topic)
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// run drives one connection at a time: read until failure, notify, back
// off, redial.
func (c *WSChannel) run(conn *websocket.Conn) {
	c.notifyConnected()
	wait := reconnectMinWait

	for {
		err := c.readLoop(conn)
		_ = conn.Close()
		if c.isClosed() {
			return
		}
		c.notifyDisconnected()
		c.log.Warnf("live channel %s dropped: %v, reconnecting", c.topic, err)

		for {
			select {
			case <-c.done:
				return
			case <-time.After(wait):
			}
			next, dialErr := c.dial(context.Background())
			if dialErr == nil {
				conn = next
				c.mu.Lock()
				c.conn = conn
				c.mu.Unlock()
				wait = reconnectMinWait
				c.notifyConnected()
				break
			}
			if wait *= 2; wait > reconnectMaxWait {
				wait = reconnectMaxWait
			}
		}
	}
}

func (c *WSChannel) readLoop(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warnf("live channel %s: discarding malformed frame: %v", c.topic, err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *WSChannel) dispatch(env events.Envelope) {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers[env.Event]...)
	c.mu.RUnlock()
	for _, h := range handlers {
		h(env.Payload)
	}
}

func (c *WSChannel) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.log.Debugf("live channel %s write failed: %v", c.topic, err)
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Debugf("live channel %s ping failed: %v", c.topic, err)
			}
		}
	}
}

func (c *WSChannel) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return givebridge_errors.ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// JoinRoom sends a room.join control frame. The engine re-issues joins on
// every connected callback, so a join lost to a dropped connection heals on
// reconnect.
func (c *WSChannel) JoinRoom(room string) error {
	env, err := events.NewEnvelope(events.EventRoomJoin, room, nil)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		return givebridge_errors.ErrNotConnected
	}
}

// Close shuts the channel down permanently.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *WSChannel) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *WSChannel) notifyConnected() {
	c.mu.RLock()
	f := c.onConnected
	c.mu.RUnlock()
	if f != nil && !c.isClosed() {
		f()
	}
}

func (c *WSChannel) notifyDisconnected() {
	c.mu.RLock()
	f := c.onDisconnected
	c.mu.RUnlock()
	if f != nil && !c.isClosed() {
		f()
	}
}
