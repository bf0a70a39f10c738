package devserver

import (
	"context"
	"encoding/json"
	"sync"

	"givebridge/internal/events"
)

// subscriptionRequest represents a room subscription/unsubscription request
type subscriptionRequest struct {
	client    *Client
	room      string
	subscribe bool // true = subscribe, false = unsubscribe
}

// Hub manages websocket client connections and room subscriptions.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// rooms maps room name to set of clients subscribed to it
	rooms map[string]map[*Client]struct{}

	// Control channels
	register     chan *Client             // New client connections
	unregister   chan *Client             // Client disconnections
	subscription chan subscriptionRequest // Subscribe/unsubscribe requests
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		rooms:        make(map[string]map[*Client]struct{}),
		register:     make(chan *Client, 256),
		unregister:   make(chan *Client, 256),
		subscription: make(chan subscriptionRequest, 512),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.subscription:
			if req.subscribe {
				h.subscribeToRoom(req.client, req.room)
			} else {
				h.unsubscribeFromRoom(req.client, req.room)
			}
		}
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe subscribes a client to a room
func (h *Hub) Subscribe(client *Client, room string) {
	h.subscription <- subscriptionRequest{client: client, room: room, subscribe: true}
}

// Unsubscribe unsubscribes a client from a room
func (h *Hub) Unsubscribe(client *Client, room string) {
	h.subscription <- subscriptionRequest{client: client, room: room, subscribe: false}
}

// Broadcast delivers an envelope to every client subscribed to any of the
// given rooms. A client subscribed to several of the rooms still gets the
// frame only once; clients on a different topic never see it.
func (h *Hub) Broadcast(env events.Envelope, rooms ...string) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	topic := events.TopicFor(env.Event)

	h.mu.RLock()
	delivered := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if c.Topic != topic {
				continue
			}
			if _, dup := delivered[c]; dup {
				continue
			}
			delivered[c] = struct{}{}
			c.Deliver(data)
		}
	}
	h.mu.RUnlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSubscriberCount returns the number of subscribers for a room
func (h *Hub) RoomSubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// addClient adds a new client to the hub (internal)
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// removeClient removes a client and all its subscriptions (internal)
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range client.Rooms() {
		if subscribers, ok := h.rooms[room]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)
}

// subscribeToRoom subscribes a client to a room (internal)
func (h *Hub) subscribeToRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.Subscribe(room)
}

// unsubscribeFromRoom unsubscribes a client from a room (internal)
func (h *Hub) unsubscribeFromRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
	client.Unsubscribe(room)
}
