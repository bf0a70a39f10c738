package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"givebridge/internal/events"
	"givebridge/internal/httpdto"
	"givebridge/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Connect upgrades the request to a websocket for one push topic. The
// client is implicitly subscribed to its own user room; conversation rooms
// are joined on demand via room.join frames.
func (h *Handlers) Connect(c *gin.Context) {
	token := c.Query("token")
	topic := c.Query("topic")
	if topic != events.TopicMessages && topic != events.TopicNotifications {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unknown topic", "INVALID_REQUEST"))
		return
	}

	claims, err := session.Parse(token, h.secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	userID := strings.TrimSpace(claims.UserID)
	client := NewClient(conn, userID, topic)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.UserRoom(userID))
	go client.WriteLoop(ctx)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.handleInbound(client, data)
	}

	h.hub.Unregister(client)
}

func (h *Handlers) handleInbound(client *Client, data []byte) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}
	if env.Event != events.EventRoomJoin {
		return
	}
	if !roomContains(env.Room, client.UserID) {
		h.log.Warnf("client %s denied join to %s", client.UserID, env.Room)
		return
	}
	h.hub.Subscribe(client, env.Room)
}

// roomContains checks that the user is one of the two participants a
// conversation room is named after.
func roomContains(room, userID string) bool {
	if !strings.HasPrefix(room, events.RoomPrefixConversation) {
		return false
	}
	pair := strings.TrimPrefix(room, events.RoomPrefixConversation)
	a, b, ok := strings.Cut(pair, ":")
	if !ok {
		return false
	}
	return a == userID || b == userID
}
