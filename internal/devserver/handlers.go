package devserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"givebridge/internal/domain"
	"givebridge/internal/events"
	"givebridge/internal/httpdto"
	"givebridge/internal/session"
	givebridge_errors "givebridge/pkg/errors"
	"givebridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	state  *State
	hub    *Hub
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

func NewHandlers(state *State, hub *Hub, secret []byte, ttl time.Duration, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handlers{state: state, hub: hub, secret: secret, ttl: ttl, log: log}
}

func (h *Handlers) Login(c *gin.Context) {
	var req httpdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	ref, err := h.state.Authenticate(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid credentials", "UNAUTHORIZED"))
		return
	}

	token, err := session.Issue(session.Claims{
		UserID:    ref.ID,
		Role:      string(ref.Role),
		FirstName: ref.FirstName,
		LastName:  ref.LastName,
		Email:     ref.Email,
	}, h.secret, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("token issue failed", "INTERNAL_ERROR"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.LoginResponse{Token: token, User: ref}))
}

func (h *Handlers) ListConversations(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(h.state.ConversationsFor(userID)))
}

func (h *Handlers) ListMessages(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	counterpartID := c.Param("counterpartId")
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(h.state.MessagesBetween(userID, counterpartID)))
}

func (h *Handlers) SendMessage(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("message content is empty", "INVALID_REQUEST"))
		return
	}

	msg, err := h.state.AddMessage(userID, req.ReceiverID, req.Content)
	if err != nil {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("receiver not found", "NOT_FOUND"))
		return
	}

	// Broadcast before responding: real portals do, and the client engine
	// must tolerate the push echo racing its own POST response.
	h.broadcastMessage(events.EventMessageReceived, msg)
	h.notifyReceiver(msg)

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *Handlers) DeleteMessage(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	msg, err := h.state.DeleteMessage(c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, givebridge_errors.ErrForbidden) {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("not your message", "FORBIDDEN"))
			return
		}
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("message not found", "NOT_FOUND"))
		return
	}

	h.broadcastMessage(events.EventMessageDeleted, msg)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(struct{}{}))
}

func (h *Handlers) ListNotifications(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	list, unread := h.state.NotificationsFor(userID)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NotificationsResponse{
		Notifications: list,
		UnreadCount:   unread,
	}))
}

func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	if err := h.state.MarkNotificationRead(userID, c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("notification not found", "NOT_FOUND"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(struct{}{}))
}

func (h *Handlers) broadcastMessage(event string, msg domain.Message) {
	env, err := events.NewEnvelope(event, "", msg)
	if err != nil {
		h.log.Errorf("encode %s event: %v", event, err)
		return
	}
	h.hub.Broadcast(env,
		events.UserRoom(msg.SenderID),
		events.UserRoom(msg.ReceiverID),
		events.ConversationRoom(msg.SenderID, msg.ReceiverID),
	)
}

func (h *Handlers) notifyReceiver(msg domain.Message) {
	title := "New message"
	if msg.Sender != nil {
		title = "New message from " + msg.Sender.DisplayName()
	}
	n := h.state.AddNotification(msg.ReceiverID, domain.Notification{
		Title:   title,
		Message: msg.Content,
		Type:    domain.NotificationTypeMessage,
		LinkURL: "/messages/" + msg.SenderID,
	})

	env, err := events.NewEnvelope(events.EventNotificationReceived, "", n)
	if err != nil {
		h.log.Errorf("encode notification event: %v", err)
		return
	}
	h.hub.Broadcast(env, events.UserRoom(msg.ReceiverID))
}
