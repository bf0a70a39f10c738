package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"givebridge/internal/api"
	"givebridge/internal/domain"
	"givebridge/internal/events"
	"givebridge/internal/live"
	"givebridge/internal/store"
	givebridge_errors "givebridge/pkg/errors"
	"givebridge/pkg/logger"

	"github.com/google/uuid"
)

// ChannelState tracks one live channel's connection lifecycle.
type ChannelState string

const (
	StateDisconnected ChannelState = "DISCONNECTED"
	StateConnecting   ChannelState = "CONNECTING"
	StateConnected    ChannelState = "CONNECTED"
)

// Engine is the single entry point for the messaging and notification
// surface. It merges REST snapshots with push events, performs optimistic
// sends with reconciliation, and owns the three stores; the presentation
// layer only reads the projections and invalidates on OnChange.
//
// All mutation is serialized by one mutex, reproducing the single event
// loop the stores were designed for. REST calls run outside the lock, so
// asynchronous completions interleave but never overlap.
type Engine struct {
	mu sync.Mutex

	log           *logger.Logger
	api           api.Client
	messages      live.Channel
	notifications live.Channel
	localUserID   string

	// epoch is bumped on teardown; every asynchronous completion and push
	// callback compares the epoch it captured and drops itself when stale,
	// so no late event mutates a discarded session's state.
	epoch       uint64
	initialized bool

	conversations *store.ConversationStore
	thread        *store.ThreadStore
	feed          *store.NotificationFeed

	// activeRef is the counterpart of the open thread, nil when none.
	activeRef *domain.UserRef

	msgState   ChannelState
	notifState ChannelState

	onChange func()
}

func New(localUserID string, apiClient api.Client, messagesCh, notificationsCh live.Channel, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		log:           log,
		api:           apiClient,
		messages:      messagesCh,
		notifications: notificationsCh,
		localUserID:   localUserID,
		conversations: store.NewConversationStore(localUserID),
		thread:        store.NewThreadStore(),
		feed:          store.NewNotificationFeed(),
		msgState:      StateDisconnected,
		notifState:    StateDisconnected,
	}
}

// OnChange registers the invalidation hook the UI re-renders from. The hook
// fires outside the engine lock, so it may read projections freely.
func (e *Engine) OnChange(f func()) {
	e.mu.Lock()
	e.onChange = f
	e.mu.Unlock()
}

// Initialize fetches the conversation and notification snapshots, seeds the
// stores, registers push handlers and opens both live channels. Calling it
// again while already initialized is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return nil
	}
	epoch := e.epoch
	e.mu.Unlock()

	conversations, err := e.api.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("fetch conversations: %w", err)
	}
	// The server's unread count is ignored; the feed recomputes it from the
	// collection so the badge can never drift.
	notifications, _, err := e.api.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("fetch notifications: %w", err)
	}

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return givebridge_errors.ErrClosed
	}
	e.conversations.Seed(conversations)
	e.feed.Seed(notifications)
	e.registerHandlers(epoch)
	e.msgState = StateConnecting
	e.notifState = StateConnecting
	e.mu.Unlock()

	if err := e.messages.Connect(ctx); err != nil {
		e.setState(events.TopicMessages, StateDisconnected)
		return fmt.Errorf("connect messages channel: %w", err)
	}
	if err := e.notifications.Connect(ctx); err != nil {
		e.setState(events.TopicNotifications, StateDisconnected)
		return fmt.Errorf("connect notifications channel: %w", err)
	}

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
	e.notify()
	return nil
}

func (e *Engine) registerHandlers(epoch uint64) {
	e.messages.On(events.EventMessageReceived, e.guard(epoch, e.onMessageReceived))
	e.messages.On(events.EventMessageDeleted, e.guard(epoch, e.onMessageDeleted))
	e.notifications.On(events.EventNotificationReceived, e.guard(epoch, e.onNotificationReceived))

	e.messages.OnConnected(func() {
		e.setState(events.TopicMessages, StateConnected)
		e.rejoinActiveRoom()
	})
	e.messages.OnDisconnected(func() {
		// The transport reconnects on its own; we only track state.
		e.setState(events.TopicMessages, StateConnecting)
	})
	e.notifications.OnConnected(func() {
		e.setState(events.TopicNotifications, StateConnected)
	})
	e.notifications.OnDisconnected(func() {
		e.setState(events.TopicNotifications, StateConnecting)
	})
}

// guard wraps a push handler so it only runs while the session that
// registered it is still alive.
func (e *Engine) guard(epoch uint64, h func(json.RawMessage)) live.Handler {
	return func(payload json.RawMessage) {
		e.mu.Lock()
		stale := e.epoch != epoch
		e.mu.Unlock()
		if stale {
			return
		}
		h(payload)
	}
}

// OpenConversation activates the thread with the given counterpart. For a
// persisted conversation the history is fetched and loaded; for an unknown
// counterpart a provisional conversation with an empty thread is created.
func (e *Engine) OpenConversation(ctx context.Context, ref domain.UserRef) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return givebridge_errors.ErrClosed
	}
	epoch := e.epoch
	conv, exists := e.conversations.Get(ref.ID)
	persisted := exists && !conv.IsProvisional

	e.activeRef = &ref
	e.thread.Open(ref.ID)
	if !persisted {
		e.conversations.StartProvisional(ref)
		e.mu.Unlock()
		e.joinRoom(ref.ID)
		e.notify()
		return nil
	}
	e.mu.Unlock()

	e.joinRoom(ref.ID)

	history, err := e.api.ListMessages(ctx, ref.ID)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	e.mu.Lock()
	// A slow fetch must not clobber a thread the user has since switched
	// away from; stale responses are discarded, not surfaced.
	if e.epoch != epoch || e.thread.Active() != ref.ID {
		e.mu.Unlock()
		return nil
	}
	for i := range history {
		e.normalize(&history[i])
	}
	e.thread.Load(history)
	e.mu.Unlock()
	e.notify()
	return nil
}

// SendMessage optimistically appends the message, posts it to the portal
// and reconciles on the response. On failure the optimistic entry is rolled
// back and the error is returned for the UI to surface; the caller still
// owns the typed content and can retry without retyping.
func (e *Engine) SendMessage(ctx context.Context, content string) (domain.Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return domain.Message{}, givebridge_errors.ErrEmptyContent
	}

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return domain.Message{}, givebridge_errors.ErrClosed
	}
	if e.activeRef == nil {
		e.mu.Unlock()
		return domain.Message{}, givebridge_errors.ErrNoRecipient
	}
	epoch := e.epoch
	receiverID := e.activeRef.ID
	conv, _ := e.conversations.Get(receiverID)
	wasProvisional := conv.IsProvisional

	tempID := "tmp-" + uuid.NewString()
	e.thread.AppendOptimistic(tempID, trimmed, receiverID, e.localUserID)
	e.mu.Unlock()
	e.notify()

	server, err := e.api.SendMessage(ctx, receiverID, trimmed)

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return domain.Message{}, givebridge_errors.ErrClosed
	}
	if err != nil {
		e.thread.Remove(tempID)
		e.mu.Unlock()
		e.notify()
		return domain.Message{}, fmt.Errorf("send message: %w", err)
	}

	e.normalize(&server)
	e.thread.Reconcile(tempID, server)
	if wasProvisional {
		e.conversations.PromoteProvisional(receiverID, server)
	} else {
		e.conversations.UpsertFromIncomingMessage(server)
	}
	e.mu.Unlock()
	e.notify()
	return server, nil
}

// DeleteMessage deletes on the server first and only then drops the local
// entry. Deletion is destructive and irreversible, so there is no
// optimistic variant: on failure the message stays in place.
func (e *Engine) DeleteMessage(ctx context.Context, id string) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return givebridge_errors.ErrClosed
	}
	epoch := e.epoch
	e.mu.Unlock()

	if err := e.api.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return givebridge_errors.ErrClosed
	}
	e.thread.Remove(id)
	e.mu.Unlock()
	e.notify()
	return nil
}

// MarkNotificationRead follows the same conservative order as delete:
// server first, then the feed.
func (e *Engine) MarkNotificationRead(ctx context.Context, id string) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return givebridge_errors.ErrClosed
	}
	epoch := e.epoch
	e.mu.Unlock()

	if err := e.api.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return givebridge_errors.ErrClosed
	}
	e.feed.MarkRead(id)
	e.mu.Unlock()
	e.notify()
	return nil
}

// Teardown closes both channels and clears all store state. Called on
// logout. The epoch bump guarantees no handler registered by this session
// mutates state afterwards, even if a late frame is already in flight.
func (e *Engine) Teardown() {
	e.mu.Lock()
	e.epoch++
	e.initialized = false
	e.activeRef = nil
	e.conversations.Clear()
	e.thread.Clear()
	e.feed.Clear()
	e.msgState = StateDisconnected
	e.notifState = StateDisconnected
	e.mu.Unlock()

	_ = e.messages.Close()
	_ = e.notifications.Close()
}

// Push handlers

func (e *Engine) onMessageReceived(payload json.RawMessage) {
	var msg domain.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		e.log.Warnf("discarding malformed message event: %v", err)
		return
	}

	e.mu.Lock()
	e.normalize(&msg)
	// The preview and recency update always applies; the thread update only
	// when the message belongs to the open conversation. Dedup by id makes
	// this safe for echoes of self-sent messages and for events of rooms we
	// never joined.
	e.conversations.UpsertFromIncomingMessage(msg)
	e.thread.AppendIncoming(msg)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) onMessageDeleted(payload json.RawMessage) {
	var msg domain.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		e.log.Warnf("discarding malformed delete event: %v", err)
		return
	}

	e.mu.Lock()
	e.thread.Remove(msg.ID)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) onNotificationReceived(payload json.RawMessage) {
	var n domain.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		e.log.Warnf("discarding malformed notification event: %v", err)
		return
	}

	e.mu.Lock()
	e.feed.Prepend(n)
	e.mu.Unlock()
	e.notify()
}

// Read-only projections

func (e *Engine) Conversations() []domain.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversations.List()
}

func (e *Engine) Thread() []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thread.Messages()
}

func (e *Engine) ActiveConversation() (domain.Conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeRef == nil {
		return domain.Conversation{}, false
	}
	return e.conversations.Get(e.activeRef.ID)
}

func (e *Engine) Notifications() []domain.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feed.List()
}

func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feed.UnreadCount()
}

func (e *Engine) State(topic string) ChannelState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if topic == events.TopicNotifications {
		return e.notifState
	}
	return e.msgState
}

// Internals

// normalize stamps the local-perspective fields that are never on the wire.
func (e *Engine) normalize(msg *domain.Message) {
	msg.IsMine = msg.SenderID == e.localUserID
	msg.ConversationID = msg.CounterpartOf(e.localUserID)
}

func (e *Engine) joinRoom(counterpartID string) {
	room := events.ConversationRoom(e.localUserID, counterpartID)
	if err := e.messages.JoinRoom(room); err != nil {
		// Fan-out optimization only; correctness does not depend on the
		// join, and it is re-issued on the next connected callback.
		e.log.Debugf("join %s failed: %v", room, err)
	}
}

func (e *Engine) rejoinActiveRoom() {
	e.mu.Lock()
	ref := e.activeRef
	e.mu.Unlock()
	if ref != nil {
		e.joinRoom(ref.ID)
	}
}

func (e *Engine) setState(topic string, s ChannelState) {
	e.mu.Lock()
	if topic == events.TopicNotifications {
		e.notifState = s
	} else {
		e.msgState = s
	}
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) notify() {
	e.mu.Lock()
	f := e.onChange
	e.mu.Unlock()
	if f != nil {
		f()
	}
}
