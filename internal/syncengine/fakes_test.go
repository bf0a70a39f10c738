package syncengine

import (
	"context"
	"encoding/json"
	"sync"

	"givebridge/internal/domain"
	"givebridge/internal/live"
)

// fakeAPI is a scriptable api.Client.
type fakeAPI struct {
	mu sync.Mutex

	conversations []domain.Conversation
	notifications []domain.Notification
	serverUnread  int
	history       map[string][]domain.Message

	sendFn   func(receiverID, content string) (domain.Message, error)
	deleteFn func(id string) error
	listMsgs func(counterpartID string) ([]domain.Message, error)

	listConversationsCalls int
	listNotificationsCalls int
	markedRead             []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{history: make(map[string][]domain.Message)}
}

func (f *fakeAPI) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listConversationsCalls++
	return append([]domain.Conversation(nil), f.conversations...), nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, counterpartID string) ([]domain.Message, error) {
	if f.listMsgs != nil {
		return f.listMsgs(counterpartID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.history[counterpartID]...), nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, receiverID, content string) (domain.Message, error) {
	if f.sendFn != nil {
		return f.sendFn(receiverID, content)
	}
	return domain.Message{}, nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(id)
	}
	return nil
}

func (f *fakeAPI) ListNotifications(ctx context.Context) ([]domain.Notification, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listNotificationsCalls++
	return append([]domain.Notification(nil), f.notifications...), f.serverUnread, nil
}

func (f *fakeAPI) MarkNotificationRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, id)
	return nil
}

// fakeChannel is an in-process live.Channel the tests push events through.
type fakeChannel struct {
	mu sync.Mutex

	handlers       map[string][]live.Handler
	onConnected    func()
	onDisconnected func()
	connected      bool
	closed         bool
	joined         []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]live.Handler)}
}

func (f *fakeChannel) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	cb := f.onConnected
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	f.closed = true
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) On(event string, h live.Handler) {
	f.mu.Lock()
	f.handlers[event] = append(f.handlers[event], h)
	f.mu.Unlock()
}

func (f *fakeChannel) JoinRoom(room string) error {
	f.mu.Lock()
	f.joined = append(f.joined, room)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) OnConnected(cb func())    { f.mu.Lock(); f.onConnected = cb; f.mu.Unlock() }
func (f *fakeChannel) OnDisconnected(cb func()) { f.mu.Lock(); f.onDisconnected = cb; f.mu.Unlock() }

// emit delivers an event to all registered handlers, like a frame arriving
// off the wire.
func (f *fakeChannel) emit(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	handlers := append([]live.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

// drop simulates a transport-level disconnect followed by the automatic
// reconnect.
func (f *fakeChannel) drop() {
	f.mu.Lock()
	down, up := f.onDisconnected, f.onConnected
	f.mu.Unlock()
	if down != nil {
		down()
	}
	if up != nil {
		up()
	}
}

func (f *fakeChannel) joinedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joined...)
}
