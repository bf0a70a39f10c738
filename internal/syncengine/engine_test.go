package syncengine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"givebridge/internal/domain"
	"givebridge/internal/events"
	givebridge_errors "givebridge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const me = "usr-me"

type fixture struct {
	engine  *Engine
	api     *fakeAPI
	msgCh   *fakeChannel
	notifCh *fakeChannel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api:     newFakeAPI(),
		msgCh:   newFakeChannel(),
		notifCh: newFakeChannel(),
	}
	f.engine = New(me, f.api, f.msgCh, f.notifCh, nil)
	return f
}

func (f *fixture) initialize(t *testing.T) {
	t.Helper()
	require.NoError(t, f.engine.Initialize(context.Background()))
}

func serverMessage(id, senderID, receiverID, content string) domain.Message {
	return domain.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestInitializeSeedsStores(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []domain.Conversation{
		{CounterpartID: "A", LastMessageAt: time.Now().Add(-time.Hour)},
		{CounterpartID: "B", LastMessageAt: time.Now()},
	}
	f.api.notifications = []domain.Notification{
		{ID: "n1", IsRead: false},
		{ID: "n2", IsRead: true},
	}
	// The server's own counter disagrees on purpose; the engine recomputes.
	f.api.serverUnread = 99

	f.initialize(t)

	convs := f.engine.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "B", convs[0].CounterpartID)
	assert.Equal(t, 1, f.engine.UnreadCount())
	assert.Equal(t, StateConnected, f.engine.State(events.TopicMessages))
	assert.Equal(t, StateConnected, f.engine.State(events.TopicNotifications))
}

func TestInitializeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.initialize(t)

	assert.Equal(t, 1, f.api.listConversationsCalls)
	assert.Equal(t, 1, f.api.listNotificationsCalls)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	_, err := f.engine.SendMessage(context.Background(), "   \n\t ")
	assert.ErrorIs(t, err, givebridge_errors.ErrEmptyContent)
}

func TestSendRejectsWithoutRecipient(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	_, err := f.engine.SendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, givebridge_errors.ErrNoRecipient)
}

func TestSendOptimisticThenReconciled(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "U"}))

	var observed []domain.Message
	f.api.sendFn = func(receiverID, content string) (domain.Message, error) {
		// The POST is in flight: the optimistic entry must already be
		// visible with a temp id.
		observed = f.engine.Thread()
		return serverMessage("srv-1", me, receiverID, content), nil
	}

	sent, err := f.engine.SendMessage(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, observed, 1)
	assert.True(t, strings.HasPrefix(observed[0].ID, "tmp-"))
	assert.True(t, observed[0].IsMine)
	assert.Equal(t, "hello", observed[0].Content)

	thread := f.engine.Thread()
	require.Len(t, thread, 1)
	assert.Equal(t, "srv-1", thread[0].ID)
	assert.Equal(t, "srv-1", sent.ID)

	// Provisional promotion: exactly one conversation for U, now persisted.
	convs := f.engine.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "U", convs[0].CounterpartID)
	assert.False(t, convs[0].IsProvisional)
	assert.Equal(t, "hello", convs[0].LastMessagePreview)
}

func TestSendFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "U"}))

	boom := errors.New("quota exceeded")
	f.api.sendFn = func(receiverID, content string) (domain.Message, error) {
		return domain.Message{}, boom
	}

	_, err := f.engine.SendMessage(context.Background(), "hello")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.engine.Thread())
}

func TestPushEchoBeforeAckCommutes(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "42"}))

	echo := serverMessage("7", me, "42", "hi")
	f.api.sendFn = func(receiverID, content string) (domain.Message, error) {
		// Server broadcasts before responding to the writer.
		f.msgCh.emit(events.EventMessageReceived, echo)
		return echo, nil
	}

	_, err := f.engine.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	thread := f.engine.Thread()
	require.Len(t, thread, 1)
	assert.Equal(t, "7", thread[0].ID)
	assert.Equal(t, "hi", thread[0].Content)
	assert.True(t, thread[0].IsMine)
}

func TestIncomingMessageRouting(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []domain.Conversation{
		{CounterpartID: "A", LastMessageAt: time.Now().Add(-time.Hour)},
	}
	f.initialize(t)
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "A"}))

	// A message from a different counterpart updates the list only.
	f.msgCh.emit(events.EventMessageReceived, serverMessage("m-b", "B", me, "from B"))
	assert.Empty(t, f.engine.Thread())
	convs := f.engine.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "B", convs[0].CounterpartID)

	// A message for the open thread lands in both.
	f.msgCh.emit(events.EventMessageReceived, serverMessage("m-a", "A", me, "from A"))
	thread := f.engine.Thread()
	require.Len(t, thread, 1)
	assert.Equal(t, "m-a", thread[0].ID)
	assert.False(t, thread[0].IsMine)
	assert.Equal(t, "A", f.engine.Conversations()[0].CounterpartID)
}

func TestDuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "A"}))

	m := serverMessage("m1", "A", me, "once")
	f.msgCh.emit(events.EventMessageReceived, m)
	f.msgCh.emit(events.EventMessageReceived, m)

	assert.Len(t, f.engine.Thread(), 1)
}

func TestStaleHistoryFetchDiscarded(t *testing.T) {
	f := newFixture(t)
	f.api.conversations = []domain.Conversation{
		{CounterpartID: "A", LastMessageAt: time.Now()},
	}
	f.initialize(t)

	fetchStarted := make(chan struct{})
	release := make(chan struct{})
	f.api.listMsgs = func(counterpartID string) ([]domain.Message, error) {
		close(fetchStarted)
		<-release
		return []domain.Message{serverMessage("a1", "A", me, "slow history")}, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "A"})
	}()

	<-fetchStarted
	// Switch away while A's fetch is still in flight.
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "B"}))
	close(release)
	require.NoError(t, <-done)

	// The slow response for A must not clobber the open thread B.
	assert.Empty(t, f.engine.Thread())
	conv, ok := f.engine.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, "B", conv.CounterpartID)
}

func TestNotificationsPrependAndRecount(t *testing.T) {
	f := newFixture(t)
	f.api.notifications = []domain.Notification{{ID: "n1", IsRead: true}}
	f.initialize(t)

	f.notifCh.emit(events.EventNotificationReceived, domain.Notification{
		ID: "n2", Title: "New message", Type: domain.NotificationTypeMessage,
	})

	list := f.engine.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)
	assert.Equal(t, 1, f.engine.UnreadCount())

	require.NoError(t, f.engine.MarkNotificationRead(context.Background(), "n2"))
	assert.Equal(t, 0, f.engine.UnreadCount())
	assert.Equal(t, []string{"n2"}, f.api.markedRead)
}

func TestDeleteIsConservative(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "A"}))
	f.msgCh.emit(events.EventMessageReceived, serverMessage("m1", "A", me, "keep me"))

	f.api.deleteFn = func(id string) error { return givebridge_errors.ErrForbidden }
	err := f.engine.DeleteMessage(context.Background(), "m1")
	require.Error(t, err)
	assert.Len(t, f.engine.Thread(), 1, "failed delete must leave the message in place")

	f.api.deleteFn = nil
	require.NoError(t, f.engine.DeleteMessage(context.Background(), "m1"))
	assert.Empty(t, f.engine.Thread())
}

func TestReconnectRejoinsActiveRoom(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "A"}))

	room := events.ConversationRoom(me, "A")
	require.Contains(t, f.msgCh.joinedRooms(), room)
	joinsBefore := len(f.msgCh.joinedRooms())

	f.msgCh.drop()

	assert.Equal(t, StateConnected, f.engine.State(events.TopicMessages))
	joins := f.msgCh.joinedRooms()
	require.Len(t, joins, joinsBefore+1)
	assert.Equal(t, room, joins[len(joins)-1])
}

func TestTeardownGuardsLateEvents(t *testing.T) {
	f := newFixture(t)
	f.api.notifications = []domain.Notification{{ID: "n1"}}
	f.initialize(t)
	require.NoError(t, f.engine.OpenConversation(context.Background(), domain.UserRef{ID: "A"}))

	f.engine.Teardown()
	assert.True(t, f.msgCh.closed)
	assert.True(t, f.notifCh.closed)

	// Frames already in flight when the session ends must not resurrect
	// any state.
	f.msgCh.emit(events.EventMessageReceived, serverMessage("late", "A", me, "too late"))
	f.notifCh.emit(events.EventNotificationReceived, domain.Notification{ID: "late"})

	assert.Empty(t, f.engine.Conversations())
	assert.Empty(t, f.engine.Thread())
	assert.Empty(t, f.engine.Notifications())
	assert.Equal(t, StateDisconnected, f.engine.State(events.TopicMessages))

	_, err := f.engine.SendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, givebridge_errors.ErrClosed)
}
