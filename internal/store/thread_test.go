package store

import (
	"testing"
	"time"

	"givebridge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threadMsg(id string, at time.Time) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: "A",
		SenderID:       "A",
		ReceiverID:     localUser,
		Content:        "msg " + id,
		CreatedAt:      at,
	}
}

func TestAppendIncomingIsIdempotent(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")
	m := threadMsg("m1", time.Now())

	assert.True(t, th.AppendIncoming(m))
	assert.False(t, th.AppendIncoming(m))
	assert.Equal(t, 1, th.Len())
}

func TestAppendIncomingDropsOtherConversations(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")

	other := threadMsg("m1", time.Now())
	other.ConversationID = "B"
	assert.False(t, th.AppendIncoming(other))
	assert.Equal(t, 0, th.Len())
}

func TestAppendIncomingKeepsTimestampOrder(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")
	now := time.Now()

	th.AppendIncoming(threadMsg("m2", now))
	th.AppendIncoming(threadMsg("m1", now.Add(-time.Minute)))
	th.AppendIncoming(threadMsg("m3", now.Add(time.Minute)))

	msgs := th.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestEqualTimestampsKeepInsertionOrder(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")
	now := time.Now()

	th.AppendIncoming(threadMsg("first", now))
	th.AppendIncoming(threadMsg("second", now))

	msgs := th.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].ID)
	assert.Equal(t, "second", msgs[1].ID)
}

func TestReconcileReplacesTempID(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")

	th.AppendOptimistic("tmp-1", "hello", "A", localUser)
	server := domain.Message{
		ID:             "srv-1",
		ConversationID: "A",
		SenderID:       localUser,
		ReceiverID:     "A",
		Content:        "hello",
		CreatedAt:      time.Now(),
	}
	assert.True(t, th.Reconcile("tmp-1", server))

	msgs := th.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.True(t, msgs[0].IsMine)
}

func TestReconcileAfterEchoDropsTempEntry(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")

	// The broadcast echo of our own send arrived before the POST response.
	th.AppendOptimistic("tmp-1", "hi", "A", localUser)
	echo := domain.Message{ID: "7", ConversationID: "A", SenderID: localUser, ReceiverID: "A", Content: "hi", CreatedAt: time.Now(), IsMine: true}
	th.AppendIncoming(echo)
	require.Equal(t, 2, th.Len())

	assert.True(t, th.Reconcile("tmp-1", echo))

	msgs := th.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "7", msgs[0].ID)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestReconcileUnknownTempIsNoop(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")
	assert.False(t, th.Reconcile("tmp-gone", threadMsg("srv-1", time.Now())))
	assert.Equal(t, 0, th.Len())
}

func TestRemoveRollsBackOptimisticEntry(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")

	th.AppendOptimistic("tmp-1", "will fail", "A", localUser)
	assert.True(t, th.Remove("tmp-1"))
	assert.Equal(t, 0, th.Len())
	assert.False(t, th.Remove("tmp-1"))
}

func TestOpenDiscardsPreviousThread(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")
	th.AppendIncoming(threadMsg("m1", time.Now()))

	th.Open("B")
	assert.Equal(t, "B", th.Active())
	assert.Equal(t, 0, th.Len())
}

func TestLoadReplacesAndSorts(t *testing.T) {
	th := NewThreadStore()
	th.Open("A")
	th.AppendIncoming(threadMsg("stale", time.Now()))

	now := time.Now()
	th.Load([]domain.Message{
		threadMsg("m2", now),
		threadMsg("m1", now.Add(-time.Hour)),
		threadMsg("m2", now), // duplicate in payload
	})

	msgs := th.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}
