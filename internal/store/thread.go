package store

import (
	"sort"
	"time"

	"givebridge/internal/domain"
)

// ThreadStore owns the ordered message list of the currently open
// conversation only. Switching conversations discards the previous thread;
// history is refetched on demand, so the cache never grows unbounded.
//
// Messages are kept in an id-keyed map for O(1) dedup plus an ordered slice
// for the view. Order is non-decreasing by CreatedAt, ties broken by
// insertion order.
type ThreadStore struct {
	active  string
	ordered []*domain.Message
	byID    map[string]*domain.Message
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{byID: make(map[string]*domain.Message)}
}

// Open activates a conversation and discards the previous thread's messages.
func (t *ThreadStore) Open(conversationID string) {
	t.active = conversationID
	t.ordered = nil
	t.byID = make(map[string]*domain.Message)
}

// Active returns the id of the open conversation, or "" when none is open.
func (t *ThreadStore) Active() string {
	return t.active
}

// Load replaces the active thread's message list with fetched history.
func (t *ThreadStore) Load(messages []domain.Message) {
	t.ordered = make([]*domain.Message, 0, len(messages))
	t.byID = make(map[string]*domain.Message, len(messages))
	for i := range messages {
		m := messages[i]
		if _, dup := t.byID[m.ID]; dup {
			continue
		}
		p := &m
		t.ordered = append(t.ordered, p)
		t.byID[m.ID] = p
	}
	sort.SliceStable(t.ordered, func(i, j int) bool {
		return t.ordered[i].CreatedAt.Before(t.ordered[j].CreatedAt)
	})
}

// AppendIncoming inserts a delivered message into the open thread. It is a
// no-op when the message targets another conversation or when a message with
// the same id is already present, which makes delivery idempotent under
// at-least-once transports and absorbs echoes of self-sent messages.
func (t *ThreadStore) AppendIncoming(msg domain.Message) bool {
	if msg.ConversationID != t.active || t.active == "" {
		return false
	}
	if _, dup := t.byID[msg.ID]; dup {
		return false
	}
	t.insert(&msg)
	return true
}

// AppendOptimistic appends a locally sent message under a temporary id,
// before the server has acknowledged it.
func (t *ThreadStore) AppendOptimistic(tempID, content, receiverID, senderID string) domain.Message {
	msg := domain.Message{
		ID:             tempID,
		ConversationID: t.active,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Now(),
		IsMine:         true,
	}
	t.insert(&msg)
	return msg
}

// Reconcile replaces the temp-id entry with the server-issued record. When
// the push echo already delivered the canonical record (broadcast raced the
// write response), the temp entry is simply dropped; either arrival order
// yields the same final thread.
func (t *ThreadStore) Reconcile(tempID string, server domain.Message) bool {
	temp, ok := t.byID[tempID]
	if !ok {
		return false
	}
	if _, echoed := t.byID[server.ID]; echoed {
		t.Remove(tempID)
		return true
	}
	server.IsMine = true
	if server.ConversationID == "" {
		server.ConversationID = temp.ConversationID
	}
	t.Remove(tempID)
	t.insert(&server)
	return true
}

// Remove deletes a message by id: explicit deletes and rollback of failed
// optimistic sends.
func (t *ThreadStore) Remove(id string) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	for i, m := range t.ordered {
		if m.ID == id {
			t.ordered = append(t.ordered[:i], t.ordered[i+1:]...)
			break
		}
	}
	return true
}

// Messages returns a copy of the ordered thread.
func (t *ThreadStore) Messages() []domain.Message {
	out := make([]domain.Message, len(t.ordered))
	for i, m := range t.ordered {
		out[i] = *m
	}
	return out
}

// Len returns the number of messages in the open thread.
func (t *ThreadStore) Len() int {
	return len(t.ordered)
}

// Clear drops the thread and deactivates it.
func (t *ThreadStore) Clear() {
	t.active = ""
	t.ordered = nil
	t.byID = make(map[string]*domain.Message)
}

// insert places msg after the last element with CreatedAt <= msg.CreatedAt,
// keeping timestamps non-decreasing and equal timestamps in insertion order.
func (t *ThreadStore) insert(msg *domain.Message) {
	i := len(t.ordered)
	for i > 0 && t.ordered[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}
	t.ordered = append(t.ordered, nil)
	copy(t.ordered[i+1:], t.ordered[i:])
	t.ordered[i] = msg
	t.byID[msg.ID] = msg
}
