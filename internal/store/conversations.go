package store

import (
	"sort"
	"time"

	"givebridge/internal/domain"
)

// ConversationStore owns the canonical conversation list: one entry per
// counterpart, keyed by counterpart id, ordered by recency on read.
//
// The store is not safe for concurrent use; the sync engine serializes all
// mutation.
type ConversationStore struct {
	localUserID   string
	byCounterpart map[string]*convEntry
	clock         func() time.Time
}

type convEntry struct {
	conv domain.Conversation

	// selectedAt orders message-less provisional entries: most recently
	// selected first, ahead of everything with real traffic.
	selectedAt time.Time
}

func NewConversationStore(localUserID string) *ConversationStore {
	return &ConversationStore{
		localUserID:   localUserID,
		byCounterpart: make(map[string]*convEntry),
		clock:         time.Now,
	}
}

// Seed replaces the list with a server snapshot. Provisional entries that
// have no server counterpart yet survive the reseed, so an open draft
// conversation is not wiped by a refresh.
func (s *ConversationStore) Seed(conversations []domain.Conversation) {
	next := make(map[string]*convEntry, len(conversations))
	for _, c := range conversations {
		c.IsProvisional = false
		next[c.CounterpartID] = &convEntry{conv: c}
	}
	for id, e := range s.byCounterpart {
		if !e.conv.IsProvisional {
			continue
		}
		if _, exists := next[id]; !exists {
			next[id] = e
		}
	}
	s.byCounterpart = next
}

// StartProvisional ensures an entry exists for a freshly selected contact.
// If a persisted conversation already exists it is left untouched.
func (s *ConversationStore) StartProvisional(ref domain.UserRef) domain.Conversation {
	if e, ok := s.byCounterpart[ref.ID]; ok {
		if e.conv.IsProvisional {
			e.selectedAt = s.clock()
		}
		return e.conv
	}
	e := &convEntry{
		conv:       domain.ConversationFromRef(ref),
		selectedAt: s.clock(),
	}
	s.byCounterpart[ref.ID] = e
	return e.conv
}

// UpsertFromIncomingMessage updates the counterpart's preview and recency
// from a delivered message, synthesizing a minimal entry when the
// counterpart has never been seen. Updates happen in place so list identity
// is preserved for UI diffing.
func (s *ConversationStore) UpsertFromIncomingMessage(msg domain.Message) {
	counterpartID := msg.CounterpartOf(s.localUserID)
	e, ok := s.byCounterpart[counterpartID]
	if !ok {
		e = &convEntry{conv: synthesize(counterpartID, msg, s.localUserID)}
		s.byCounterpart[counterpartID] = e
	}
	// Merge key is the message timestamp, never event arrival order, so two
	// clients converge on the same ordering from the same data.
	if msg.CreatedAt.After(e.conv.LastMessageAt) || e.conv.LastMessageAt.IsZero() {
		e.conv.LastMessagePreview = msg.Content
		e.conv.LastMessageAt = msg.CreatedAt
	}
	e.conv.IsProvisional = false
}

// PromoteProvisional converts a provisional entry into a persisted one
// carrying the first message's preview. If a persisted conversation for the
// same counterpart already existed, it wins and no duplicate is created.
func (s *ConversationStore) PromoteProvisional(counterpartID string, msg domain.Message) {
	e, ok := s.byCounterpart[counterpartID]
	if !ok {
		e = &convEntry{conv: synthesize(counterpartID, msg, s.localUserID)}
		s.byCounterpart[counterpartID] = e
	}
	e.conv.IsProvisional = false
	if msg.CreatedAt.After(e.conv.LastMessageAt) {
		e.conv.LastMessagePreview = msg.Content
		e.conv.LastMessageAt = msg.CreatedAt
	}
}

// Get returns the conversation for a counterpart, if present.
func (s *ConversationStore) Get(counterpartID string) (domain.Conversation, bool) {
	if e, ok := s.byCounterpart[counterpartID]; ok {
		return e.conv, true
	}
	return domain.Conversation{}, false
}

// List returns conversations ordered by lastMessageAt descending.
// Provisional entries with no messages sort first, most recently selected
// on top.
func (s *ConversationStore) List() []domain.Conversation {
	entries := make([]*convEntry, 0, len(s.byCounterpart))
	for _, e := range s.byCounterpart {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		aDraft := a.conv.IsProvisional && a.conv.LastMessageAt.IsZero()
		bDraft := b.conv.IsProvisional && b.conv.LastMessageAt.IsZero()
		if aDraft != bDraft {
			return aDraft
		}
		if aDraft {
			return a.selectedAt.After(b.selectedAt)
		}
		return a.conv.LastMessageAt.After(b.conv.LastMessageAt)
	})

	out := make([]domain.Conversation, len(entries))
	for i, e := range entries {
		out[i] = e.conv
	}
	return out
}

// Len returns the number of conversations, provisional included.
func (s *ConversationStore) Len() int {
	return len(s.byCounterpart)
}

// Clear drops all state. Called on teardown.
func (s *ConversationStore) Clear() {
	s.byCounterpart = make(map[string]*convEntry)
}

func synthesize(counterpartID string, msg domain.Message, localUserID string) domain.Conversation {
	conv := domain.Conversation{
		CounterpartID:      counterpartID,
		CounterpartName:    counterpartID,
		LastMessagePreview: msg.Content,
		LastMessageAt:      msg.CreatedAt,
	}
	if ref := msg.CounterpartRef(localUserID); ref != nil {
		conv.CounterpartName = ref.DisplayName()
		conv.CounterpartEmail = ref.Email
		conv.CounterpartRole = ref.Role
		conv.AvatarURL = ref.AvatarURL
	}
	return conv
}
