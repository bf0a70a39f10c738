package devserver

import (
	"sort"
	"sync"
	"time"

	"givebridge/internal/domain"
	givebridge_errors "givebridge/pkg/errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// State is the dev server's in-memory portal data: fixture accounts, the
// message log and per-user notification feeds. Everything is lost on
// restart, which is the point of a development fixture.
type State struct {
	mu            sync.RWMutex
	users         map[string]*account
	messages      []*domain.Message
	notifications map[string][]*domain.Notification
}

type account struct {
	ref          domain.UserRef
	passwordHash []byte
}

func NewState() *State {
	return &State{
		users:         make(map[string]*account),
		notifications: make(map[string][]*domain.Notification),
	}
}

// SeedFixtures registers one account per portal role, all with the given
// password.
func (s *State) SeedFixtures(password string) error {
	fixtures := []domain.UserRef{
		{ID: "usr-admin", FirstName: "Alice", LastName: "Hart", Email: "admin@givebridge.org", Role: domain.RoleAdmin},
		{ID: "usr-manager", FirstName: "Marcus", LastName: "Oyelaran", Email: "manager@givebridge.org", Role: domain.RoleManager},
		{ID: "usr-student", FirstName: "Selam", LastName: "Bekele", Email: "student@givebridge.org", Role: domain.RoleStudent},
		{ID: "usr-donor", FirstName: "Dana", LastName: "Keller", Email: "donor@givebridge.org", Role: domain.RoleDonor},
	}
	for _, ref := range fixtures {
		if err := s.AddUser(ref, password); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) AddUser(ref domain.UserRef, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users[ref.ID] = &account{ref: ref, passwordHash: hash}
	s.mu.Unlock()
	return nil
}

// Authenticate checks the credentials and returns the identity snapshot.
func (s *State) Authenticate(email, password string) (domain.UserRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.users {
		if a.ref.Email != email {
			continue
		}
		if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
			return domain.UserRef{}, givebridge_errors.ErrUnauthorized
		}
		return a.ref, nil
	}
	return domain.UserRef{}, givebridge_errors.ErrUnauthorized
}

func (s *State) UserByID(id string) (domain.UserRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.users[id]
	if !ok {
		return domain.UserRef{}, false
	}
	return a.ref, true
}

// ConversationsFor derives the conversation list of a user from the message
// log: one entry per counterpart carrying the latest message's preview,
// ordered most recent first.
func (s *State) ConversationsFor(userID string) []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]*domain.Message)
	for _, m := range s.messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		counterpart := m.CounterpartOf(userID)
		if prev, ok := latest[counterpart]; !ok || m.CreatedAt.After(prev.CreatedAt) {
			latest[counterpart] = m
		}
	}

	out := make([]domain.Conversation, 0, len(latest))
	for counterpart, m := range latest {
		conv := domain.Conversation{
			CounterpartID:      counterpart,
			CounterpartName:    counterpart,
			LastMessagePreview: m.Content,
			LastMessageAt:      m.CreatedAt,
		}
		if a, ok := s.users[counterpart]; ok {
			conv.CounterpartName = a.ref.DisplayName()
			conv.CounterpartEmail = a.ref.Email
			conv.CounterpartRole = a.ref.Role
			conv.AvatarURL = a.ref.AvatarURL
		}
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// MessagesBetween returns the ordered history between two users, with
// identity snapshots attached.
func (s *State) MessagesBetween(userA, userB string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0)
	for _, m := range s.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, s.withRefs(*m))
		}
	}
	return out
}

// AddMessage appends a message to the log with a server-issued id and
// timestamp.
func (s *State) AddMessage(senderID, receiverID, content string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[receiverID]; !ok {
		return domain.Message{}, givebridge_errors.ErrNotFound
	}
	msg := &domain.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	return s.withRefs(*msg), nil
}

// DeleteMessage removes a message. Only the sender may delete.
func (s *State) DeleteMessage(id, requesterID string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.ID != id {
			continue
		}
		if m.SenderID != requesterID {
			return domain.Message{}, givebridge_errors.ErrForbidden
		}
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
		return s.withRefs(*m), nil
	}
	return domain.Message{}, givebridge_errors.ErrNotFound
}

// AddNotification stores a notification for a user, newest first.
func (s *State) AddNotification(userID string, n domain.Notification) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = uuid.New().String()
	n.CreatedAt = time.Now().UTC()
	s.notifications[userID] = append([]*domain.Notification{&n}, s.notifications[userID]...)
	return n
}

// NotificationsFor returns the user's feed and its unread count.
func (s *State) NotificationsFor(userID string) ([]domain.Notification, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.notifications[userID]
	out := make([]domain.Notification, len(list))
	unread := 0
	for i, n := range list {
		out[i] = *n
		if !n.IsRead {
			unread++
		}
	}
	return out, unread
}

func (s *State) MarkNotificationRead(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[userID] {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return givebridge_errors.ErrNotFound
}

// withRefs attaches the sender/receiver identity snapshots. Caller must
// hold at least a read lock.
func (s *State) withRefs(m domain.Message) domain.Message {
	if a, ok := s.users[m.SenderID]; ok {
		ref := a.ref
		m.Sender = &ref
	}
	if a, ok := s.users[m.ReceiverID]; ok {
		ref := a.ref
		m.Receiver = &ref
	}
	return m
}
