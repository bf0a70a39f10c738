package store

import (
	"givebridge/internal/domain"
)

// NotificationFeed owns the notification list, newest first. The unread
// count is always recomputed from the collection so it cannot drift from the
// entries themselves.
type NotificationFeed struct {
	ordered []*domain.Notification
	byID    map[string]*domain.Notification
}

func NewNotificationFeed() *NotificationFeed {
	return &NotificationFeed{byID: make(map[string]*domain.Notification)}
}

// Seed replaces the feed with a server snapshot.
func (f *NotificationFeed) Seed(notifications []domain.Notification) {
	f.ordered = make([]*domain.Notification, 0, len(notifications))
	f.byID = make(map[string]*domain.Notification, len(notifications))
	for i := range notifications {
		n := notifications[i]
		if _, dup := f.byID[n.ID]; dup {
			continue
		}
		p := &n
		f.ordered = append(f.ordered, p)
		f.byID[n.ID] = p
	}
}

// Prepend inserts a pushed notification at the head of the feed. Duplicate
// deliveries of the same id are ignored.
func (f *NotificationFeed) Prepend(n domain.Notification) bool {
	if _, dup := f.byID[n.ID]; dup {
		return false
	}
	p := &n
	f.ordered = append([]*domain.Notification{p}, f.ordered...)
	f.byID[n.ID] = p
	return true
}

// MarkRead flips a notification to read.
func (f *NotificationFeed) MarkRead(id string) bool {
	n, ok := f.byID[id]
	if !ok || n.IsRead {
		return false
	}
	n.IsRead = true
	return true
}

// UnreadCount recomputes the badge counter from the collection.
func (f *NotificationFeed) UnreadCount() int {
	count := 0
	for _, n := range f.ordered {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// List returns a copy of the feed, newest first.
func (f *NotificationFeed) List() []domain.Notification {
	out := make([]domain.Notification, len(f.ordered))
	for i, n := range f.ordered {
		out[i] = *n
	}
	return out
}

// Clear drops all state. Called on teardown.
func (f *NotificationFeed) Clear() {
	f.ordered = nil
	f.byID = make(map[string]*domain.Notification)
}
