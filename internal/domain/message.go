package domain

import (
	"time"
)

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	IsRead         bool      `json:"is_read"`

	// Sender and Receiver are identity snapshots attached by the server so a
	// receiving client can synthesize a conversation entry for an unseen
	// counterpart without an extra lookup.
	Sender   *UserRef `json:"sender,omitempty"`
	Receiver *UserRef `json:"receiver,omitempty"`

	// IsMine is derived locally (SenderID == local user id); it is never
	// part of the wire payload.
	IsMine bool `json:"-"`
}

// CounterpartOf returns the id of the other party from the perspective of
// localUserID.
func (m Message) CounterpartOf(localUserID string) string {
	if m.SenderID == localUserID {
		return m.ReceiverID
	}
	return m.SenderID
}

// CounterpartRef returns the identity snapshot of the other party, if the
// payload carried one.
func (m Message) CounterpartRef(localUserID string) *UserRef {
	if m.SenderID == localUserID {
		return m.Receiver
	}
	return m.Sender
}
