package domain

import (
	"time"
)

// Conversation represents the messaging relationship with exactly one
// counterpart identity. There is at most one conversation per counterpart.
type Conversation struct {
	CounterpartID      string    `json:"counterpart_id"`
	CounterpartName    string    `json:"counterpart_name"`
	CounterpartEmail   string    `json:"counterpart_email"`
	CounterpartRole    Role      `json:"counterpart_role"`
	AvatarURL          string    `json:"avatar_url,omitempty"`
	LastMessagePreview string    `json:"last_message_preview"`
	LastMessageAt      time.Time `json:"last_message_at"`

	// IsProvisional is true while the conversation exists only locally,
	// because the user selected a contact but has not yet sent a first
	// message. Promoted on first successful send.
	IsProvisional bool `json:"is_provisional"`
}

// ConversationFromRef builds a provisional conversation for a freshly
// selected counterpart.
func ConversationFromRef(ref UserRef) Conversation {
	return Conversation{
		CounterpartID:    ref.ID,
		CounterpartName:  ref.DisplayName(),
		CounterpartEmail: ref.Email,
		CounterpartRole:  ref.Role,
		AvatarURL:        ref.AvatarURL,
		IsProvisional:    true,
	}
}
