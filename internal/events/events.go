package events

import "strings"

// Logical push topics. Each topic maps to one live channel connection.
const (
	TopicMessages      = "messages"
	TopicNotifications = "notifications"
)

// Event type constants, format: domain.action
const (
	EventMessageReceived      = "message.received"
	EventMessageDeleted       = "message.deleted"
	EventNotificationReceived = "notification.received"

	// Control event sent client -> server to scope message delivery.
	EventRoomJoin = "room.join"
)

// Room name prefixes
const (
	RoomPrefixUser         = "room:user:"
	RoomPrefixConversation = "room:conversation:"
)

// UserRoom is the per-user room every connection is implicitly subscribed to.
func UserRoom(userID string) string {
	return RoomPrefixUser + userID
}

// ConversationRoom names the room shared by a pair of users. The two ids are
// ordered lexicographically so both participants derive the same name.
func ConversationRoom(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return RoomPrefixConversation + userA + ":" + userB
}

// TopicFor maps an event type to the topic it is delivered on.
func TopicFor(event string) string {
	if strings.HasPrefix(event, "notification.") {
		return TopicNotifications
	}
	return TopicMessages
}
