package api

import (
	"strings"

	"givebridge/internal/domain"
)

// Endpoints resolves the REST paths for the messaging surface. The portal
// exposes the same operations under a per-role path prefix; this is the only
// role-specific piece of the whole engine.
type Endpoints interface {
	Conversations() string
	Messages(counterpartID string) string
	Send() string
	Message(id string) string
	Notifications() string
	NotificationRead(id string) string
}

// RoleEndpoints resolves paths under /api/<role>.
type RoleEndpoints struct {
	prefix string
}

func NewRoleEndpoints(role domain.Role) RoleEndpoints {
	return RoleEndpoints{prefix: "/api/" + strings.ToLower(string(role))}
}

func (r RoleEndpoints) Conversations() string {
	return r.prefix + "/conversations"
}

func (r RoleEndpoints) Messages(counterpartID string) string {
	return r.prefix + "/conversations/" + counterpartID + "/messages"
}

func (r RoleEndpoints) Send() string {
	return r.prefix + "/messages"
}

func (r RoleEndpoints) Message(id string) string {
	return r.prefix + "/messages/" + id
}

func (r RoleEndpoints) Notifications() string {
	return r.prefix + "/notifications"
}

func (r RoleEndpoints) NotificationRead(id string) string {
	return r.prefix + "/notifications/" + id + "/read"
}
