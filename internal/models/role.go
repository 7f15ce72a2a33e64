package models

import "strings"

// Role is the side a profile occupies in a conversation.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleClient:
		return RoleClient, true
	case RoleProvider:
		return RoleProvider, true
	default:
		return "", false
	}
}

// Counterpart returns the opposite side of the conversation.
func (r Role) Counterpart() Role {
	if r == RoleClient {
		return RoleProvider
	}
	return RoleClient
}

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProvider
}
