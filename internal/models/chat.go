package models

import "time"

const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
)

type Conversation struct {
	ID            int64      `json:"id"`
	ClientID      int64      `json:"client_id"`
	ProviderID    int64      `json:"service_provider_id"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ProfileFor returns the conversation's profile id on the given side.
func (c *Conversation) ProfileFor(role Role) int64 {
	if role == RoleProvider {
		return c.ProviderID
	}
	return c.ClientID
}

type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	MessageText    string    `json:"message_text"`
	AttachmentURL  *string   `json:"attachment_url"`
	AttachmentType *string   `json:"attachment_type"`
	AttachmentName *string   `json:"attachment_name"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationSummary struct {
	Conversation
	Counterpart ParticipantCard `json:"counterpart"`
	LastMessage *ChatMessage    `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
}

// UnreadBadges holds the per-role unread aggregates shown on the role tabs.
type UnreadBadges struct {
	Client   int `json:"client"`
	Provider int `json:"provider"`
}

func (b UnreadBadges) For(role Role) int {
	if role == RoleProvider {
		return b.Provider
	}
	return b.Client
}

// ConversationParties is a conversation together with the accounts behind its two profiles.
type ConversationParties struct {
	Conversation
	ClientUserID   int64 `json:"client_user_id"`
	ProviderUserID int64 `json:"provider_user_id"`
}

// UserFor returns the account id behind the given side.
func (p *ConversationParties) UserFor(role Role) int64 {
	if role == RoleProvider {
		return p.ProviderUserID
	}
	return p.ClientUserID
}

// Viewer is an account acting through one of its profiles.
type Viewer struct {
	UserID    int64 `json:"user_id"`
	Role      Role  `json:"role"`
	ProfileID int64 `json:"profile_id"`
}

// Pair orders the viewer's profile and a counterpart profile as (client, provider).
func (v Viewer) Pair(counterpartProfileID int64) (clientID int64, providerID int64) {
	if v.Role == RoleProvider {
		return counterpartProfileID, v.ProfileID
	}
	return v.ProfileID, counterpartProfileID
}

// InboxEvent tells a recipient account that a message arrived for one of its profiles.
type InboxEvent struct {
	ConversationID int64       `json:"conversation_id"`
	RecipientRole  Role        `json:"role"`
	Message        ChatMessage `json:"message"`
}
