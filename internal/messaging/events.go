package messaging

import "github.com/saeid-a/ToolConnectBack/internal/models"

const (
	EventConversations       = "conversations"
	EventThread              = "thread"
	EventPendingConversation = "pending_conversation"
	EventMessage             = "message"
	EventUnread              = "unread"
	EventSendFailed          = "send_failed"
	EventError               = "error"
)

// Event is a state change pushed to the session's client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Emitter interface {
	Emit(event Event)
}

type EmitterFunc func(event Event)

func (f EmitterFunc) Emit(event Event) {
	f(event)
}

type ConversationsPayload struct {
	Role          models.Role                  `json:"role"`
	Conversations []models.ConversationSummary `json:"conversations"`
	Badges        models.UnreadBadges          `json:"badges"`
}

type ThreadPayload struct {
	State          State         `json:"state"`
	ConversationID int64         `json:"conversation_id"`
	Messages       []ThreadEntry `json:"messages"`
	Live           bool          `json:"live"`
}

type PendingPayload struct {
	State       State                  `json:"state"`
	Counterpart models.ParticipantCard `json:"counterpart"`
	Messages    []ThreadEntry          `json:"messages"`
}

type MessagePayload struct {
	ConversationID int64       `json:"conversation_id"`
	Entry          ThreadEntry `json:"entry"`
}

type UnreadPayload struct {
	Role   models.Role         `json:"role"`
	Badges models.UnreadBadges `json:"badges"`
}

type SendFailedPayload struct {
	CorrelationID string `json:"correlation_id"`
	Text          string `json:"text"`
	Error         string `json:"error"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
