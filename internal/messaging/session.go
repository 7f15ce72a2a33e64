// Package messaging drives one client's messaging screen: the active role, its conversation list,
// the open thread and its live subscription.
package messaging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
	"github.com/saeid-a/ToolConnectBack/internal/services"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateNoConversation State = "no_conversation_selected"
	StateLoading        State = "loading"
	StateThreadOpen     State = "thread_open"
	StatePending        State = "pending_new_conversation"
)

var (
	ErrNoRole   = errors.New("messaging: no role selected")
	ErrNoThread = errors.New("messaging: no conversation open")
)

type Backend interface {
	Account(ctx context.Context, userID int64) (models.AccountProfiles, error)
	ResolveViewer(ctx context.Context, userID int64, role models.Role) (models.Viewer, error)
	ListConversations(ctx context.Context, viewer models.Viewer) ([]models.ConversationSummary, error)
	OpenConversation(ctx context.Context, viewer models.Viewer, conversationID int64) ([]models.ChatMessage, error)
	MarkRead(ctx context.Context, viewer models.Viewer, conversationID int64) (int64, error)
	LookupConversation(ctx context.Context, viewer models.Viewer, counterpartProfileID int64) (*models.Conversation, error)
	Counterpart(ctx context.Context, viewer models.Viewer, counterpartProfileID int64) (*models.ParticipantCard, error)
	SendMessage(ctx context.Context, viewer models.Viewer, conversationID int64, text string, attachment *services.Attachment) (*models.ChatMessage, error)
	SendToCounterpart(ctx context.Context, viewer models.Viewer, counterpartProfileID int64, text string, attachment *services.Attachment) (*models.Conversation, *models.ChatMessage, error)
	UnreadBadges(ctx context.Context, account models.AccountProfiles) (models.UnreadBadges, error)
}

type Subscription interface {
	Messages() <-chan models.ChatMessage
	Close() error
}

// Feed opens live subscriptions to a conversation's inserts.
type Feed interface {
	Subscribe(ctx context.Context, conversationID int64) (Subscription, error)
}

// Session is the messaging state of one connected client. Its methods are not safe for
// concurrent use; the owner calls them from a single loop.
type Session struct {
	userID  int64
	backend Backend
	feed    Feed
	emitter Emitter
	logger  *slog.Logger

	account    models.AccountProfiles
	role       *RoleContext
	otherBadge int

	state          State
	conversationID int64
	counterpart    *models.ParticipantCard
	thread         *Thread
	sub            Subscription
}

func NewSession(userID int64, backend Backend, feed Feed, emitter Emitter) *Session {
	return &Session{
		userID:  userID,
		backend: backend,
		feed:    feed,
		emitter: emitter,
		logger:  observability.Logger.With("user_id", userID),
		state:   StateNoConversation,
	}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) ConversationID() int64 {
	return s.conversationID
}

func (s *Session) Role() (models.Role, bool) {
	if s.role == nil {
		return "", false
	}
	return s.role.viewer.Role, true
}

func (s *Session) Thread() []ThreadEntry {
	if s.thread == nil {
		return nil
	}
	return s.thread.Entries()
}

func (s *Session) Conversations() []models.ConversationSummary {
	if s.role == nil {
		return nil
	}
	return s.role.Summaries()
}

// Live is the open thread's insert channel, nil when nothing is subscribed.
func (s *Session) Live() <-chan models.ChatMessage {
	if s.sub == nil {
		return nil
	}
	return s.sub.Messages()
}

// Start loads the account and enters the preferred role, falling back to the profile the account holds.
func (s *Session) Start(ctx context.Context, preferred models.Role) error {
	account, err := s.backend.Account(ctx, s.userID)
	if err != nil {
		s.fail(ctx, "load account", err)
		return err
	}
	s.account = account

	role := preferred
	if _, ok := account.ProfileFor(role); !ok {
		role = role.Counterpart()
	}
	if _, ok := account.ProfileFor(role); !ok {
		s.fail(ctx, "start session", services.ErrRoleUnavailable)
		return services.ErrRoleUnavailable
	}
	return s.SwitchRole(ctx, role)
}

// SwitchRole drops every piece of state tied to the current role and loads the new one.
func (s *Session) SwitchRole(ctx context.Context, role models.Role) error {
	viewer, err := s.backend.ResolveViewer(ctx, s.userID, role)
	if err != nil {
		s.fail(ctx, "switch role", err)
		return err
	}

	s.releaseThread()
	s.role = newRoleContext(viewer)
	s.otherBadge = 0
	s.Refresh(ctx)
	return nil
}

// Refresh reloads the account, the conversation list and both role badges. Backend errors leave an empty list.
func (s *Session) Refresh(ctx context.Context) {
	if s.role == nil {
		return
	}
	viewer := s.role.viewer

	var summaries []models.ConversationSummary
	var account models.AccountProfiles
	var badges models.UnreadBadges
	var badgesErr error

	var group errgroup.Group
	group.Go(func() error {
		var err error
		summaries, err = s.backend.ListConversations(ctx, viewer)
		if err != nil {
			s.logger.ErrorContext(ctx, "list conversations failed", "role", viewer.Role, "error", err)
			summaries = nil
		}
		return nil
	})
	group.Go(func() error {
		account, badgesErr = s.backend.Account(ctx, s.userID)
		if badgesErr != nil {
			return nil
		}
		badges, badgesErr = s.backend.UnreadBadges(ctx, account)
		return nil
	})
	_ = group.Wait()

	openID := int64(0)
	if s.state == StateThreadOpen {
		openID = s.conversationID
	}
	s.role.load(summaries, openID)

	if account.UserID != 0 {
		s.account = account
	}
	if badgesErr != nil {
		s.logger.ErrorContext(ctx, "load unread badges failed", "error", badgesErr)
	} else {
		s.otherBadge = badges.For(viewer.Role.Counterpart())
	}

	s.emitConversations()
	s.emitUnread()
}

// Select opens a conversation thread, replacing whatever was open.
func (s *Session) Select(ctx context.Context, conversationID int64) error {
	if s.role == nil {
		return ErrNoRole
	}
	viewer := s.role.viewer

	s.releaseThread()
	s.state = StateLoading
	s.conversationID = conversationID

	// Subscribe before reading history so an insert between the two still arrives.
	sub, subErr := s.feed.Subscribe(ctx, conversationID)
	history, historyErr := s.backend.OpenConversation(ctx, viewer, conversationID)

	if historyErr != nil && isRejection(historyErr) {
		if sub != nil {
			_ = sub.Close()
		}
		s.state = StateNoConversation
		s.conversationID = 0
		s.fail(ctx, "open conversation", historyErr)
		return historyErr
	}
	if historyErr != nil {
		s.logger.ErrorContext(ctx, "load thread failed", "conversation_id", conversationID, "error", historyErr)
		history = nil
	}
	if subErr != nil {
		s.logger.WarnContext(ctx, "thread opened without live updates", "conversation_id", conversationID, "error", subErr)
		sub = nil
	}

	s.sub = sub
	s.thread = newThread(conversationID)
	s.thread.Load(history)
	s.state = StateThreadOpen
	s.role.unread.Clear(conversationID)

	s.emitter.Emit(Event{Type: EventThread, Payload: ThreadPayload{
		State:          s.state,
		ConversationID: conversationID,
		Messages:       s.thread.Entries(),
		Live:           s.sub != nil,
	}})
	s.emitConversations()
	s.emitUnread()
	return nil
}

// OpenCounterpart follows a link to a profile: an existing conversation is opened, otherwise the
// session waits on an empty thread until the first send creates one.
func (s *Session) OpenCounterpart(ctx context.Context, counterpartProfileID int64) error {
	if s.role == nil {
		return ErrNoRole
	}
	viewer := s.role.viewer

	conversation, err := s.backend.LookupConversation(ctx, viewer, counterpartProfileID)
	if err == nil {
		return s.Select(ctx, conversation.ID)
	}
	if !errors.Is(err, services.ErrConversationNotFound) {
		s.fail(ctx, "lookup conversation", err)
		return err
	}

	card, err := s.backend.Counterpart(ctx, viewer, counterpartProfileID)
	if err != nil {
		s.fail(ctx, "load counterpart", err)
		return err
	}
	if card.UserID == s.userID {
		s.fail(ctx, "open counterpart", services.ErrInvalidInput)
		return services.ErrInvalidInput
	}

	s.releaseThread()
	s.state = StatePending
	s.counterpart = card
	s.thread = newThread(0)

	s.emitter.Emit(Event{Type: EventPendingConversation, Payload: PendingPayload{
		State:       s.state,
		Counterpart: *card,
		Messages:    s.thread.Entries(),
	}})
	return nil
}

// Send posts a message to the open thread, or creates the conversation when one is pending.
// A failed send leaves the draft with the client through a send_failed event.
func (s *Session) Send(ctx context.Context, text string, correlationID string, attachment *services.Attachment) error {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	if err := services.ValidateDraft(text, attachment != nil); err != nil {
		s.emitSendFailed(correlationID, text, err)
		return err
	}
	if s.role == nil {
		s.emitSendFailed(correlationID, text, ErrNoRole)
		return ErrNoRole
	}
	if s.state != StateThreadOpen && s.state != StatePending {
		s.emitSendFailed(correlationID, text, ErrNoThread)
		return ErrNoThread
	}

	viewer := s.role.viewer
	pending := s.thread.AddPending(correlationID, s.userID, text)
	s.emitter.Emit(Event{Type: EventMessage, Payload: MessagePayload{
		ConversationID: s.thread.ConversationID(),
		Entry:          pending,
	}})

	var message *models.ChatMessage
	var err error
	created := false

	switch s.state {
	case StateThreadOpen:
		message, err = s.backend.SendMessage(ctx, viewer, s.conversationID, text, attachment)
	case StatePending:
		var conversation *models.Conversation
		conversation, message, err = s.backend.SendToCounterpart(ctx, viewer, s.counterpart.ProfileID, text, attachment)
		if err == nil {
			s.adoptConversation(ctx, conversation.ID)
			created = true
		}
	}

	if err != nil {
		s.thread.Discard(correlationID)
		s.logger.ErrorContext(ctx, "send failed", "conversation_id", s.conversationID, "error", err)
		s.emitSendFailed(correlationID, text, err)
		return err
	}

	confirmed := s.thread.Confirm(correlationID, *message)
	s.emitter.Emit(Event{Type: EventMessage, Payload: MessagePayload{
		ConversationID: message.ConversationID,
		Entry:          confirmed,
	}})

	if created {
		s.Refresh(ctx)
	} else if s.role.bump(*message) {
		s.emitConversations()
	}
	return nil
}

// HandleRealtime merges an insert from the open thread's subscription.
func (s *Session) HandleRealtime(ctx context.Context, message models.ChatMessage) {
	if s.state != StateThreadOpen || s.thread == nil || message.ConversationID != s.conversationID {
		observability.RealtimeDrops.WithLabelValues("stale").Inc()
		return
	}
	if !s.thread.Merge(message) {
		observability.DuplicateEchoes.Inc()
		return
	}

	s.emitter.Emit(Event{Type: EventMessage, Payload: MessagePayload{
		ConversationID: message.ConversationID,
		Entry:          ThreadEntry{ChatMessage: message},
	}})

	if message.SenderID != s.userID {
		if _, err := s.backend.MarkRead(ctx, s.role.viewer, message.ConversationID); err != nil {
			s.logger.WarnContext(ctx, "mark read failed", "conversation_id", message.ConversationID, "error", err)
		}
	}
	if s.role.bump(message) {
		s.emitConversations()
	}
}

// HandleInbox counts a message delivered to this account outside the open thread.
func (s *Session) HandleInbox(ctx context.Context, event models.InboxEvent) {
	if s.role == nil {
		return
	}

	if event.RecipientRole != s.role.viewer.Role {
		s.otherBadge++
		s.emitUnread()
		return
	}
	if s.state == StateThreadOpen && event.ConversationID == s.conversationID {
		return
	}
	if !s.role.has(event.ConversationID) {
		s.Refresh(ctx)
		return
	}

	s.role.unread.Increment(event.ConversationID)
	s.role.bump(event.Message)
	s.emitConversations()
	s.emitUnread()
}

// CloseThread returns to the list without a selection.
func (s *Session) CloseThread() {
	s.releaseThread()
	s.emitConversations()
}

// Close releases the live subscription. The session must not be used afterwards.
func (s *Session) Close() {
	s.releaseThread()
}

// Badges derives both role badges: the active role from its tracker, the other from the last aggregate.
func (s *Session) Badges() models.UnreadBadges {
	var badges models.UnreadBadges
	if s.role == nil {
		return badges
	}
	active := s.role.unread.Total()
	if s.role.viewer.Role == models.RoleProvider {
		badges.Provider, badges.Client = active, s.otherBadge
	} else {
		badges.Client, badges.Provider = active, s.otherBadge
	}
	return badges
}

func (s *Session) adoptConversation(ctx context.Context, conversationID int64) {
	s.state = StateThreadOpen
	s.conversationID = conversationID
	s.counterpart = nil
	s.thread.adopt(conversationID)

	sub, err := s.feed.Subscribe(ctx, conversationID)
	if err != nil {
		s.logger.WarnContext(ctx, "thread opened without live updates", "conversation_id", conversationID, "error", err)
		return
	}
	s.sub = sub
}

func (s *Session) releaseThread() {
	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			s.logger.Warn("close subscription failed", "conversation_id", s.conversationID, "error", err)
		}
		s.sub = nil
	}
	s.state = StateNoConversation
	s.conversationID = 0
	s.counterpart = nil
	s.thread = nil
}

func (s *Session) emitConversations() {
	if s.role == nil {
		return
	}
	s.emitter.Emit(Event{Type: EventConversations, Payload: ConversationsPayload{
		Role:          s.role.viewer.Role,
		Conversations: s.role.Summaries(),
		Badges:        s.Badges(),
	}})
}

func (s *Session) emitUnread() {
	if s.role == nil {
		return
	}
	s.emitter.Emit(Event{Type: EventUnread, Payload: UnreadPayload{
		Role:   s.role.viewer.Role,
		Badges: s.Badges(),
	}})
}

func (s *Session) emitSendFailed(correlationID string, text string, err error) {
	s.emitter.Emit(Event{Type: EventSendFailed, Payload: SendFailedPayload{
		CorrelationID: correlationID,
		Text:          text,
		Error:         err.Error(),
	}})
}

func (s *Session) fail(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, op+" failed", "error", err)
	s.emitter.Emit(Event{Type: EventError, Payload: ErrorPayload{Message: err.Error()}})
}

func isRejection(err error) bool {
	return errors.Is(err, services.ErrForbidden) ||
		errors.Is(err, services.ErrConversationNotFound) ||
		errors.Is(err, services.ErrInvalidInput)
}
