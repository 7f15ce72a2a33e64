package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
)

type conversationReader interface {
	GetParties(ctx context.Context, conversationID int64) (*models.ConversationParties, error)
	ListForProfile(ctx context.Context, role models.Role, profileID int64, viewerUserID int64) ([]models.ConversationSummary, error)
}

type messagePublisher interface {
	PublishMessage(ctx context.Context, message models.ChatMessage, recipientUserID int64, recipientRole models.Role)
}

// ChatService is the participant-checked entry point to the directory, the message log and unread counts.
type ChatService struct {
	tx            transactor
	directory     *ConversationDirectory
	log           *MessageLog
	unread        *UnreadTracker
	conversations conversationReader
	profiles      *ProfileService
	publisher     messagePublisher
}

func NewChatService(
	tx transactor,
	directory *ConversationDirectory,
	log *MessageLog,
	unread *UnreadTracker,
	conversations conversationReader,
	profiles *ProfileService,
	publisher messagePublisher,
) *ChatService {
	return &ChatService{
		tx:            tx,
		directory:     directory,
		log:           log,
		unread:        unread,
		conversations: conversations,
		profiles:      profiles,
		publisher:     publisher,
	}
}

// ResolveViewer binds an account to the profile it holds for role.
func (s *ChatService) ResolveViewer(ctx context.Context, userID int64, role models.Role) (models.Viewer, error) {
	if !role.Valid() {
		return models.Viewer{}, ErrInvalidInput
	}
	account, err := s.profiles.Account(ctx, userID)
	if err != nil {
		return models.Viewer{}, err
	}
	profileID, ok := account.ProfileFor(role)
	if !ok {
		return models.Viewer{}, ErrRoleUnavailable
	}
	return models.Viewer{UserID: userID, Role: role, ProfileID: profileID}, nil
}

func (s *ChatService) Account(ctx context.Context, userID int64) (models.AccountProfiles, error) {
	return s.profiles.Account(ctx, userID)
}

func (s *ChatService) ListConversations(ctx context.Context, viewer models.Viewer) ([]models.ConversationSummary, error) {
	if viewer.ProfileID <= 0 {
		return nil, ErrRoleUnavailable
	}
	return s.conversations.ListForProfile(ctx, viewer.Role, viewer.ProfileID, viewer.UserID)
}

// OpenConversation marks the counterpart's messages read and returns the full history.
func (s *ChatService) OpenConversation(ctx context.Context, viewer models.Viewer, conversationID int64) ([]models.ChatMessage, error) {
	if _, err := s.authorize(ctx, viewer, conversationID); err != nil {
		return nil, err
	}
	if _, err := s.log.MarkAllReadExceptSender(ctx, conversationID, viewer.UserID); err != nil {
		return nil, err
	}
	return s.log.ListMessages(ctx, conversationID)
}

func (s *ChatService) MarkRead(ctx context.Context, viewer models.Viewer, conversationID int64) (int64, error) {
	if _, err := s.authorize(ctx, viewer, conversationID); err != nil {
		return 0, err
	}
	return s.log.MarkAllReadExceptSender(ctx, conversationID, viewer.UserID)
}

// LookupConversation finds the conversation with a counterpart profile without creating it.
func (s *ChatService) LookupConversation(ctx context.Context, viewer models.Viewer, counterpartProfileID int64) (*models.Conversation, error) {
	clientID, providerID := viewer.Pair(counterpartProfileID)
	return s.directory.Lookup(ctx, clientID, providerID)
}

func (s *ChatService) Counterpart(ctx context.Context, viewer models.Viewer, counterpartProfileID int64) (*models.ParticipantCard, error) {
	return s.profiles.Card(ctx, viewer.Role.Counterpart(), counterpartProfileID)
}

func (s *ChatService) FindOrCreate(ctx context.Context, viewer models.Viewer, counterpartProfileID int64) (*models.Conversation, bool, error) {
	if _, err := s.contactable(ctx, viewer, counterpartProfileID); err != nil {
		return nil, false, err
	}
	clientID, providerID := viewer.Pair(counterpartProfileID)
	return s.directory.FindOrCreate(ctx, clientID, providerID)
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	viewer models.Viewer,
	conversationID int64,
	text string,
	attachment *Attachment,
) (*models.ChatMessage, error) {
	if err := ValidateDraft(text, attachment != nil); err != nil {
		return nil, err
	}

	parties, err := s.authorize(ctx, viewer, conversationID)
	if err != nil {
		return nil, err
	}

	message, err := s.log.Append(ctx, AppendInput{
		ConversationID: conversationID,
		SenderID:       viewer.UserID,
		Text:           text,
		Attachment:     attachment,
	})
	if err != nil {
		return nil, err
	}

	recipientRole := viewer.Role.Counterpart()
	s.publish(ctx, *message, parties.UserFor(recipientRole), recipientRole)
	return message, nil
}

// SendToCounterpart sends the first message to a profile, creating the conversation in the same transaction.
func (s *ChatService) SendToCounterpart(
	ctx context.Context,
	viewer models.Viewer,
	counterpartProfileID int64,
	text string,
	attachment *Attachment,
) (*models.Conversation, *models.ChatMessage, error) {
	if err := ValidateDraft(text, attachment != nil); err != nil {
		return nil, nil, err
	}

	card, err := s.contactable(ctx, viewer, counterpartProfileID)
	if err != nil {
		return nil, nil, err
	}

	clientID, providerID := viewer.Pair(counterpartProfileID)

	var conversation *models.Conversation
	var message *models.ChatMessage
	err = s.tx.InTx(ctx, func(directory *ConversationDirectory, log *MessageLog) error {
		found, _, err := directory.FindOrCreate(ctx, clientID, providerID)
		if err != nil {
			return err
		}
		appended, err := log.Append(ctx, AppendInput{
			ConversationID: found.ID,
			SenderID:       viewer.UserID,
			Text:           text,
			Attachment:     attachment,
		})
		if err != nil {
			return err
		}
		conversation, message = found, appended
		return nil
	})
	if err != nil {
		if message != nil && message.AttachmentURL != nil {
			if cleanupErr := s.log.DiscardAttachment(ctx, *message.AttachmentURL); cleanupErr != nil {
				return nil, nil, errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
			}
		}
		return nil, nil, err
	}

	s.publish(ctx, *message, card.UserID, card.Role)
	return conversation, message, nil
}

func (s *ChatService) UnreadBadges(ctx context.Context, account models.AccountProfiles) (models.UnreadBadges, error) {
	return s.unread.Badges(ctx, account)
}

func (s *ChatService) CountUnread(ctx context.Context, viewer models.Viewer, conversationID int64) (int, error) {
	if _, err := s.authorize(ctx, viewer, conversationID); err != nil {
		return 0, err
	}
	return s.unread.CountUnread(ctx, conversationID, viewer.UserID)
}

// authorize loads the conversation and checks the viewer's profile is the party on its side.
func (s *ChatService) authorize(ctx context.Context, viewer models.Viewer, conversationID int64) (*models.ConversationParties, error) {
	if conversationID <= 0 || viewer.UserID <= 0 || viewer.ProfileID <= 0 {
		return nil, ErrInvalidInput
	}

	parties, err := s.conversations.GetParties(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if parties.ProfileFor(viewer.Role) != viewer.ProfileID || parties.UserFor(viewer.Role) != viewer.UserID {
		return nil, ErrForbidden
	}
	return parties, nil
}

// contactable loads the counterpart card and rejects messaging one's own other profile.
func (s *ChatService) contactable(ctx context.Context, viewer models.Viewer, counterpartProfileID int64) (*models.ParticipantCard, error) {
	if viewer.ProfileID <= 0 {
		return nil, ErrRoleUnavailable
	}
	card, err := s.Counterpart(ctx, viewer, counterpartProfileID)
	if err != nil {
		return nil, err
	}
	if card.UserID == viewer.UserID {
		return nil, ErrInvalidInput
	}
	return card, nil
}

func (s *ChatService) publish(ctx context.Context, message models.ChatMessage, recipientUserID int64, recipientRole models.Role) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishMessage(context.WithoutCancel(ctx), message, recipientUserID, recipientRole)
	observability.Logger.DebugContext(ctx, "message published",
		"conversation_id", message.ConversationID,
		"message_id", message.ID,
	)
}
