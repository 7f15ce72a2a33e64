package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
)

type messageStore interface {
	Append(ctx context.Context, input repository.CreateMessageInput) (*models.ChatMessage, error)
	ListByConversation(ctx context.Context, conversationID int64) ([]models.ChatMessage, error)
	MarkConversationRead(ctx context.Context, conversationID int64, readerID int64) (int64, error)
}

// MessageLog is the append-only message history of every conversation.
type MessageLog struct {
	store   messageStore
	objects ObjectStore
}

type AppendInput struct {
	ConversationID int64
	SenderID       int64
	Text           string
	Attachment     *Attachment
}

func NewMessageLog(store messageStore, objects ObjectStore) *MessageLog {
	return &MessageLog{store: store, objects: objects}
}

func (l *MessageLog) WithStore(store messageStore) *MessageLog {
	return &MessageLog{store: store, objects: l.objects}
}

// ValidateDraft rejects a message with neither text nor an attachment.
func ValidateDraft(text string, hasAttachment bool) error {
	if strings.TrimSpace(text) == "" && !hasAttachment {
		return ErrEmptyMessage
	}
	return nil
}

func (l *MessageLog) ListMessages(ctx context.Context, conversationID int64) ([]models.ChatMessage, error) {
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}
	return l.store.ListByConversation(ctx, conversationID)
}

// Append stores a message, uploading its attachment first. Nothing is written when the upload fails.
func (l *MessageLog) Append(ctx context.Context, input AppendInput) (*models.ChatMessage, error) {
	if err := ValidateDraft(input.Text, input.Attachment != nil); err != nil {
		return nil, err
	}
	if input.ConversationID <= 0 || input.SenderID <= 0 {
		return nil, ErrInvalidInput
	}

	create := repository.CreateMessageInput{
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		MessageText:    strings.TrimSpace(input.Text),
	}

	var uploadedURL string
	if input.Attachment != nil {
		if l.objects == nil {
			return nil, ErrStorageUnavailable
		}

		contentType, body := input.Attachment.resolveContentType()
		attachmentType := ClassifyAttachment(contentType)
		name := attachmentDisplayName(input.Attachment.Filename)

		url, err := l.objects.Upload(ctx, UploadObject{
			Folder:      attachmentFolder(input.ConversationID),
			Name:        attachmentObjectName(input.Attachment.Filename),
			ContentType: contentType,
			Body:        body,
			Size:        input.Attachment.Size,
		})
		if err != nil {
			observability.AttachmentUploadFailures.Inc()
			return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}

		uploadedURL = url
		create.AttachmentURL = &url
		create.AttachmentType = &attachmentType
		create.AttachmentName = &name
		create.MessageText = EffectiveMessageText(input.Text, attachmentType, name)
	}

	message, err := l.store.Append(ctx, create)
	if err != nil {
		if uploadedURL != "" {
			if cleanupErr := l.objects.Delete(ctx, uploadedURL); cleanupErr != nil {
				return nil, errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
			}
		}
		return nil, err
	}

	kind := "none"
	if message.AttachmentType != nil {
		kind = *message.AttachmentType
	}
	observability.MessagesAppended.WithLabelValues(kind).Inc()

	return message, nil
}

// MarkAllReadExceptSender flags every message in the conversation not sent by the viewer as read.
func (l *MessageLog) MarkAllReadExceptSender(ctx context.Context, conversationID int64, viewerUserID int64) (int64, error) {
	if conversationID <= 0 || viewerUserID <= 0 {
		return 0, ErrInvalidInput
	}
	return l.store.MarkConversationRead(ctx, conversationID, viewerUserID)
}

// DiscardAttachment removes an uploaded object whose message was never committed.
func (l *MessageLog) DiscardAttachment(ctx context.Context, fileURL string) error {
	if l.objects == nil || fileURL == "" {
		return nil
	}
	return l.objects.Delete(ctx, fileURL)
}
