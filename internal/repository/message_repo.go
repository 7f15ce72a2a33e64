package repository

import (
	"context"
	"fmt"

	"github.com/saeid-a/ToolConnectBack/internal/models"
)

const messageColumns = `
	id, conversation_id, sender_id, message_text, attachment_url, attachment_type,
	attachment_name, is_read, created_at
`

type MessageRepository struct {
	db DBTX
}

type CreateMessageInput struct {
	ConversationID int64
	SenderID       int64
	MessageText    string
	AttachmentURL  *string
	AttachmentType *string
	AttachmentName *string
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts the message and advances the parent conversation's last_message_at in one statement.
func (r *MessageRepository) Append(ctx context.Context, input CreateMessageInput) (*models.ChatMessage, error) {
	query := `
		WITH inserted AS (
			INSERT INTO messages (conversation_id, sender_id, message_text, attachment_url, attachment_type, attachment_name, is_read)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE)
			RETURNING ` + messageColumns + `
		), touched AS (
			UPDATE conversations c
			SET last_message_at = GREATEST(COALESCE(c.last_message_at, inserted.created_at), inserted.created_at)
			FROM inserted
			WHERE c.id = inserted.conversation_id
		)
		SELECT ` + messageColumns + ` FROM inserted
	`

	var message models.ChatMessage
	err := r.db.QueryRow(ctx, query,
		input.ConversationID,
		input.SenderID,
		input.MessageText,
		input.AttachmentURL,
		input.AttachmentType,
		input.AttachmentName,
	).Scan(messageScanTargets(&message)...)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListByConversation returns the whole history, oldest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID int64) ([]models.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var message models.ChatMessage
		if err := rows.Scan(messageScanTargets(&message)...); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND is_read = FALSE
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, conversationID int64, viewerID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND is_read = FALSE
	`, conversationID, viewerID).Scan(&count)
	return count, err
}

// CountUnreadForProfile sums unread messages across every conversation the profile takes part in on the given side.
func (r *MessageRepository) CountUnreadForProfile(
	ctx context.Context,
	role models.Role,
	profileID int64,
	viewerID int64,
) (int, error) {
	var column string
	switch role {
	case models.RoleClient:
		column = "c.client_id"
	case models.RoleProvider:
		column = "c.service_provider_id"
	default:
		return 0, fmt.Errorf("count unread: unknown role %q", role)
	}

	var count int
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(m.id)
		FROM conversations c
		JOIN messages m ON m.conversation_id = c.id
		WHERE %s = $1
		  AND m.sender_id <> $2
		  AND m.is_read = FALSE
	`, column), profileID, viewerID).Scan(&count)
	return count, err
}

func messageScanTargets(message *models.ChatMessage) []any {
	return []any{
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.MessageText,
		&message.AttachmentURL,
		&message.AttachmentType,
		&message.AttachmentName,
		&message.IsRead,
		&message.CreatedAt,
	}
}
