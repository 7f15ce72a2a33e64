package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ToolConnectBack/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) FindByPair(ctx context.Context, clientID, providerID int64) (*models.Conversation, error) {
	query := `
		SELECT id, client_id, service_provider_id, last_message_at, created_at
		FROM conversations
		WHERE client_id = $1 AND service_provider_id = $2
	`
	return scanConversation(r.db.QueryRow(ctx, query, clientID, providerID))
}

// InsertIfAbsent inserts the pair and reports whether this call created it. A concurrent insert
// of the same pair makes it return (nil, false, nil); the caller re-reads the existing row.
func (r *ConversationRepository) InsertIfAbsent(ctx context.Context, clientID, providerID int64) (*models.Conversation, bool, error) {
	query := `
		INSERT INTO conversations (client_id, service_provider_id)
		VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT conversations_pair_unique DO NOTHING
		RETURNING id, client_id, service_provider_id, last_message_at, created_at
	`
	conversation, err := scanConversation(r.db.QueryRow(ctx, query, clientID, providerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return conversation, true, nil
}

// GetParties loads the conversation with both account ids. Returns pgx.ErrNoRows when absent.
func (r *ConversationRepository) GetParties(ctx context.Context, conversationID int64) (*models.ConversationParties, error) {
	query := `
		SELECT c.id, c.client_id, c.service_provider_id, c.last_message_at, c.created_at,
			   cp.user_id, pp.user_id
		FROM conversations c
		JOIN client_profiles cp ON cp.id = c.client_id
		JOIN provider_profiles pp ON pp.id = c.service_provider_id
		WHERE c.id = $1
	`
	var parties models.ConversationParties
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&parties.ID,
		&parties.ClientID,
		&parties.ProviderID,
		&parties.LastMessageAt,
		&parties.CreatedAt,
		&parties.ClientUserID,
		&parties.ProviderUserID,
	)
	if err != nil {
		return nil, err
	}
	return &parties, nil
}

// ListForProfile lists the conversations a profile takes part in on the given side, most recent
// activity first. Conversations with equal timestamps have no defined relative order.
func (r *ConversationRepository) ListForProfile(
	ctx context.Context,
	role models.Role,
	profileID int64,
	viewerUserID int64,
) ([]models.ConversationSummary, error) {
	var ownColumn, counterpartJoin string
	switch role {
	case models.RoleClient:
		ownColumn = "c.client_id"
		counterpartJoin = `JOIN provider_profiles other ON other.id = c.service_provider_id`
	case models.RoleProvider:
		ownColumn = "c.service_provider_id"
		counterpartJoin = `JOIN client_profiles other ON other.id = c.client_id`
	default:
		return nil, fmt.Errorf("list conversations: unknown role %q", role)
	}

	query := fmt.Sprintf(`
		SELECT
			c.id,
			c.client_id,
			c.service_provider_id,
			c.last_message_at,
			c.created_at,
			other.id,
			other.user_id,
			COALESCE(other.name, ''),
			COALESCE(other.surname, ''),
			other.avatar_url,
			lm.id,
			lm.sender_id,
			lm.message_text,
			lm.attachment_url,
			lm.attachment_type,
			lm.attachment_name,
			lm.is_read,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		%s
		LEFT JOIN LATERAL (
			SELECT id, sender_id, message_text, attachment_url, attachment_type, attachment_name, is_read, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND sender_id <> $2
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE %s = $1
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
	`, counterpartJoin, ownColumn)

	rows, err := r.db.Query(ctx, query, profileID, viewerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID sql.NullInt64
		var messageSenderID sql.NullInt64
		var messageText sql.NullString
		var messageAttachmentURL *string
		var messageAttachmentType *string
		var messageAttachmentName *string
		var messageIsRead sql.NullBool
		var messageCreatedAt sql.NullTime

		if err := rows.Scan(
			&summary.ID,
			&summary.ClientID,
			&summary.ProviderID,
			&summary.LastMessageAt,
			&summary.CreatedAt,
			&summary.Counterpart.ProfileID,
			&summary.Counterpart.UserID,
			&summary.Counterpart.Name,
			&summary.Counterpart.Surname,
			&summary.Counterpart.AvatarURL,
			&messageID,
			&messageSenderID,
			&messageText,
			&messageAttachmentURL,
			&messageAttachmentType,
			&messageAttachmentName,
			&messageIsRead,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}
		summary.Counterpart.Role = role.Counterpart()

		if messageID.Valid {
			summary.LastMessage = &models.ChatMessage{
				ID:             messageID.Int64,
				ConversationID: summary.ID,
				SenderID:       messageSenderID.Int64,
				MessageText:    messageText.String,
				AttachmentURL:  messageAttachmentURL,
				AttachmentType: messageAttachmentType,
				AttachmentName: messageAttachmentName,
				IsRead:         messageIsRead.Bool,
				CreatedAt:      messageCreatedAt.Time,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conversation models.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.ClientID,
		&conversation.ProviderID,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}
