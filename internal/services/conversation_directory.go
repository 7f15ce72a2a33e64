package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
)

type conversationStore interface {
	FindByPair(ctx context.Context, clientID, providerID int64) (*models.Conversation, error)
	InsertIfAbsent(ctx context.Context, clientID, providerID int64) (*models.Conversation, bool, error)
}

// ConversationDirectory resolves the single conversation a client and provider profile pair shares.
type ConversationDirectory struct {
	store conversationStore
}

func NewConversationDirectory(store conversationStore) *ConversationDirectory {
	return &ConversationDirectory{store: store}
}

// WithStore returns a directory bound to another store, typically one scoped to a transaction.
func (d *ConversationDirectory) WithStore(store conversationStore) *ConversationDirectory {
	return &ConversationDirectory{store: store}
}

// FindOrCreate returns the pair's conversation, creating it when none exists. The second result
// reports whether this call created the row.
func (d *ConversationDirectory) FindOrCreate(ctx context.Context, clientID, providerID int64) (*models.Conversation, bool, error) {
	if clientID <= 0 || providerID <= 0 {
		return nil, false, ErrInvalidInput
	}

	existing, err := d.store.FindByPair(ctx, clientID, providerID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("find conversation: %w", err)
	}

	created, inserted, err := d.store.InsertIfAbsent(ctx, clientID, providerID)
	if err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	if inserted {
		observability.ConversationsCreated.Inc()
		return created, true, nil
	}

	// Another writer inserted the pair between our lookup and insert.
	observability.ConversationCreateRaces.Inc()
	existing, err = d.store.FindByPair(ctx, clientID, providerID)
	if err != nil {
		return nil, false, fmt.Errorf("refetch conversation: %w", err)
	}
	return existing, false, nil
}

// Lookup finds the pair's conversation without creating one.
func (d *ConversationDirectory) Lookup(ctx context.Context, clientID, providerID int64) (*models.Conversation, error) {
	if clientID <= 0 || providerID <= 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := d.store.FindByPair(ctx, clientID, providerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conversation, nil
}
