package services

import (
	"context"

	"github.com/saeid-a/ToolConnectBack/internal/models"
	"golang.org/x/sync/errgroup"
)

type unreadStore interface {
	CountUnread(ctx context.Context, conversationID int64, viewerID int64) (int, error)
	CountUnreadForProfile(ctx context.Context, role models.Role, profileID int64, viewerID int64) (int, error)
}

// CountUnread counts messages the viewer has not read and did not send.
func CountUnread(messages []models.ChatMessage, viewerUserID int64) int {
	count := 0
	for i := range messages {
		if IsUnreadFor(&messages[i], viewerUserID) {
			count++
		}
	}
	return count
}

func IsUnreadFor(message *models.ChatMessage, viewerUserID int64) bool {
	return message.SenderID != viewerUserID && !message.IsRead
}

type UnreadTracker struct {
	store unreadStore
}

func NewUnreadTracker(store unreadStore) *UnreadTracker {
	return &UnreadTracker{store: store}
}

func (t *UnreadTracker) CountUnread(ctx context.Context, conversationID int64, viewerUserID int64) (int, error) {
	if conversationID <= 0 || viewerUserID <= 0 {
		return 0, ErrInvalidInput
	}
	return t.store.CountUnread(ctx, conversationID, viewerUserID)
}

// AggregateByRole sums the viewer's unread messages across the role's conversations.
func (t *UnreadTracker) AggregateByRole(ctx context.Context, viewerUserID int64, role models.Role, profileID int64) (int, error) {
	if !role.Valid() || viewerUserID <= 0 {
		return 0, ErrInvalidInput
	}
	if profileID <= 0 {
		return 0, nil
	}
	return t.store.CountUnreadForProfile(ctx, role, profileID, viewerUserID)
}

// Badges computes both role aggregates for an account. A missing profile counts as zero.
func (t *UnreadTracker) Badges(ctx context.Context, account models.AccountProfiles) (models.UnreadBadges, error) {
	var badges models.UnreadBadges

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		count, err := t.AggregateByRole(groupCtx, account.UserID, models.RoleClient, account.ClientProfileID)
		badges.Client = count
		return err
	})
	group.Go(func() error {
		count, err := t.AggregateByRole(groupCtx, account.UserID, models.RoleProvider, account.ProviderProfileID)
		badges.Provider = count
		return err
	})

	if err := group.Wait(); err != nil {
		return models.UnreadBadges{}, err
	}
	return badges, nil
}
