package chatws

import (
	"context"

	"github.com/saeid-a/ToolConnectBack/internal/messaging"
	"github.com/saeid-a/ToolConnectBack/internal/realtime"
)

// NotifierFeed exposes the Redis notifier as a session feed.
type NotifierFeed struct {
	notifier *realtime.Notifier
}

func NewNotifierFeed(notifier *realtime.Notifier) NotifierFeed {
	return NotifierFeed{notifier: notifier}
}

func (f NotifierFeed) Subscribe(ctx context.Context, conversationID int64) (messaging.Subscription, error) {
	sub, err := f.notifier.SubscribeConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
