// Package realtime fans stored messages out over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
)

const (
	conversationPrefix = "chat:conv:"
	userPrefix         = "notifications:user:"
	subscriptionBuffer = 32
)

var ErrUnavailable = errors.New("realtime: redis is not configured")

func ConversationChannel(conversationID int64) string {
	return fmt.Sprintf("%s%d", conversationPrefix, conversationID)
}

func UserChannel(userID int64) string {
	return fmt.Sprintf("%s%d", userPrefix, userID)
}

// Notifier publishes inserted messages and inbox events. With a nil client every publish is a no-op.
type Notifier struct {
	rdb      *redis.Client
	warnOnce sync.Once
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishMessage sends the row to its conversation channel and an inbox event to the recipient.
// Failures are logged; the message is already stored.
func (n *Notifier) PublishMessage(ctx context.Context, message models.ChatMessage, recipientUserID int64, recipientRole models.Role) {
	if n.rdb == nil {
		n.warnOnce.Do(func() {
			observability.Logger.Warn("realtime notifier disabled: no redis client")
		})
		return
	}

	n.publish(ctx, "conversation", ConversationChannel(message.ConversationID), message)

	if recipientUserID > 0 {
		n.publish(ctx, "user", UserChannel(recipientUserID), models.InboxEvent{
			ConversationID: message.ConversationID,
			RecipientRole:  recipientRole,
			Message:        message,
		})
	}
}

func (n *Notifier) publish(ctx context.Context, kind string, channel string, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		observability.RealtimePublishes.WithLabelValues(kind, "encode_error").Inc()
		observability.Logger.ErrorContext(ctx, "realtime encode failed", "channel", channel, "error", err)
		return
	}
	if err := n.rdb.Publish(ctx, channel, encoded).Err(); err != nil {
		observability.RealtimePublishes.WithLabelValues(kind, "error").Inc()
		observability.Logger.ErrorContext(ctx, "realtime publish failed", "channel", channel, "error", err)
		return
	}
	observability.RealtimePublishes.WithLabelValues(kind, "ok").Inc()
}

// Subscription delivers inserts for one conversation until Close is called.
type Subscription struct {
	conversationID int64
	pubsub         *redis.PubSub
	messages       chan models.ChatMessage
	done           chan struct{}
	closeOnce      sync.Once
	closeErr       error
}

func (s *Subscription) Messages() <-chan models.ChatMessage {
	return s.messages
}

// Close releases the Redis subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.pubsub.Close()
	})
	return s.closeErr
}

// SubscribeConversation listens for inserts on one conversation. It returns once Redis has
// confirmed the subscription, so no message published afterwards is missed.
func (n *Notifier) SubscribeConversation(ctx context.Context, conversationID int64) (*Subscription, error) {
	if n.rdb == nil {
		return nil, ErrUnavailable
	}

	pubsub := n.rdb.Subscribe(ctx, ConversationChannel(conversationID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe conversation %d: %w", conversationID, err)
	}

	sub := &Subscription{
		conversationID: conversationID,
		pubsub:         pubsub,
		messages:       make(chan models.ChatMessage, subscriptionBuffer),
		done:           make(chan struct{}),
	}
	go sub.pump(pubsub.Channel())
	return sub, nil
}

func (s *Subscription) pump(ch <-chan *redis.Message) {
	for msg := range ch {
		var message models.ChatMessage
		if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
			observability.RealtimeDrops.WithLabelValues("decode").Inc()
			continue
		}
		if message.ConversationID != s.conversationID {
			observability.RealtimeDrops.WithLabelValues("foreign_conversation").Inc()
			continue
		}

		select {
		case <-s.done:
			return
		case s.messages <- message:
		default:
			observability.RealtimeDrops.WithLabelValues("slow_consumer").Inc()
		}
	}
}

// StartInboxSubscriber listens on every user channel and hands each decoded event to onEvent
// until ctx is cancelled.
func (n *Notifier) StartInboxSubscriber(ctx context.Context, onEvent func(userID int64, event models.InboxEvent)) error {
	if n.rdb == nil {
		return nil
	}

	sub := n.rdb.PSubscribe(ctx, userPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe inbox: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				userID, event, err := decodeInbox(msg.Channel, msg.Payload)
				if err != nil {
					observability.RealtimeDrops.WithLabelValues("decode").Inc()
					observability.Logger.Warn("dropping inbox event", "channel", msg.Channel, "error", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.Error("panic in inbox subscriber",
								"panic", r,
								"stack", string(debug.Stack()),
							)
						}
					}()
					onEvent(userID, event)
				}()
			}
		}
	}()

	return nil
}

func decodeInbox(channel string, payload string) (int64, models.InboxEvent, error) {
	var event models.InboxEvent
	userID, err := strconv.ParseInt(strings.TrimPrefix(channel, userPrefix), 10, 64)
	if err != nil || userID <= 0 {
		return 0, event, fmt.Errorf("invalid user channel %q", channel)
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return 0, event, err
	}
	return userID, event, nil
}
