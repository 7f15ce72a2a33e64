package chatws

import (
	"context"
	"encoding/json"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/saeid-a/ToolConnectBack/internal/messaging"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
)

// Client is one WebSocket connection. Its session is only touched from Serve's loop.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   int64
	send     chan []byte
	commands chan command
	inbox    chan models.InboxEvent
	done     chan struct{}
}

type command struct {
	Type           string `json:"type"`
	Role           string `json:"role,omitempty"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	CounterpartID  int64  `json:"counterpart_id,omitempty"`
	Text           string `json:"text,omitempty"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}

// Emit queues an event for the socket, dropping it if the client is not keeping up.
func (c *Client) Emit(event messaging.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		observability.Logger.Error("encode session event", "type", event.Type, "error", err)
		return
	}
	select {
	case c.send <- payload:
	default:
		observability.RealtimeDrops.WithLabelValues("slow_consumer").Inc()
	}
}

// Serve runs the session until the socket closes. It must be called from the WebSocket handler
// goroutine after Register succeeded.
func (c *Client) Serve(ctx context.Context, backend messaging.Backend, feed messaging.Feed, preferred models.Role) {
	ctx, cancel := context.WithCancel(observability.WithUserID(ctx, c.userID))
	session := messaging.NewSession(c.userID, backend, feed, c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.WritePump()
	}()
	go c.ReadPump()

	defer func() {
		cancel()
		close(c.done)
		session.Close()
		c.hub.Unregister(c)
		<-writerDone
	}()

	_ = session.Start(ctx, preferred)

	for {
		select {
		case cmd, ok := <-c.commands:
			if !ok {
				return
			}
			c.dispatch(ctx, session, cmd)
		case event := <-c.inbox:
			session.HandleInbox(ctx, event)
		case message := <-session.Live():
			session.HandleRealtime(ctx, message)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, session *messaging.Session, cmd command) {
	switch cmd.Type {
	case "switch_role":
		role, ok := models.ParseRole(cmd.Role)
		if !ok {
			c.emitError("invalid role")
			return
		}
		_ = session.SwitchRole(ctx, role)
	case "refresh":
		session.Refresh(ctx)
	case "select":
		if cmd.ConversationID <= 0 {
			c.emitError("invalid conversation id")
			return
		}
		_ = session.Select(ctx, cmd.ConversationID)
	case "open_counterpart":
		if cmd.CounterpartID <= 0 {
			c.emitError("invalid counterpart id")
			return
		}
		_ = session.OpenCounterpart(ctx, cmd.CounterpartID)
	case "send":
		_ = session.Send(ctx, cmd.Text, cmd.CorrelationID, nil)
	case "close_thread":
		session.CloseThread()
	case "invalid":
		c.emitError("invalid message payload")
	default:
		c.emitError("unsupported message type")
	}
}

func (c *Client) ReadPump() {
	defer close(c.commands)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming command
		if err := json.Unmarshal(payload, &incoming); err != nil {
			incoming = command{Type: "invalid"}
		}
		select {
		case c.commands <- incoming:
		case <-c.done:
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) emitError(message string) {
	c.Emit(messaging.Event{Type: messaging.EventError, Payload: messaging.ErrorPayload{Message: message}})
}
