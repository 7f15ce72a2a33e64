package chatws

import (
	"errors"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/saeid-a/ToolConnectBack/internal/models"
	"github.com/saeid-a/ToolConnectBack/internal/observability"
)

var ErrTooManyConnections = errors.New("too many open connections for this account")

// Hub tracks every connected client by account and routes inbox events to them.
type Hub struct {
	clients    map[int64]map[*Client]struct{}
	maxPerUser int
	register   chan registration
	unregister chan *Client
	inbox      chan inboxDelivery
}

type registration struct {
	client *Client
	result chan error
}

type inboxDelivery struct {
	userID int64
	event  models.InboxEvent
}

func NewHub(maxPerUser int) *Hub {
	if maxPerUser <= 0 {
		maxPerUser = 5
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		maxPerUser: maxPerUser,
		register:   make(chan registration),
		unregister: make(chan *Client),
		inbox:      make(chan inboxDelivery, 256),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		send:     make(chan []byte, 64),
		commands: make(chan command, 16),
		inbox:    make(chan models.InboxEvent, 32),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case reg := <-h.register:
			reg.result <- h.add(reg.client)
		case client := <-h.unregister:
			h.remove(client)
		case delivery := <-h.inbox:
			h.deliver(delivery)
		}
	}
}

// Register admits the client unless its account already holds the maximum number of connections.
func (h *Hub) Register(client *Client) error {
	result := make(chan error, 1)
	h.register <- registration{client: client, result: result}
	return <-result
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// DeliverInbox queues an inbox event for every connection of the account.
func (h *Hub) DeliverInbox(userID int64, event models.InboxEvent) {
	select {
	case h.inbox <- inboxDelivery{userID: userID, event: event}:
	default:
		observability.RealtimeDrops.WithLabelValues("hub_backlog").Inc()
	}
}

func (h *Hub) add(client *Client) error {
	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	if len(set) >= h.maxPerUser {
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
		return ErrTooManyConnections
	}
	set[client] = struct{}{}
	observability.ActiveSessions.Inc()
	return nil
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		close(client.send)
		observability.ActiveSessions.Dec()
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) deliver(delivery inboxDelivery) {
	for client := range h.clients[delivery.userID] {
		select {
		case client.inbox <- delivery.event:
		default:
			observability.RealtimeDrops.WithLabelValues("slow_consumer").Inc()
		}
	}
}
