// Package devtools bridges one or more interpreters to a websocket-based
// inspector: every (event, state) pair a service produces is fanned out to
// whichever browser clients are watching that service's id.
package devtools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kandev/hsm/internal/hsmlog"
)

// Message is the wire shape pushed to a connected inspector client.
type Message struct {
	ServiceID string `json:"serviceId"`
	Type      string `json:"type"` // "init" or "send"
	EventType string `json:"eventType,omitempty"`
	Value     any    `json:"value"`
	Context   any    `json:"context"`
}

// Client is one connected inspector: a websocket plus the set of service
// ids it has subscribed to.
type Client struct {
	ID         string
	conn       *websocket.Conn
	serviceIDs map[string]bool
	send       chan []byte
	hub        *Hub
	mu         sync.RWMutex
	logger     *hsmlog.Logger
}

// NewClient wraps conn as a hub-managed client.
func NewClient(id string, conn *websocket.Conn, hub *Hub, log *hsmlog.Logger) *Client {
	return &Client{
		ID:         id,
		conn:       conn,
		serviceIDs: make(map[string]bool),
		send:       make(chan []byte, 256),
		hub:        hub,
		logger:     log,
	}
}

// WritePump drains c.send onto the websocket connection until it is closed.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger.Warn("devtools client write failed", zap.String("client_id", c.ID), zap.Error(err))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Hub fans out broadcast messages to whichever clients subscribed to the
// originating service id. Grounded on the same register/unregister/
// broadcast channel loop the reference host uses for its task-stream hub.
type Hub struct {
	clients        map[*Client]bool
	serviceClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu     sync.RWMutex
	logger *hsmlog.Logger
}

type broadcastMessage struct {
	serviceID string
	message   *Message
}

// NewHub constructs an idle Hub; call Run to start its processing loop.
func NewHub(log *hsmlog.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		serviceClients: make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *broadcastMessage, 256),
		logger:         log,
	}
}

// Run processes register/unregister/broadcast events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			h.serviceClients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for id := range client.serviceIDs {
					if clients, ok := h.serviceClients[id]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.serviceClients, id)
						}
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := h.serviceClients[msg.serviceID]
			h.mu.RUnlock()
			if len(clients) == 0 {
				continue
			}

			data, err := json.Marshal(msg.message)
			if err != nil {
				h.logger.Error("failed to marshal devtools message", zap.Error(err))
				continue
			}

			for client := range clients {
				select {
				case client.send <- data:
				default:
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					delete(clients, client)
					h.mu.Unlock()
				}
			}
		}
	}
}

// Register admits client to the hub.
func (h *Hub) Register(client *Client) { h.register <- client }

// Unregister removes client from the hub.
func (h *Hub) Unregister(client *Client) { h.unregister <- client }

// Subscribe attaches client to updates for serviceID.
func (h *Hub) Subscribe(client *Client, serviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.mu.Lock()
	client.serviceIDs[serviceID] = true
	client.mu.Unlock()
	if _, ok := h.serviceClients[serviceID]; !ok {
		h.serviceClients[serviceID] = make(map[*Client]bool)
	}
	h.serviceClients[serviceID][client] = true
}

// Broadcast enqueues msg for delivery to serviceID's subscribers.
func (h *Hub) Broadcast(serviceID string, msg *Message) {
	h.broadcast <- &broadcastMessage{serviceID: serviceID, message: msg}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
