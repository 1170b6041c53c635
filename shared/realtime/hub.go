// Package realtime fans ticket and chat events out to connected WebSocket clients
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types pushed to clients
const (
	EventConnected     = "connected"
	EventBroadcast     = "broadcast"
	EventChatMessage   = "chat_message"
	EventTicketCreated = "ticket_created"
	EventTicketUpdated = "ticket_updated"
)

// DefaultClientBuffer is how many undelivered messages a client may queue
// before it is dropped
const DefaultClientBuffer = 64

var ErrHubClosed = errors.New("hub is not running")

// Message is the JSON frame exchanged with clients
type Message struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Client is one registered connection. Send is closed when the hub drops it.
type Client struct {
	ID   string
	send chan []byte
}

// Send yields the frames addressed to this client
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Hub owns the set of connected clients. Only the Run goroutine touches
// the set; everything else talks to it over channels.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}
	bufferSize int
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultClientBuffer
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		bufferSize: bufferSize,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*Client]struct{})
	defer func() {
		// done first, so a client seeing its channel closed can tell shutdown from a drop
		close(h.done)
		for c := range clients {
			close(c.send)
		}
		logrus.Info("Realtime hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			logrus.WithField("client", c.ID).Debug("Realtime client registered")

		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}

		case data := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- data:
				default:
					// slow consumer, drop it rather than stall everyone else
					delete(clients, c)
					close(c.send)
					logrus.WithField("client", c.ID).Warn("Realtime client dropped, send buffer full")
				}
			}

		case reply := <-h.count:
			reply <- len(clients)
		}
	}
}

// Register adds a new client and returns it
func (h *Hub) Register() *Client {
	c := &Client{ID: uuid.NewString(), send: make(chan []byte, h.bufferSize)}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
	return c
}

// Unregister removes c. Removing an unknown or already dropped client is a no-op.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast serializes msg once and queues it for every client, the sender included
func (h *Hub) Broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", msg.Type, err)
	}
	return h.BroadcastRaw(data)
}

// BroadcastRaw queues an already encoded frame for every client
func (h *Hub) BroadcastRaw(data []byte) error {
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Done is closed once the hub has stopped
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
