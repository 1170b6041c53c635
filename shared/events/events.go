// Package events carries ticket and chat notifications from handlers to
// realtime clients, either directly or through Kafka across instances.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
)

// Event is the envelope published for every notification
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CompanyID string          `json:"companyId,omitempty"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an event with a fresh id. payload may be nil.
func New(eventType, companyID, message string, payload interface{}) (Event, error) {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CompanyID: companyID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// Frame is the message clients receive for this event
func (e Event) Frame() realtime.Message {
	msg := realtime.Message{Type: e.Type, Message: e.Message}
	if len(e.Payload) > 0 {
		msg.Data = e.Payload
	}
	return msg
}

// Publisher delivers events to connected clients
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// HubPublisher broadcasts straight into the local hub
type HubPublisher struct {
	hub *realtime.Hub
}

func NewHubPublisher(hub *realtime.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, ev Event) error {
	return p.hub.Broadcast(ev.Frame())
}
