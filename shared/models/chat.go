package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a chat thread between a customer and an agent
type Conversation struct {
	ID            primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	CompanyID     primitive.ObjectID  `json:"companyId" bson:"companyId"`
	UserID        primitive.ObjectID  `json:"userId" bson:"userId"`
	AgentID       primitive.ObjectID  `json:"agentId" bson:"agentId"`
	LastMessage   *primitive.ObjectID `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	LastMessageAt *time.Time          `json:"lastMessageAt,omitempty" bson:"lastMessageAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt" bson:"createdAt"`
}

// HasParticipant reports whether id is the user or the agent of the conversation
func (c *Conversation) HasParticipant(id primitive.ObjectID) bool {
	return c.UserID == id || c.AgentID == id
}

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAgent SenderType = "agent"
)

// Sender identifies who wrote a message
type Sender struct {
	ID   primitive.ObjectID `json:"id" bson:"id"`
	Type SenderType         `json:"type" bson:"type"`
}

// ReadReceipt records when a participant read a message
type ReadReceipt struct {
	UserID primitive.ObjectID `json:"userId" bson:"userId"`
	ReadAt time.Time          `json:"readAt" bson:"readAt"`
}

// Message is one chat line. Ordering is by CreatedAt only.
type Message struct {
	ID             primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID   `json:"conversationId" bson:"conversationId"`
	CompanyID      primitive.ObjectID   `json:"companyId" bson:"companyId"`
	Text           string               `json:"text" bson:"text"`
	Sender         Sender               `json:"sender" bson:"sender"`
	ReadBy         []ReadReceipt        `json:"readBy" bson:"readBy"`
	DeletedFor     []primitive.ObjectID `json:"deletedFor" bson:"deletedFor"`
	CreatedAt      time.Time            `json:"createdAt" bson:"createdAt"`
}

// ReadByUser reports whether id already has a read receipt
func (m *Message) ReadByUser(id primitive.ObjectID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == id {
			return true
		}
	}
	return false
}

// DeletedForUser reports whether id removed this message from its view
func (m *Message) DeletedForUser(id primitive.ObjectID) bool {
	for _, d := range m.DeletedFor {
		if d == id {
			return true
		}
	}
	return false
}
