package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxEscalationLevel is the top of the escalation ladder
const MaxEscalationLevel = 3

var ErrMaxEscalation = errors.New("ticket is already at maximum escalation level")

// Ticket represents a support request
type Ticket struct {
	ID              primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	TicketID        string              `json:"ticketId" bson:"ticketId"`
	Title           string              `json:"title" bson:"title"`
	Description     string              `json:"description" bson:"description"`
	Type            TicketType          `json:"type" bson:"type"`
	Source          TicketSource        `json:"source" bson:"source"`
	Priority        TicketPriority      `json:"priority" bson:"priority"`
	Status          TicketStatus        `json:"status" bson:"status"`
	EscalationLevel int                 `json:"escalationLevel" bson:"escalationLevel"`
	CreatedBy       primitive.ObjectID  `json:"createdBy" bson:"createdBy"`
	AssignedTo      *primitive.ObjectID `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
	CompanyID       primitive.ObjectID  `json:"companyId" bson:"companyId"`
	ProjectID       *primitive.ObjectID `json:"projectId,omitempty" bson:"projectId,omitempty"`
	ResolvedAt      *time.Time          `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt" bson:"updatedAt"`
}

type TicketType string

const (
	TicketTypeQuestion       TicketType = "question"
	TicketTypeIncident       TicketType = "incident"
	TicketTypeProblem        TicketType = "problem"
	TicketTypeFeatureRequest TicketType = "feature_request"
)

type TicketSource string

const (
	TicketSourceWeb   TicketSource = "web"
	TicketSourceEmail TicketSource = "email"
	TicketSourceChat  TicketSource = "chat"
	TicketSourcePhone TicketSource = "phone"
)

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusPending    TicketStatus = "pending"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeQuestion, TicketTypeIncident, TicketTypeProblem, TicketTypeFeatureRequest:
		return true
	}
	return false
}

func (s TicketSource) Valid() bool {
	switch s {
	case TicketSourceWeb, TicketSourceEmail, TicketSourceChat, TicketSourcePhone:
		return true
	}
	return false
}

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusPending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// ApplyDefaults fills in enum fields left empty by the caller
func (t *Ticket) ApplyDefaults() {
	if t.Type == "" {
		t.Type = TicketTypeQuestion
	}
	if t.Source == "" {
		t.Source = TicketSourceWeb
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.EscalationLevel == 0 {
		t.EscalationLevel = 1
	}
}

// Escalate raises the escalation level by one. At the top level it
// returns ErrMaxEscalation and leaves the ticket untouched.
func (t *Ticket) Escalate(now time.Time) error {
	if t.EscalationLevel >= MaxEscalationLevel {
		return ErrMaxEscalation
	}
	t.EscalationLevel++
	t.UpdatedAt = now
	return nil
}

// SetStatus changes the status and keeps ResolvedAt in step with it
func (t *Ticket) SetStatus(s TicketStatus, now time.Time) {
	t.Status = s
	if s == StatusResolved || s == StatusClosed {
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
	} else {
		t.ResolvedAt = nil
	}
}
