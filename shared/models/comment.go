package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is a reply or an agent-only note on a ticket
type Comment struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Content    string             `json:"content" bson:"content"`
	TicketID   primitive.ObjectID `json:"ticketId" bson:"ticketId"`
	CreatedBy  primitive.ObjectID `json:"createdBy" bson:"createdBy"`
	CompanyID  primitive.ObjectID `json:"companyId" bson:"companyId"`
	IsInternal bool               `json:"isInternal" bson:"isInternal"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updatedAt"`
}
