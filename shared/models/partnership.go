package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Partnership links two companies so their agents can see limited parts of each other
type Partnership struct {
	ID                  primitive.ObjectID     `json:"_id" bson:"_id,omitempty"`
	RequestingCompanyID primitive.ObjectID     `json:"requestingCompanyId" bson:"requestingCompanyId"`
	RequestedCompanyID  primitive.ObjectID     `json:"requestedCompanyId" bson:"requestedCompanyId"`
	Status              PartnershipStatus      `json:"status" bson:"status"`
	AccessLevel         AccessLevel            `json:"accessLevel" bson:"accessLevel"`
	Message             string                 `json:"message,omitempty" bson:"message,omitempty"`
	Permissions         PartnershipPermissions `json:"permissions" bson:"permissions"`
	RequestedBy         primitive.ObjectID     `json:"requestedBy" bson:"requestedBy"`
	RespondedBy         *primitive.ObjectID    `json:"respondedBy,omitempty" bson:"respondedBy,omitempty"`
	RespondedAt         *time.Time             `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
	CreatedAt           time.Time              `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt" bson:"updatedAt"`
}

type PartnershipStatus string

const (
	PartnershipPending   PartnershipStatus = "pending"
	PartnershipApproved  PartnershipStatus = "approved"
	PartnershipRejected  PartnershipStatus = "rejected"
	PartnershipSuspended PartnershipStatus = "suspended"
)

type AccessLevel string

const (
	AccessBasic    AccessLevel = "basic"
	AccessStandard AccessLevel = "standard"
	AccessFull     AccessLevel = "full"
)

func (a AccessLevel) Valid() bool {
	return a == AccessBasic || a == AccessStandard || a == AccessFull
}

// PartnershipPermissions is what the partner company may do
type PartnershipPermissions struct {
	CanSeeAgents     bool `json:"canSeeAgents" bson:"canSeeAgents"`
	CanAssignTickets bool `json:"canAssignTickets" bson:"canAssignTickets"`
	CanViewTickets   bool `json:"canViewTickets" bson:"canViewTickets"`
	CanContactAgents bool `json:"canContactAgents" bson:"canContactAgents"`
}

// PermissionsFor derives the permission set granted by an access level
func PermissionsFor(level AccessLevel) PartnershipPermissions {
	switch level {
	case AccessFull:
		return PartnershipPermissions{CanSeeAgents: true, CanAssignTickets: true, CanViewTickets: true, CanContactAgents: true}
	case AccessStandard:
		return PartnershipPermissions{CanSeeAgents: true, CanViewTickets: true, CanContactAgents: true}
	default:
		return PartnershipPermissions{CanSeeAgents: true}
	}
}

// Involves reports whether companyID is one of the two sides
func (p *Partnership) Involves(companyID primitive.ObjectID) bool {
	return p.RequestingCompanyID == companyID || p.RequestedCompanyID == companyID
}

// Partner returns the other side of the partnership as seen from companyID
func (p *Partnership) Partner(companyID primitive.ObjectID) primitive.ObjectID {
	if p.RequestingCompanyID == companyID {
		return p.RequestedCompanyID
	}
	return p.RequestingCompanyID
}

// Respond records a decision by the requested company. Approval freezes the
// permissions derived from the access level at that moment.
func (p *Partnership) Respond(status PartnershipStatus, by primitive.ObjectID, now time.Time) {
	p.Status = status
	p.RespondedBy = &by
	p.RespondedAt = &now
	p.UpdatedAt = now
	if status == PartnershipApproved {
		p.Permissions = PermissionsFor(p.AccessLevel)
	} else {
		p.Permissions = PartnershipPermissions{}
	}
}
