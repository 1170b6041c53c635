package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Owned is the common part of simple company-owned records that are
// soft-deleted rather than removed.
type Owned struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	CompanyID primitive.ObjectID `json:"companyId" bson:"companyId"`
	IsDeleted bool               `json:"-" bson:"isDeleted"`
	DeletedAt *time.Time         `json:"-" bson:"deletedAt,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Record is implemented by pointers to types embedding Owned
type Record interface {
	RecordID() primitive.ObjectID
	SetRecordID(id primitive.ObjectID)
	OwnerID() primitive.ObjectID
	SetOwner(companyID primitive.ObjectID)
	Touch(now time.Time)
	MarkDeleted(now time.Time)
	Deleted() bool
}

func (o *Owned) RecordID() primitive.ObjectID { return o.ID }

func (o *Owned) SetRecordID(id primitive.ObjectID) { o.ID = id }

func (o *Owned) OwnerID() primitive.ObjectID { return o.CompanyID }

func (o *Owned) SetOwner(companyID primitive.ObjectID) { o.CompanyID = companyID }

// Touch stamps UpdatedAt, and CreatedAt on first save
func (o *Owned) Touch(now time.Time) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
}

func (o *Owned) MarkDeleted(now time.Time) {
	o.IsDeleted = true
	o.DeletedAt = &now
	o.UpdatedAt = now
}

func (o *Owned) Deleted() bool { return o.IsDeleted }
