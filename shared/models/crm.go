package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ClientCompany is an organization a tenant supports
type ClientCompany struct {
	Owned    `bson:",inline"`
	Name     string `json:"name" bson:"name" binding:"required"`
	Website  string `json:"website,omitempty" bson:"website,omitempty"`
	Industry string `json:"industry,omitempty" bson:"industry,omitempty"`
	Phone    string `json:"phone,omitempty" bson:"phone,omitempty"`
	Address  string `json:"address,omitempty" bson:"address,omitempty"`
	Notes    string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Contact is a person at a client company
type Contact struct {
	Owned           `bson:",inline"`
	Name            string              `json:"name" bson:"name" binding:"required"`
	Email           string              `json:"email,omitempty" bson:"email,omitempty" binding:"omitempty,email"`
	Phone           string              `json:"phone,omitempty" bson:"phone,omitempty"`
	Position        string              `json:"position,omitempty" bson:"position,omitempty"`
	ClientCompanyID *primitive.ObjectID `json:"clientCompanyId,omitempty" bson:"clientCompanyId,omitempty"`
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

// Project groups tickets and tracked time for a client
type Project struct {
	Owned           `bson:",inline"`
	Name            string              `json:"name" bson:"name" binding:"required"`
	Description     string              `json:"description,omitempty" bson:"description,omitempty"`
	Status          ProjectStatus       `json:"status" bson:"status"`
	ClientCompanyID *primitive.ObjectID `json:"clientCompanyId,omitempty" bson:"clientCompanyId,omitempty"`
	ManagerID       *primitive.ObjectID `json:"managerId,omitempty" bson:"managerId,omitempty"`
}
