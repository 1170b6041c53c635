package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Company represents a tenant of the helpdesk
type Company struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name            string             `json:"name" bson:"name"`
	Subdomain       string             `json:"subdomain" bson:"subdomain"`
	Email           string             `json:"email" bson:"email"`
	Plan            Plan               `json:"plan" bson:"plan"`
	Features        Features           `json:"features" bson:"features"`
	Active          bool               `json:"active" bson:"active"`
	Suspended       bool               `json:"suspended" bson:"suspended"`
	SuspendedReason string             `json:"suspendedReason,omitempty" bson:"suspendedReason,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Plan is the billing plan of a company
type Plan string

const (
	PlanFree         Plan = "free"
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Valid reports whether p is a known plan
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanProfessional, PlanEnterprise:
		return true
	}
	return false
}

// Features holds the plan-derived seats, ceilings and feature flags of a company.
// A zero MaxAgents or TicketVolume means unlimited.
type Features struct {
	MaxAgents      int  `json:"maxAgents" bson:"maxAgents"`
	TicketVolume   int  `json:"ticketVolume" bson:"ticketVolume"`
	LiveChat       bool `json:"liveChat" bson:"liveChat"`
	Partnerships   bool `json:"partnerships" bson:"partnerships"`
	Projects       bool `json:"projects" bson:"projects"`
	TimeTracking   bool `json:"timeTracking" bson:"timeTracking"`
	CustomBranding bool `json:"customBranding" bson:"customBranding"`
	APIAccess      bool `json:"apiAccess" bson:"apiAccess"`
}

// Feature names a boolean flag inside Features
type Feature string

const (
	FeatureLiveChat       Feature = "liveChat"
	FeaturePartnerships   Feature = "partnerships"
	FeatureProjects       Feature = "projects"
	FeatureTimeTracking   Feature = "timeTracking"
	FeatureCustomBranding Feature = "customBranding"
	FeatureAPIAccess      Feature = "apiAccess"
)

// Enabled reports whether the flag is switched on. Unknown flags are off.
func (f Features) Enabled(flag Feature) bool {
	switch flag {
	case FeatureLiveChat:
		return f.LiveChat
	case FeaturePartnerships:
		return f.Partnerships
	case FeatureProjects:
		return f.Projects
	case FeatureTimeTracking:
		return f.TimeTracking
	case FeatureCustomBranding:
		return f.CustomBranding
	case FeatureAPIAccess:
		return f.APIAccess
	}
	return false
}

var planFeatures = map[Plan]Features{
	PlanFree: {
		MaxAgents:    2,
		TicketVolume: 100,
	},
	PlanStarter: {
		MaxAgents:    5,
		TicketVolume: 1000,
		LiveChat:     true,
	},
	PlanProfessional: {
		MaxAgents:    20,
		TicketVolume: 10000,
		LiveChat:     true,
		Partnerships: true,
		Projects:     true,
		TimeTracking: true,
	},
	PlanEnterprise: {
		LiveChat:       true,
		Partnerships:   true,
		Projects:       true,
		TimeTracking:   true,
		CustomBranding: true,
		APIAccess:      true,
	},
}

// FeaturesForPlan returns the feature set a plan grants. Unknown plans get the free tier.
func FeaturesForPlan(p Plan) Features {
	if f, ok := planFeatures[p]; ok {
		return f
	}
	return planFeatures[PlanFree]
}

// ApplyPlan switches the company to p and resets its features
func (c *Company) ApplyPlan(p Plan) {
	c.Plan = p
	c.Features = FeaturesForPlan(p)
}

// Usable reports whether requests may run in this company's context
func (c *Company) Usable() bool {
	return c.Active && !c.Suspended
}
