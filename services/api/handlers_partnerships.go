package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/audit"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// PartnershipRequest represents a request to partner with another company
type PartnershipRequest struct {
	RequestedCompanyID string `json:"requestedCompanyId" binding:"required"`
	AccessLevel        string `json:"accessLevel" binding:"omitempty,oneof=basic standard full"`
	Message            string `json:"message" binding:"max=1000"`
}

// loadPartnership fetches the :id partnership if the current company is one of its sides
func (a *app) loadPartnership(c *gin.Context) (*models.Partnership, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	p, err := a.store.Partnerships.GetByID(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Partnership not found", "Failed to fetch partnership")
		return nil, false
	}
	if !p.Involves(companyOf(c).ID) {
		utils.NotFoundResponse(c, "Partnership not found")
		return nil, false
	}
	return p, true
}

// approvedPartner returns the partner company id when the partnership is
// approved and grants the permission picked by allowed
func (a *app) approvedPartner(c *gin.Context, allowed func(models.PartnershipPermissions) bool) (primitive.ObjectID, bool) {
	p, ok := a.loadPartnership(c)
	if !ok {
		return primitive.NilObjectID, false
	}
	if p.Status != models.PartnershipApproved || !allowed(p.Permissions) {
		utils.ForbiddenResponse(c, "Partnership does not grant this access")
		return primitive.NilObjectID, false
	}
	return p.Partner(companyOf(c).ID), true
}

func (a *app) savePartnership(c *gin.Context, p *models.Partnership, message string) {
	if err := a.store.Partnerships.Update(c.Request.Context(), p); err != nil {
		storeError(c, err, "Partnership not found", "Failed to update partnership")
		return
	}
	a.record(c, audit.ActionPartnership, "partnership", p.ID.Hex(), map[string]interface{}{"status": string(p.Status)})
	utils.OKResponse(c, message, p)
}

func handleListPartnerships(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := models.PartnershipStatus(c.Query("status"))
		list, err := a.store.Partnerships.ListForCompany(c.Request.Context(), companyOf(c).ID, status)
		if err != nil {
			utils.InternalError(c, "Failed to fetch partnerships", err)
			return
		}
		utils.OKResponse(c, "Partnerships retrieved successfully", list)
	}
}

func handleRequestPartnership(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PartnershipRequest
		if !bindJSON(c, &req) {
			return
		}
		targetID, err := primitive.ObjectIDFromHex(req.RequestedCompanyID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid id", "requestedCompanyId")
			return
		}
		ctx := c.Request.Context()
		company := companyOf(c)
		if targetID == company.ID {
			utils.BadRequestResponse(c, "Cannot create a partnership with your own company")
			return
		}
		target, err := a.store.Companies.GetByID(ctx, targetID)
		if err != nil {
			storeError(c, err, "Company not found", "Failed to request partnership")
			return
		}
		if !target.Usable() {
			utils.BadRequestResponse(c, "Company is not accepting partnerships")
			return
		}

		level := models.AccessLevel(req.AccessLevel)
		if level == "" {
			level = models.AccessBasic
		}
		now := a.now()
		p := &models.Partnership{
			RequestingCompanyID: company.ID,
			RequestedCompanyID:  target.ID,
			Status:              models.PartnershipPending,
			AccessLevel:         level,
			Message:             req.Message,
			RequestedBy:         middleware.CurrentUser(c).ID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := a.store.Partnerships.Create(ctx, p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				utils.ConflictResponse(c, "Partnership already exists")
				return
			}
			utils.InternalError(c, "Failed to request partnership", err)
			return
		}
		a.record(c, audit.ActionPartnership, "partnership", p.ID.Hex(), map[string]interface{}{
			"status": string(p.Status),
			"with":   target.ID.Hex(),
		})
		utils.CreatedResponse(c, "Partnership requested successfully", p)
	}
}

// handleRespondPartnership approves or rejects a pending request. Only the
// requested company may answer.
func handleRespondPartnership(a *app, status models.PartnershipStatus) gin.HandlerFunc {
	message := "Partnership approved successfully"
	if status == models.PartnershipRejected {
		message = "Partnership rejected successfully"
	}
	return func(c *gin.Context) {
		p, ok := a.loadPartnership(c)
		if !ok {
			return
		}
		if p.RequestedCompanyID != companyOf(c).ID {
			utils.ForbiddenResponse(c, "Only the requested company can respond")
			return
		}
		if p.Status != models.PartnershipPending {
			utils.BadRequestResponse(c, "Partnership is not pending")
			return
		}
		p.Respond(status, middleware.CurrentUser(c).ID, a.now())
		a.savePartnership(c, p, message)
	}
}

func handleSuspendPartnership(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := a.loadPartnership(c)
		if !ok {
			return
		}
		if p.Status != models.PartnershipApproved {
			utils.BadRequestResponse(c, "Only approved partnerships can be suspended")
			return
		}
		p.Respond(models.PartnershipSuspended, middleware.CurrentUser(c).ID, a.now())
		a.savePartnership(c, p, "Partnership suspended successfully")
	}
}

func handleDeletePartnership(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := a.loadPartnership(c)
		if !ok {
			return
		}
		if err := a.store.Partnerships.Delete(c.Request.Context(), p.ID); err != nil {
			storeError(c, err, "Partnership not found", "Failed to delete partnership")
			return
		}
		a.record(c, audit.ActionPartnership, "partnership", p.ID.Hex(), map[string]interface{}{"status": "deleted"})
		utils.OKResponse(c, "Partnership deleted successfully", nil)
	}
}

// handlePartnerAgents lists the active staff of the partner company
func handlePartnerAgents(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		partnerID, ok := a.approvedPartner(c, func(p models.PartnershipPermissions) bool { return p.CanSeeAgents })
		if !ok {
			return
		}
		agents, err := a.store.Users.List(c.Request.Context(), store.UserFilter{
			CompanyID:  &partnerID,
			Roles:      staffRoles,
			ActiveOnly: true,
		})
		if err != nil {
			utils.InternalError(c, "Failed to fetch partner agents", err)
			return
		}
		utils.OKResponse(c, "Partner agents retrieved successfully", agents)
	}
}

func handlePartnerTickets(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		partnerID, ok := a.approvedPartner(c, func(p models.PartnershipPermissions) bool { return p.CanViewTickets })
		if !ok {
			return
		}
		page, limit := pagination(c)
		filter := store.TicketFilter{CompanyID: partnerID, Limit: limit, Skip: (page - 1) * limit}
		if status := models.TicketStatus(c.Query("status")); status.Valid() {
			filter.Status = status
		}
		tickets, err := a.store.Tickets.List(c.Request.Context(), filter)
		if err != nil {
			utils.InternalError(c, "Failed to fetch partner tickets", err)
			return
		}
		utils.OKResponse(c, "Partner tickets retrieved successfully", tickets)
	}
}
