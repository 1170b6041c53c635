package main

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/audit"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// CreateCompanyRequest represents the create company request (admin only)
type CreateCompanyRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	Subdomain string `json:"subdomain" binding:"required,subdomain"`
	Email     string `json:"email" binding:"required,email"`
	Plan      string `json:"plan" binding:"omitempty,oneof=free starter professional enterprise"`
}

// UpdateCompanyRequest represents the update company request
type UpdateCompanyRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=100"`
	Email *string `json:"email" binding:"omitempty,email"`
}

// SuspendCompanyRequest carries an optional reason
type SuspendCompanyRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ChangePlanRequest represents the plan change request
type ChangePlanRequest struct {
	Plan string `json:"plan" binding:"required,oneof=free starter professional enterprise"`
}

// loadCompany fetches the :id company. Non-admins may only reach their own.
func (a *app) loadCompany(c *gin.Context) (*models.Company, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	user := middleware.CurrentUser(c)
	if user.Role != models.RoleAdmin && user.CompanyID != id {
		utils.ForbiddenResponse(c, "Access denied to this company")
		return nil, false
	}
	company, err := a.store.Companies.GetByID(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "Company not found", "Failed to fetch company")
		return nil, false
	}
	return company, true
}

func (a *app) saveCompany(c *gin.Context, company *models.Company, message string) bool {
	company.UpdatedAt = a.now()
	if err := a.store.Companies.Update(c.Request.Context(), company); err != nil {
		storeError(c, err, "Company not found", "Failed to update company")
		return false
	}
	utils.OKResponse(c, message, company)
	return true
}

func handleCurrentCompany(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.OKResponse(c, "Company retrieved successfully", companyOf(c))
	}
}

func handleListCompanies(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		companies, err := a.store.Companies.List(c.Request.Context())
		if err != nil {
			utils.InternalError(c, "Failed to fetch companies", err)
			return
		}
		utils.OKResponse(c, "Companies retrieved successfully", companies)
	}
}

func handleCreateCompany(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCompanyRequest
		if !bindJSON(c, &req) {
			return
		}
		plan := models.Plan(req.Plan)
		if plan == "" {
			plan = models.PlanFree
		}

		now := a.now()
		company := &models.Company{
			Name:      req.Name,
			Subdomain: strings.ToLower(req.Subdomain),
			Email:     models.NormalizeEmail(req.Email),
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		company.ApplyPlan(plan)
		if err := a.store.Companies.Create(c.Request.Context(), company); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				utils.ConflictResponse(c, "Subdomain is already taken")
				return
			}
			utils.InternalError(c, "Failed to create company", err)
			return
		}
		a.record(c, audit.ActionCompanyCreated, "company", company.ID.Hex(), map[string]interface{}{"plan": string(plan)})
		utils.CreatedResponse(c, "Company created successfully", company)
	}
}

func handleGetCompany(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		company, ok := a.loadCompany(c)
		if !ok {
			return
		}
		utils.OKResponse(c, "Company retrieved successfully", company)
	}
}

func handleUpdateCompany(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateCompanyRequest
		if !bindJSON(c, &req) {
			return
		}
		company, ok := a.loadCompany(c)
		if !ok {
			return
		}
		if req.Name != nil {
			company.Name = *req.Name
		}
		if req.Email != nil {
			company.Email = models.NormalizeEmail(*req.Email)
		}
		a.saveCompany(c, company, "Company updated successfully")
	}
}

func handleSuspendCompany(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SuspendCompanyRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		company, ok := a.loadCompany(c)
		if !ok {
			return
		}
		company.Suspended = true
		company.SuspendedReason = req.Reason
		if a.saveCompany(c, company, "Company suspended successfully") {
			a.record(c, audit.ActionCompanySuspend, "company", company.ID.Hex(), map[string]interface{}{"reason": req.Reason})
		}
	}
}

func handleActivateCompany(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		company, ok := a.loadCompany(c)
		if !ok {
			return
		}
		company.Active = true
		company.Suspended = false
		company.SuspendedReason = ""
		if a.saveCompany(c, company, "Company activated successfully") {
			a.record(c, audit.ActionCompanyActivate, "company", company.ID.Hex(), nil)
		}
	}
}

// handleChangePlan switches the plan and rederives the feature set
func handleChangePlan(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePlanRequest
		if !bindJSON(c, &req) {
			return
		}
		company, ok := a.loadCompany(c)
		if !ok {
			return
		}
		previous := company.Plan
		company.ApplyPlan(models.Plan(req.Plan))
		if a.saveCompany(c, company, "Company plan updated successfully") {
			a.record(c, audit.ActionCompanyPlan, "company", company.ID.Hex(), map[string]interface{}{
				"from": string(previous),
				"to":   req.Plan,
			})
		}
	}
}
