package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/audit"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// CreateUserRequest represents a manager provisioning a user
type CreateUserRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=company_manager support_agent customer"`
}

// UpdateUserRequest represents the update user request
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=100"`
	Role     *string `json:"role" binding:"omitempty,oneof=company_manager support_agent customer"`
	IsActive *bool   `json:"isActive"`
}

// staffRoles hold agent seats
var staffRoles = []models.Role{models.RoleCompanyManager, models.RoleSupportAgent}

func holdsSeat(u *models.User) bool {
	return u.IsActive && (u.Role == models.RoleCompanyManager || u.Role == models.RoleSupportAgent)
}

// checkSeat answers 402 when the company cannot take another staff member
func (a *app) checkSeat(c *gin.Context) bool {
	ok, err := a.features.AgentSeatsAvailable(c.Request.Context(), companyOf(c))
	if err != nil {
		utils.InternalError(c, "Failed to check agent seats", err)
		return false
	}
	if !ok {
		utils.ErrorResponse(c, http.StatusPaymentRequired, "Feature not available on current plan", "maxAgents")
		return false
	}
	return true
}

// loadCompanyUser fetches the :id user and makes sure it belongs to the current company
func (a *app) loadCompanyUser(c *gin.Context) (*models.User, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	user, err := a.store.Users.GetByID(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "User not found", "Failed to fetch user")
		return nil, false
	}
	if user.CompanyID != companyOf(c).ID {
		utils.NotFoundResponse(c, "User not found")
		return nil, false
	}
	return user, true
}

func handleListUsers(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := companyOf(c).ID
		filter := store.UserFilter{CompanyID: &companyID}
		if role := models.Role(c.Query("role")); role != "" {
			if !role.Valid() {
				utils.BadRequestResponse(c, "Invalid role", string(role))
				return
			}
			filter.Roles = []models.Role{role}
		}
		page, limit := pagination(c)
		filter.Limit = limit
		filter.Skip = (page - 1) * limit

		users, err := a.store.Users.List(c.Request.Context(), filter)
		if err != nil {
			utils.InternalError(c, "Failed to fetch users", err)
			return
		}
		utils.OKResponse(c, "Users retrieved successfully", users)
	}
}

// handleListAgents lists the active staff a customer can talk to
func handleListAgents(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := companyOf(c).ID
		agents, err := a.store.Users.List(c.Request.Context(), store.UserFilter{
			CompanyID:  &companyID,
			Roles:      staffRoles,
			ActiveOnly: true,
		})
		if err != nil {
			utils.InternalError(c, "Failed to fetch agents", err)
			return
		}
		utils.OKResponse(c, "Agents retrieved successfully", agents)
	}
}

func handleCreateUser(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if !bindJSON(c, &req) {
			return
		}
		role := models.Role(req.Role)
		if role.IsStaff() && !a.checkSeat(c) {
			return
		}

		now := a.now()
		user := &models.User{
			Name:            req.Name,
			Email:           models.NormalizeEmail(req.Email),
			Role:            role,
			CompanyID:       companyOf(c).ID,
			IsActive:        true,
			IsEmailVerified: true,
			Preferences:     models.DefaultPreferences(),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := user.SetPassword(req.Password); err != nil {
			utils.BadRequestResponse(c, "Invalid password", err.Error())
			return
		}
		if err := a.store.Users.Create(c.Request.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				utils.BadRequestResponse(c, "User already exists")
				return
			}
			utils.InternalError(c, "Failed to create user", err)
			return
		}

		a.record(c, audit.ActionUserCreated, "user", user.ID.Hex(), map[string]interface{}{"role": req.Role})
		utils.CreatedResponse(c, "User created successfully", user)
	}
}

func handleGetUser(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.loadCompanyUser(c)
		if !ok {
			return
		}
		utils.OKResponse(c, "User retrieved successfully", user)
	}
}

func handleUpdateUser(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateUserRequest
		if !bindJSON(c, &req) {
			return
		}
		user, ok := a.loadCompanyUser(c)
		if !ok {
			return
		}
		current := middleware.CurrentUser(c)
		if user.Role == models.RoleAdmin && current.Role != models.RoleAdmin {
			utils.ForbiddenResponse(c, "Insufficient permissions")
			return
		}
		if user.ID == current.ID && (req.Role != nil || req.IsActive != nil) {
			utils.BadRequestResponse(c, "You cannot change your own role or status")
			return
		}

		hadSeat := holdsSeat(user)
		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Role != nil {
			user.Role = models.Role(*req.Role)
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if !hadSeat && holdsSeat(user) && !a.checkSeat(c) {
			return
		}

		if err := a.store.Users.Update(c.Request.Context(), user); err != nil {
			storeError(c, err, "User not found", "Failed to update user")
			return
		}
		utils.OKResponse(c, "User updated successfully", user)
	}
}

// handleDeleteUser disables the account; users are never removed
func handleDeleteUser(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.loadCompanyUser(c)
		if !ok {
			return
		}
		current := middleware.CurrentUser(c)
		if user.ID == current.ID {
			utils.BadRequestResponse(c, "You cannot delete your own account")
			return
		}
		if user.Role == models.RoleAdmin && current.Role != models.RoleAdmin {
			utils.ForbiddenResponse(c, "Insufficient permissions")
			return
		}

		user.IsActive = false
		if err := a.store.Users.Update(c.Request.Context(), user); err != nil {
			storeError(c, err, "User not found", "Failed to delete user")
			return
		}
		a.record(c, audit.ActionUserDisabled, "user", user.ID.Hex(), nil)
		utils.OKResponse(c, "User deactivated successfully", nil)
	}
}
