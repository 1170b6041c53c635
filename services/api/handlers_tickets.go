package main

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/audit"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/mailer"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateTicketRequest represents the create ticket request
type CreateTicketRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"required"`
	Type        string `json:"type" binding:"omitempty,oneof=question incident problem feature_request"`
	Source      string `json:"source" binding:"omitempty,oneof=web email chat phone"`
	Priority    string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	ProjectID   string `json:"projectId"`
}

// UpdateTicketRequest represents the update ticket request
type UpdateTicketRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=200"`
	Description *string `json:"description"`
	Type        *string `json:"type" binding:"omitempty,oneof=question incident problem feature_request"`
	Source      *string `json:"source" binding:"omitempty,oneof=web email chat phone"`
	Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Status      *string `json:"status" binding:"omitempty,oneof=open in_progress pending resolved closed"`
}

// AssignTicketRequest names the new assignee. An empty id unassigns.
type AssignTicketRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// TicketList is one page of tickets
type TicketList struct {
	Tickets []models.Ticket `json:"tickets"`
	Total   int64           `json:"total"`
	Page    int64           `json:"page"`
	Limit   int64           `json:"limit"`
}

// TicketStats counts the visible tickets per status
type TicketStats struct {
	Total    int64                         `json:"total"`
	ByStatus map[models.TicketStatus]int64 `json:"byStatus"`
}

// pagination reads ?page and ?limit
func pagination(c *gin.Context) (page, limit int64) {
	page, _ = strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ = strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)), 10, 64)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// visibleTickets is the base filter for the caller: customers only see their own
func visibleTickets(c *gin.Context) store.TicketFilter {
	user := middleware.CurrentUser(c)
	filter := store.TicketFilter{CompanyID: companyOf(c).ID}
	if !user.Role.IsStaff() {
		filter.CreatedBy = &user.ID
	}
	return filter
}

// loadTicket fetches the :id ticket of the current company and checks the
// caller may act on it
func (a *app) loadTicket(c *gin.Context) (*models.Ticket, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	ticket, err := a.store.Tickets.GetByID(c.Request.Context(), companyOf(c).ID, id)
	if err != nil {
		storeError(c, err, "Ticket not found", "Failed to fetch ticket")
		return nil, false
	}
	if !permissions.CanModifyTicket(middleware.CurrentUser(c), ticket) {
		utils.ForbiddenResponse(c, "Access denied to this ticket")
		return nil, false
	}
	return ticket, true
}

func handleListTickets(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := visibleTickets(c)
		if s := models.TicketStatus(c.Query("status")); s != "" {
			if !s.Valid() {
				utils.BadRequestResponse(c, "Invalid status", string(s))
				return
			}
			filter.Status = s
		}
		if p := models.TicketPriority(c.Query("priority")); p != "" {
			if !p.Valid() {
				utils.BadRequestResponse(c, "Invalid priority", string(p))
				return
			}
			filter.Priority = p
		}
		if assigned := c.Query("assignedTo"); assigned != "" {
			var id primitive.ObjectID
			if assigned == "me" {
				id = middleware.CurrentUser(c).ID
			} else {
				parsed, err := primitive.ObjectIDFromHex(assigned)
				if err != nil {
					utils.BadRequestResponse(c, "Invalid id", "assignedTo")
					return
				}
				id = parsed
			}
			filter.AssignedTo = &id
		}

		ctx := c.Request.Context()
		total, err := a.store.Tickets.Count(ctx, filter)
		if err != nil {
			utils.InternalError(c, "Failed to fetch tickets", err)
			return
		}
		page, limit := pagination(c)
		filter.Limit = limit
		filter.Skip = (page - 1) * limit
		tickets, err := a.store.Tickets.List(ctx, filter)
		if err != nil {
			utils.InternalError(c, "Failed to fetch tickets", err)
			return
		}

		utils.OKResponse(c, "Tickets retrieved successfully", TicketList{
			Tickets: tickets,
			Total:   total,
			Page:    page,
			Limit:   limit,
		})
	}
}

// handleCreateTicket numbers and stores a new ticket. When no sequence number
// can be allocated the request fails with 503 rather than guessing one.
func handleCreateTicket(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTicketRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		user := middleware.CurrentUser(c)
		company := companyOf(c)

		projectID, err := parseOptionalID(req.ProjectID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid id", "projectId")
			return
		}
		if projectID != nil {
			if _, err := a.store.Projects.Get(ctx, company.ID, *projectID); err != nil {
				storeError(c, err, "Project not found", "Failed to create ticket")
				return
			}
		}

		ticketID, err := a.allocator.Next(ctx)
		if err != nil {
			logrus.WithError(err).WithField("company_id", company.ID.Hex()).Error("Ticket number allocation failed")
			utils.ServiceUnavailableResponse(c, "Unable to allocate a ticket number, please retry")
			return
		}

		now := a.now()
		ticket := &models.Ticket{
			TicketID:    ticketID,
			Title:       req.Title,
			Description: req.Description,
			Type:        models.TicketType(req.Type),
			Source:      models.TicketSource(req.Source),
			Priority:    models.TicketPriority(req.Priority),
			CreatedBy:   user.ID,
			CompanyID:   company.ID,
			ProjectID:   projectID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		ticket.ApplyDefaults()
		if err := a.store.Tickets.Create(ctx, ticket); err != nil {
			storeError(c, err, "Ticket not found", "Failed to create ticket")
			return
		}

		a.publish(c, realtime.EventTicketCreated, company.ID.Hex(), "New ticket "+ticket.TicketID, ticket)
		if user.Preferences.EmailNotifications {
			a.mail.Send(mailer.TicketCreatedEmail(user.Email, user.Name, ticket.TicketID, ticket.Title))
		}
		utils.CreatedResponse(c, "Ticket created successfully", ticket)
	}
}

func handleTicketStats(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		stats := TicketStats{ByStatus: map[models.TicketStatus]int64{}}
		for _, status := range []models.TicketStatus{
			models.StatusOpen, models.StatusInProgress, models.StatusPending, models.StatusResolved, models.StatusClosed,
		} {
			filter := visibleTickets(c)
			filter.Status = status
			n, err := a.store.Tickets.Count(ctx, filter)
			if err != nil {
				utils.InternalError(c, "Failed to fetch ticket stats", err)
				return
			}
			stats.ByStatus[status] = n
			stats.Total += n
		}
		utils.OKResponse(c, "Ticket stats retrieved successfully", stats)
	}
}

func handleGetTicket(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticket, ok := a.loadTicket(c)
		if !ok {
			return
		}
		utils.OKResponse(c, "Ticket retrieved successfully", ticket)
	}
}

func handleUpdateTicket(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateTicketRequest
		if !bindJSON(c, &req) {
			return
		}
		ticket, ok := a.loadTicket(c)
		if !ok {
			return
		}

		now := a.now()
		if req.Title != nil {
			ticket.Title = *req.Title
		}
		if req.Description != nil {
			ticket.Description = *req.Description
		}
		if req.Type != nil {
			ticket.Type = models.TicketType(*req.Type)
		}
		if req.Source != nil {
			ticket.Source = models.TicketSource(*req.Source)
		}
		if req.Priority != nil {
			ticket.Priority = models.TicketPriority(*req.Priority)
		}
		if req.Status != nil {
			ticket.SetStatus(models.TicketStatus(*req.Status), now)
		}
		ticket.UpdatedAt = now

		if err := a.store.Tickets.Update(c.Request.Context(), ticket); err != nil {
			storeError(c, err, "Ticket not found", "Failed to update ticket")
			return
		}
		a.publish(c, realtime.EventTicketUpdated, ticket.CompanyID.Hex(), "Ticket "+ticket.TicketID+" updated", ticket)
		utils.OKResponse(c, "Ticket updated successfully", ticket)
	}
}

func handleDeleteTicket(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticket, ok := a.loadTicket(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if err := a.store.Tickets.Delete(ctx, ticket.CompanyID, ticket.ID); err != nil {
			storeError(c, err, "Ticket not found", "Failed to delete ticket")
			return
		}
		if err := a.store.Comments.DeleteByTicket(ctx, ticket.CompanyID, ticket.ID); err != nil {
			logrus.WithError(err).WithField("ticket", ticket.TicketID).Warn("Failed to delete ticket comments")
		}
		a.record(c, audit.ActionTicketDeleted, "ticket", ticket.TicketID, nil)
		utils.OKResponse(c, "Ticket deleted successfully", nil)
	}
}

// handleEscalateTicket moves the ticket one level up, to at most level 3
func handleEscalateTicket(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticket, ok := a.loadTicket(c)
		if !ok {
			return
		}
		ticket, err := a.store.Tickets.Escalate(c.Request.Context(), ticket.CompanyID, ticket.ID, a.now())
		if err != nil {
			if errors.Is(err, models.ErrMaxEscalation) {
				utils.BadRequestResponse(c, "Ticket is already at maximum escalation level")
				return
			}
			storeError(c, err, "Ticket not found", "Failed to escalate ticket")
			return
		}
		a.publish(c, realtime.EventTicketUpdated, ticket.CompanyID.Hex(), "Ticket "+ticket.TicketID+" escalated", ticket)
		utils.OKResponse(c, "Ticket escalated successfully", ticket)
	}
}

func handleAssignTicket(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AssignTicketRequest
		if !bindJSON(c, &req) {
			return
		}
		assignee, err := parseOptionalID(req.AssignedTo)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid id", "assignedTo")
			return
		}
		ticket, ok := a.loadTicket(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		if assignee != nil {
			agent, err := a.store.Users.GetByID(ctx, *assignee)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				utils.InternalError(c, "Failed to assign ticket", err)
				return
			}
			if err != nil || agent.CompanyID != ticket.CompanyID || !agent.IsActive || !agent.Role.IsStaff() {
				utils.BadRequestResponse(c, "Assignee must be an active agent of this company")
				return
			}
		}

		ticket.AssignedTo = assignee
		ticket.UpdatedAt = a.now()
		if err := a.store.Tickets.Update(ctx, ticket); err != nil {
			storeError(c, err, "Ticket not found", "Failed to assign ticket")
			return
		}
		a.publish(c, realtime.EventTicketUpdated, ticket.CompanyID.Hex(), "Ticket "+ticket.TicketID+" assigned", ticket)
		utils.OKResponse(c, "Ticket assigned successfully", ticket)
	}
}
