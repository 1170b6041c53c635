package main

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// CreateCommentRequest represents the create comment request
type CreateCommentRequest struct {
	TicketID   string `json:"ticketId" binding:"required"`
	Content    string `json:"content" binding:"required,max=5000"`
	IsInternal bool   `json:"isInternal"`
}

// UpdateCommentRequest represents the update comment request
type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required,max=5000"`
}

// ticketForComments loads a ticket the caller may see
func (a *app) ticketForComments(c *gin.Context, id primitive.ObjectID) (*models.Ticket, bool) {
	ticket, err := a.store.Tickets.GetByID(c.Request.Context(), companyOf(c).ID, id)
	if err != nil {
		storeError(c, err, "Ticket not found", "Failed to fetch ticket")
		return nil, false
	}
	if !permissions.CanViewTicket(middleware.CurrentUser(c), ticket) {
		utils.ForbiddenResponse(c, "Access denied to this ticket")
		return nil, false
	}
	return ticket, true
}

// handleListComments lists a ticket's comments. Internal notes are only
// returned to staff.
func handleListComments(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := paramID(c, "ticketId")
		if !ok {
			return
		}
		ticket, ok := a.ticketForComments(c, ticketID)
		if !ok {
			return
		}
		includeInternal := middleware.CurrentUser(c).Role.IsStaff()
		comments, err := a.store.Comments.ListByTicket(c.Request.Context(), ticket.CompanyID, ticket.ID, includeInternal)
		if err != nil {
			utils.InternalError(c, "Failed to fetch comments", err)
			return
		}
		utils.OKResponse(c, "Comments retrieved successfully", comments)
	}
}

func handleCreateComment(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCommentRequest
		if !bindJSON(c, &req) {
			return
		}
		ticketID, err := primitive.ObjectIDFromHex(req.TicketID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid id", "ticketId")
			return
		}
		user := middleware.CurrentUser(c)
		if req.IsInternal && !permissions.HasPermission(user.Role, permissions.WriteInternalComments) {
			utils.ForbiddenResponse(c, "Customers cannot create internal comments")
			return
		}
		ticket, ok := a.ticketForComments(c, ticketID)
		if !ok {
			return
		}

		now := a.now()
		comment := &models.Comment{
			Content:    req.Content,
			TicketID:   ticket.ID,
			CreatedBy:  user.ID,
			CompanyID:  ticket.CompanyID,
			IsInternal: req.IsInternal,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := a.store.Comments.Create(c.Request.Context(), comment); err != nil {
			utils.InternalError(c, "Failed to create comment", err)
			return
		}
		if !comment.IsInternal {
			a.publish(c, realtime.EventTicketUpdated, ticket.CompanyID.Hex(), "New comment on "+ticket.TicketID, comment)
		}
		utils.CreatedResponse(c, "Comment created successfully", comment)
	}
}

// handleUpdateComment lets authors edit their comments; managers may edit any
func handleUpdateComment(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateCommentRequest
		if !bindJSON(c, &req) {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		comment, err := a.store.Comments.GetByID(ctx, companyOf(c).ID, id)
		if err != nil {
			storeError(c, err, "Comment not found", "Failed to update comment")
			return
		}
		user := middleware.CurrentUser(c)
		if comment.IsInternal && !user.Role.IsStaff() {
			utils.NotFoundResponse(c, "Comment not found")
			return
		}
		if comment.CreatedBy != user.ID && !permissions.HasPermission(user.Role, permissions.DeleteComments) {
			utils.ForbiddenResponse(c, "You can only edit your own comments")
			return
		}

		comment.Content = req.Content
		comment.UpdatedAt = a.now()
		if err := a.store.Comments.Update(ctx, comment); err != nil {
			storeError(c, err, "Comment not found", "Failed to update comment")
			return
		}
		utils.OKResponse(c, "Comment updated successfully", comment)
	}
}

func handleDeleteComment(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := a.store.Comments.Delete(c.Request.Context(), companyOf(c).ID, id); err != nil {
			storeError(c, err, "Comment not found", "Failed to delete comment")
			return
		}
		utils.OKResponse(c, "Comment deleted successfully", nil)
	}
}
