package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// StartConversationRequest names the other participant: customers pass an
// agent, staff pass a customer
type StartConversationRequest struct {
	AgentID string `json:"agentId"`
	UserID  string `json:"userId"`
}

// SendMessageRequest represents a chat message
type SendMessageRequest struct {
	Text string `json:"text" binding:"required,max=5000"`
}

// loadConversation fetches a conversation the caller takes part in
func (a *app) loadConversation(c *gin.Context, id primitive.ObjectID) (*models.Conversation, bool) {
	conv, err := a.store.Conversations.GetByID(c.Request.Context(), companyOf(c).ID, id)
	if err != nil {
		storeError(c, err, "Conversation not found", "Failed to fetch conversation")
		return nil, false
	}
	user := middleware.CurrentUser(c)
	if !conv.HasParticipant(user.ID) && user.Role != models.RoleAdmin {
		utils.ForbiddenResponse(c, "Access denied to this conversation")
		return nil, false
	}
	return conv, true
}

// loadMessage fetches the :id message and its conversation
func (a *app) loadMessage(c *gin.Context) (*models.Message, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	msg, err := a.store.Messages.GetByID(c.Request.Context(), companyOf(c).ID, id)
	if err != nil {
		storeError(c, err, "Message not found", "Failed to fetch message")
		return nil, false
	}
	if _, ok := a.loadConversation(c, msg.ConversationID); !ok {
		return nil, false
	}
	return msg, true
}

func handleListConversations(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, err := a.store.Conversations.ListForParticipant(c.Request.Context(), companyOf(c).ID, middleware.CurrentUser(c).ID)
		if err != nil {
			utils.InternalError(c, "Failed to fetch conversations", err)
			return
		}
		utils.OKResponse(c, "Conversations retrieved successfully", convs)
	}
}

// handleStartConversation returns the existing conversation between the two
// participants or opens a new one
func handleStartConversation(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartConversationRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		user := middleware.CurrentUser(c)
		company := companyOf(c)

		var userID, agentID primitive.ObjectID
		var otherHex string
		if user.Role.IsStaff() {
			agentID, otherHex = user.ID, req.UserID
		} else {
			userID, otherHex = user.ID, req.AgentID
		}
		otherID, err := primitive.ObjectIDFromHex(otherHex)
		if err != nil {
			utils.BadRequestResponse(c, "A valid participant id is required")
			return
		}
		other, err := a.store.Users.GetByID(ctx, otherID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			utils.InternalError(c, "Failed to start conversation", err)
			return
		}
		if err != nil || other.CompanyID != company.ID || !other.IsActive || other.Role.IsStaff() == user.Role.IsStaff() {
			utils.BadRequestResponse(c, "Participant not found in this company")
			return
		}
		if user.Role.IsStaff() {
			userID = other.ID
		} else {
			agentID = other.ID
		}

		existing, err := a.store.Conversations.FindByParticipants(ctx, company.ID, userID, agentID)
		if err == nil {
			utils.OKResponse(c, "Conversation retrieved successfully", existing)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			utils.InternalError(c, "Failed to start conversation", err)
			return
		}

		conv := &models.Conversation{
			CompanyID: company.ID,
			UserID:    userID,
			AgentID:   agentID,
			CreatedAt: a.now(),
		}
		if err := a.store.Conversations.Create(ctx, conv); err != nil {
			utils.InternalError(c, "Failed to start conversation", err)
			return
		}
		utils.CreatedResponse(c, "Conversation created successfully", conv)
	}
}

func handleListMessages(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		conv, ok := a.loadConversation(c, id)
		if !ok {
			return
		}
		msgs, err := a.store.Messages.ListByConversation(c.Request.Context(), conv.CompanyID, conv.ID, middleware.CurrentUser(c).ID)
		if err != nil {
			utils.InternalError(c, "Failed to fetch messages", err)
			return
		}
		utils.OKResponse(c, "Messages retrieved successfully", msgs)
	}
}

// handleSendMessage stores a message and pushes it to connected clients
func handleSendMessage(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendMessageRequest
		if !bindJSON(c, &req) {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		conv, ok := a.loadConversation(c, id)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		user := middleware.CurrentUser(c)

		senderType := models.SenderUser
		if user.ID == conv.AgentID {
			senderType = models.SenderAgent
		}
		now := a.now()
		msg := &models.Message{
			ConversationID: conv.ID,
			CompanyID:      conv.CompanyID,
			Text:           req.Text,
			Sender:         models.Sender{ID: user.ID, Type: senderType},
			ReadBy:         []models.ReadReceipt{{UserID: user.ID, ReadAt: now}},
			DeletedFor:     []primitive.ObjectID{},
			CreatedAt:      now,
		}
		if err := a.store.Messages.Create(ctx, msg); err != nil {
			utils.InternalError(c, "Failed to send message", err)
			return
		}

		conv.LastMessage = &msg.ID
		conv.LastMessageAt = &now
		if err := a.store.Conversations.Update(ctx, conv); err != nil {
			logrus.WithError(err).WithField("conversation", conv.ID.Hex()).Warn("Failed to update last message")
		}

		a.publish(c, realtime.EventChatMessage, conv.CompanyID.Hex(), msg.Text, msg)
		utils.CreatedResponse(c, "Message sent successfully", msg)
	}
}

func handleMarkMessageRead(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		msg, ok := a.loadMessage(c)
		if !ok {
			return
		}
		user := middleware.CurrentUser(c)
		if err := a.store.Messages.MarkRead(c.Request.Context(), msg.CompanyID, msg.ID, user.ID, a.now()); err != nil {
			storeError(c, err, "Message not found", "Failed to mark message as read")
			return
		}
		utils.OKResponse(c, "Message marked as read", nil)
	}
}

// handleDeleteMessage hides the message for the caller only
func handleDeleteMessage(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		msg, ok := a.loadMessage(c)
		if !ok {
			return
		}
		user := middleware.CurrentUser(c)
		if err := a.store.Messages.DeleteFor(c.Request.Context(), msg.CompanyID, msg.ID, user.ID); err != nil {
			storeError(c, err, "Message not found", "Failed to delete message")
			return
		}
		utils.OKResponse(c, "Message deleted", nil)
	}
}
