// Package store declares the persistence boundary of the helpdesk. Every
// method touching a tenant-owned record takes the owning company id and
// filters on it, so a handler cannot read across tenants by forgetting a
// where clause.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// UserFilter narrows user listings. Zero fields are ignored.
type UserFilter struct {
	CompanyID  *primitive.ObjectID
	Roles      []models.Role
	ActiveOnly bool
	Limit      int64
	Skip       int64
}

// TicketFilter narrows ticket listings of one company. Zero fields are ignored.
type TicketFilter struct {
	CompanyID    primitive.ObjectID
	Status       models.TicketStatus
	Priority     models.TicketPriority
	AssignedTo   *primitive.ObjectID
	CreatedBy    *primitive.ObjectID
	CreatedAfter *time.Time
	Limit        int64
	Skip         int64
}

type Users interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	Count(ctx context.Context, filter UserFilter) (int64, error)
	Update(ctx context.Context, user *models.User) error
}

type Companies interface {
	Create(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Company, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Company, error)
	List(ctx context.Context) ([]models.Company, error)
	Update(ctx context.Context, company *models.Company) error
	// Delete removes a company outright. Only used to undo a registration
	// whose manager account could not be created.
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Tickets interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, companyID, id primitive.ObjectID) (*models.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]models.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int64, error)
	Update(ctx context.Context, ticket *models.Ticket) error
	Delete(ctx context.Context, companyID, id primitive.ObjectID) error
	// Escalate raises the escalation level by one in a single write and
	// returns the updated ticket. At the top level it returns
	// models.ErrMaxEscalation without touching the record.
	Escalate(ctx context.Context, companyID, id primitive.ObjectID, at time.Time) (*models.Ticket, error)
}

type Comments interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, companyID, id primitive.ObjectID) (*models.Comment, error)
	// ListByTicket returns comments oldest first. Internal notes are left out
	// unless includeInternal is set.
	ListByTicket(ctx context.Context, companyID, ticketID primitive.ObjectID, includeInternal bool) ([]models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, companyID, id primitive.ObjectID) error
	DeleteByTicket(ctx context.Context, companyID, ticketID primitive.ObjectID) error
}

type Conversations interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, companyID, id primitive.ObjectID) (*models.Conversation, error)
	FindByParticipants(ctx context.Context, companyID, userID, agentID primitive.ObjectID) (*models.Conversation, error)
	// ListForParticipant returns the conversations id takes part in, most recently active first
	ListForParticipant(ctx context.Context, companyID, id primitive.ObjectID) ([]models.Conversation, error)
	Update(ctx context.Context, conv *models.Conversation) error
}

type Messages interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, companyID, id primitive.ObjectID) (*models.Message, error)
	// ListByConversation returns messages in creation order, hiding the ones viewer deleted for itself
	ListByConversation(ctx context.Context, companyID, conversationID, viewer primitive.ObjectID) ([]models.Message, error)
	MarkRead(ctx context.Context, companyID, id, userID primitive.ObjectID, at time.Time) error
	DeleteFor(ctx context.Context, companyID, id, userID primitive.ObjectID) error
}

type Partnerships interface {
	// Create fails with ErrDuplicate when the same requesting/requested pair exists
	Create(ctx context.Context, p *models.Partnership) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Partnership, error)
	ListForCompany(ctx context.Context, companyID primitive.ObjectID, status models.PartnershipStatus) ([]models.Partnership, error)
	Update(ctx context.Context, p *models.Partnership) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Counters hands out named monotonically increasing sequences
type Counters interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Records is the CRUD surface shared by the soft-deleted company-owned
// collections. Match holds extra equality conditions on bson field names;
// a nil value matches a missing field.
type Records[T any] interface {
	Create(ctx context.Context, rec *T) error
	Get(ctx context.Context, companyID, id primitive.ObjectID) (*T, error)
	List(ctx context.Context, companyID primitive.ObjectID, match bson.M) ([]T, error)
	Update(ctx context.Context, rec *T) error
	SoftDelete(ctx context.Context, companyID, id primitive.ObjectID) error
}

// Store bundles every repository the API uses
type Store struct {
	Users           Users
	Companies       Companies
	Tickets         Tickets
	Comments        Comments
	Conversations   Conversations
	Messages        Messages
	Partnerships    Partnerships
	Counters        Counters
	ClientCompanies Records[models.ClientCompany]
	Contacts        Records[models.Contact]
	Projects        Records[models.Project]
	TimeEntries     Records[models.TimeEntry]

	// Close releases the backing connection, if any
	Close func(ctx context.Context) error
}
