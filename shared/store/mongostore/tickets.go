package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
)

type ticketRepo struct {
	col *mongo.Collection
}

func (r *ticketRepo) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID.IsZero() {
		ticket.ID = primitive.NewObjectID()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
		ticket.UpdatedAt = ticket.CreatedAt
	}
	_, err := r.col.InsertOne(ctx, ticket)
	return writeErr(err)
}

func (r *ticketRepo) GetByID(ctx context.Context, companyID, id primitive.ObjectID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "companyId": companyID}).Decode(&ticket); err != nil {
		return nil, readErr(err)
	}
	return &ticket, nil
}

func ticketQuery(f store.TicketFilter) bson.M {
	q := bson.M{"companyId": f.CompanyID}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Priority != "" {
		q["priority"] = f.Priority
	}
	if f.AssignedTo != nil {
		q["assignedTo"] = *f.AssignedTo
	}
	if f.CreatedBy != nil {
		q["createdBy"] = *f.CreatedBy
	}
	if f.CreatedAfter != nil {
		q["createdAt"] = bson.M{"$gte": *f.CreatedAfter}
	}
	return q
}

func (r *ticketRepo) List(ctx context.Context, f store.TicketFilter) ([]models.Ticket, error) {
	cur, err := r.col.Find(ctx, ticketQuery(f), findOptions(f.Limit, f.Skip, bson.D{{Key: "createdAt", Value: -1}}))
	return decodeAll[models.Ticket](ctx, cur, err)
}

func (r *ticketRepo) Count(ctx context.Context, f store.TicketFilter) (int64, error) {
	return r.col.CountDocuments(ctx, ticketQuery(f))
}

func (r *ticketRepo) Update(ctx context.Context, ticket *models.Ticket) error {
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = time.Now()
	}
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": ticket.ID, "companyId": ticket.CompanyID}, ticket)
	return matched(res, err)
}

func (r *ticketRepo) Escalate(ctx context.Context, companyID, id primitive.ObjectID, at time.Time) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "companyId": companyID, "escalationLevel": bson.M{"$lt": models.MaxEscalationLevel}},
		bson.M{"$inc": bson.M{"escalationLevel": 1}, "$set": bson.M{"updatedAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ticket)
	if err == nil {
		return &ticket, nil
	}
	if err := readErr(err); err != store.ErrNotFound {
		return nil, err
	}
	// no match: either the ticket is gone or it is already at the top
	if _, err := r.GetByID(ctx, companyID, id); err != nil {
		return nil, err
	}
	return nil, models.ErrMaxEscalation
}

func (r *ticketRepo) Delete(ctx context.Context, companyID, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "companyId": companyID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
