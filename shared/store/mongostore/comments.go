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

type commentRepo struct {
	col *mongo.Collection
}

func (r *commentRepo) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
		comment.UpdatedAt = comment.CreatedAt
	}
	_, err := r.col.InsertOne(ctx, comment)
	return writeErr(err)
}

func (r *commentRepo) GetByID(ctx context.Context, companyID, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "companyId": companyID}).Decode(&comment); err != nil {
		return nil, readErr(err)
	}
	return &comment, nil
}

func (r *commentRepo) ListByTicket(ctx context.Context, companyID, ticketID primitive.ObjectID, includeInternal bool) ([]models.Comment, error) {
	q := bson.M{"companyId": companyID, "ticketId": ticketID}
	if !includeInternal {
		q["isInternal"] = false
	}
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	return decodeAll[models.Comment](ctx, cur, err)
}

func (r *commentRepo) Update(ctx context.Context, comment *models.Comment) error {
	comment.UpdatedAt = time.Now()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": comment.ID, "companyId": comment.CompanyID}, comment)
	return matched(res, err)
}

func (r *commentRepo) Delete(ctx context.Context, companyID, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "companyId": companyID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *commentRepo) DeleteByTicket(ctx context.Context, companyID, ticketID primitive.ObjectID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"companyId": companyID, "ticketId": ticketID})
	return err
}
