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

type partnershipRepo struct {
	col *mongo.Collection
}

func (r *partnershipRepo) Create(ctx context.Context, p *models.Partnership) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
	}
	_, err := r.col.InsertOne(ctx, p)
	return writeErr(err)
}

func (r *partnershipRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Partnership, error) {
	var p models.Partnership
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, readErr(err)
	}
	return &p, nil
}

func (r *partnershipRepo) ListForCompany(ctx context.Context, companyID primitive.ObjectID, status models.PartnershipStatus) ([]models.Partnership, error) {
	q := bson.M{"$or": bson.A{
		bson.M{"requestingCompanyId": companyID},
		bson.M{"requestedCompanyId": companyID},
	}}
	if status != "" {
		q["status"] = status
	}
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	return decodeAll[models.Partnership](ctx, cur, err)
}

func (r *partnershipRepo) Update(ctx context.Context, p *models.Partnership) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	return matched(res, err)
}

func (r *partnershipRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
