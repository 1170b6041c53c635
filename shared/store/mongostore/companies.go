package mongostore

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
)

type companyRepo struct {
	col *mongo.Collection
}

func (r *companyRepo) Create(ctx context.Context, company *models.Company) error {
	if company.ID.IsZero() {
		company.ID = primitive.NewObjectID()
	}
	company.Subdomain = strings.ToLower(company.Subdomain)
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now()
		company.UpdatedAt = company.CreatedAt
	}
	_, err := r.col.InsertOne(ctx, company)
	return writeErr(err)
}

func (r *companyRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Company, error) {
	var company models.Company
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&company); err != nil {
		return nil, readErr(err)
	}
	return &company, nil
}

func (r *companyRepo) GetBySubdomain(ctx context.Context, subdomain string) (*models.Company, error) {
	var company models.Company
	if err := r.col.FindOne(ctx, bson.M{"subdomain": strings.ToLower(subdomain)}).Decode(&company); err != nil {
		return nil, readErr(err)
	}
	return &company, nil
}

func (r *companyRepo) List(ctx context.Context) ([]models.Company, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	return decodeAll[models.Company](ctx, cur, err)
}

func (r *companyRepo) Update(ctx context.Context, company *models.Company) error {
	company.UpdatedAt = time.Now()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": company.ID}, company)
	return matched(res, err)
}

func (r *companyRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
