package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
)

// records stores one soft-deleted, company-owned collection
type records[T any, PT interface {
	*T
	models.Record
}] struct {
	col *mongo.Collection
}

func (r *records[T, PT]) Create(ctx context.Context, rec *T) error {
	p := PT(rec)
	if p.RecordID().IsZero() {
		p.SetRecordID(primitive.NewObjectID())
	}
	p.Touch(time.Now())
	_, err := r.col.InsertOne(ctx, rec)
	return writeErr(err)
}

func (r *records[T, PT]) Get(ctx context.Context, companyID, id primitive.ObjectID) (*T, error) {
	var rec T
	q := bson.M{"_id": id, "companyId": companyID, "isDeleted": false}
	if err := r.col.FindOne(ctx, q).Decode(&rec); err != nil {
		return nil, readErr(err)
	}
	return &rec, nil
}

func (r *records[T, PT]) List(ctx context.Context, companyID primitive.ObjectID, match bson.M) ([]T, error) {
	q := bson.M{}
	for k, v := range match {
		q[k] = v
	}
	q["companyId"] = companyID
	q["isDeleted"] = false
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	return decodeAll[T](ctx, cur, err)
}

func (r *records[T, PT]) Update(ctx context.Context, rec *T) error {
	p := PT(rec)
	p.Touch(time.Now())
	q := bson.M{"_id": p.RecordID(), "companyId": p.OwnerID(), "isDeleted": false}
	res, err := r.col.ReplaceOne(ctx, q, rec)
	return matched(res, err)
}

func (r *records[T, PT]) SoftDelete(ctx context.Context, companyID, id primitive.ObjectID) error {
	now := time.Now()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "companyId": companyID, "isDeleted": false},
		bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
	)
	return matched(res, err)
}
