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

type userRepo struct {
	col *mongo.Collection
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
		user.UpdatedAt = user.CreatedAt
	}
	_, err := r.col.InsertOne(ctx, user)
	return writeErr(err)
}

func (r *userRepo) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.col.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, readErr(err)
	}
	return &user, nil
}

func (r *userRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (r *userRepo) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"passwordResetToken": token})
}

func userQuery(f store.UserFilter) bson.M {
	q := bson.M{}
	if f.CompanyID != nil {
		q["companyId"] = *f.CompanyID
	}
	if len(f.Roles) > 0 {
		q["role"] = bson.M{"$in": f.Roles}
	}
	if f.ActiveOnly {
		q["isActive"] = true
	}
	return q
}

func (r *userRepo) List(ctx context.Context, f store.UserFilter) ([]models.User, error) {
	opts := findOptions(f.Limit, f.Skip, bson.D{{Key: "createdAt", Value: -1}})
	opts.SetProjection(bson.M{"password": 0, "twoFactorSecret": 0})
	cur, err := r.col.Find(ctx, userQuery(f), opts)
	return decodeAll[models.User](ctx, cur, err)
}

func (r *userRepo) Count(ctx context.Context, f store.UserFilter) (int64, error) {
	return r.col.CountDocuments(ctx, userQuery(f))
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, options.Replace())
	return matched(res, err)
}
