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

type conversationRepo struct {
	col *mongo.Collection
}

func (r *conversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	_, err := r.col.InsertOne(ctx, conv)
	return writeErr(err)
}

func (r *conversationRepo) GetByID(ctx context.Context, companyID, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "companyId": companyID}).Decode(&conv); err != nil {
		return nil, readErr(err)
	}
	return &conv, nil
}

func (r *conversationRepo) FindByParticipants(ctx context.Context, companyID, userID, agentID primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	q := bson.M{"companyId": companyID, "userId": userID, "agentId": agentID}
	if err := r.col.FindOne(ctx, q).Decode(&conv); err != nil {
		return nil, readErr(err)
	}
	return &conv, nil
}

func (r *conversationRepo) ListForParticipant(ctx context.Context, companyID, id primitive.ObjectID) ([]models.Conversation, error) {
	q := bson.M{
		"companyId": companyID,
		"$or":       bson.A{bson.M{"userId": id}, bson.M{"agentId": id}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}, {Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, q, opts)
	return decodeAll[models.Conversation](ctx, cur, err)
}

func (r *conversationRepo) Update(ctx context.Context, conv *models.Conversation) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": conv.ID, "companyId": conv.CompanyID}, conv)
	return matched(res, err)
}

type messageRepo struct {
	col *mongo.Collection
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []models.ReadReceipt{}
	}
	if msg.DeletedFor == nil {
		msg.DeletedFor = []primitive.ObjectID{}
	}
	_, err := r.col.InsertOne(ctx, msg)
	return writeErr(err)
}

func (r *messageRepo) GetByID(ctx context.Context, companyID, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "companyId": companyID}).Decode(&msg); err != nil {
		return nil, readErr(err)
	}
	return &msg, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, companyID, conversationID, viewer primitive.ObjectID) ([]models.Message, error) {
	q := bson.M{
		"companyId":      companyID,
		"conversationId": conversationID,
		"deletedFor":     bson.M{"$ne": viewer},
	}
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	return decodeAll[models.Message](ctx, cur, err)
}

func (r *messageRepo) MarkRead(ctx context.Context, companyID, id, userID primitive.ObjectID, at time.Time) error {
	q := bson.M{"_id": id, "companyId": companyID}
	if _, err := r.GetByID(ctx, companyID, id); err != nil {
		return err
	}
	// the readBy.userId guard makes a second read a no-op
	q["readBy.userId"] = bson.M{"$ne": userID}
	_, err := r.col.UpdateOne(ctx, q, bson.M{"$push": bson.M{"readBy": models.ReadReceipt{UserID: userID, ReadAt: at}}})
	return err
}

func (r *messageRepo) DeleteFor(ctx context.Context, companyID, id, userID primitive.ObjectID) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "companyId": companyID},
		bson.M{"$addToSet": bson.M{"deletedFor": userID}},
	)
	return matched(res, err)
}
