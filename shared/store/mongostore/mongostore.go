// Package mongostore implements the store interfaces on MongoDB
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
)

const (
	colUsers           = "users"
	colCompanies       = "companies"
	colTickets         = "tickets"
	colComments        = "comments"
	colConversations   = "conversations"
	colMessages        = "messages"
	colPartnerships    = "partnerships"
	colCounters        = "counters"
	colClientCompanies = "clientcompanies"
	colContacts        = "contacts"
	colProjects        = "projects"
	colTimeEntries     = "timeentries"
)

// New wires every repository onto db
func New(db *mongo.Database) *store.Store {
	return &store.Store{
		Users:           &userRepo{col: db.Collection(colUsers)},
		Companies:       &companyRepo{col: db.Collection(colCompanies)},
		Tickets:         &ticketRepo{col: db.Collection(colTickets)},
		Comments:        &commentRepo{col: db.Collection(colComments)},
		Conversations:   &conversationRepo{col: db.Collection(colConversations)},
		Messages:        &messageRepo{col: db.Collection(colMessages)},
		Partnerships:    &partnershipRepo{col: db.Collection(colPartnerships)},
		Counters:        &counterRepo{col: db.Collection(colCounters)},
		ClientCompanies: &records[models.ClientCompany, *models.ClientCompany]{col: db.Collection(colClientCompanies)},
		Contacts:        &records[models.Contact, *models.Contact]{col: db.Collection(colContacts)},
		Projects:        &records[models.Project, *models.Project]{col: db.Collection(colProjects)},
		TimeEntries:     &records[models.TimeEntry, *models.TimeEntry]{col: db.Collection(colTimeEntries)},
		Close: func(ctx context.Context) error {
			return db.Client().Disconnect(ctx)
		},
	}
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "role", Value: 1}}},
			{Keys: bson.D{{Key: "passwordResetToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		colCompanies: {
			{Keys: bson.D{{Key: "subdomain", Value: 1}}, Options: unique},
		},
		colTickets: {
			{Keys: bson.D{{Key: "ticketId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "status", Value: 1}}},
		},
		colComments: {
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "ticketId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		colConversations: {
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "userId", Value: 1}, {Key: "agentId", Value: 1}}},
		},
		colMessages: {
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		colPartnerships: {
			{Keys: bson.D{{Key: "requestingCompanyId", Value: 1}, {Key: "requestedCompanyId", Value: 1}}, Options: unique},
		},
	}
	for _, col := range []string{colClientCompanies, colContacts, colProjects, colTimeEntries} {
		indexes[col] = []mongo.IndexModel{
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "isDeleted", Value: 1}}},
		}
	}

	for col, idx := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", col, err)
		}
	}
	logrus.Infof("MongoDB indexes ensured on %d collections", len(indexes))
	return nil
}

// readErr maps a driver read error onto the store sentinels
func readErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// writeErr maps a driver write error onto the store sentinels
func writeErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

// matched turns a zero MatchedCount into ErrNotFound
func matched(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return writeErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func findOptions(limit, skip int64, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if skip > 0 {
		opts.SetSkip(skip)
	}
	return opts
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
