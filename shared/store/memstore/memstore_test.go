package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
)

func TestTickets_ScopedToCompany(t *testing.T) {
	ctx := context.Background()
	s := New()
	acme, globex := primitive.NewObjectID(), primitive.NewObjectID()

	ticket := &models.Ticket{TicketID: "TK-0001", CompanyID: acme, Title: "printer on fire"}
	require.NoError(t, s.Tickets.Create(ctx, ticket))

	_, err := s.Tickets.GetByID(ctx, globex, ticket.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Tickets.Delete(ctx, globex, ticket.ID), store.ErrNotFound)

	got, err := s.Tickets.GetByID(ctx, acme, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "printer on fire", got.Title)

	list, err := s.Tickets.List(ctx, store.TicketFilter{CompanyID: globex})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTickets_DuplicateTicketID(t *testing.T) {
	ctx := context.Background()
	s := New()
	company := primitive.NewObjectID()

	require.NoError(t, s.Tickets.Create(ctx, &models.Ticket{TicketID: "TK-0001", CompanyID: company}))
	err := s.Tickets.Create(ctx, &models.Ticket{TicketID: "TK-0001", CompanyID: company})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestTickets_CountCreatedAfter(t *testing.T) {
	ctx := context.Background()
	s := New()
	company := primitive.NewObjectID()
	monthStart := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Tickets.Create(ctx, &models.Ticket{TicketID: "TK-0001", CompanyID: company, CreatedAt: monthStart.Add(-time.Hour)}))
	require.NoError(t, s.Tickets.Create(ctx, &models.Ticket{TicketID: "TK-0002", CompanyID: company, CreatedAt: monthStart.Add(time.Hour)}))

	n, err := s.Tickets.Count(ctx, store.TicketFilter{CompanyID: company, CreatedAfter: &monthStart})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestTickets_EscalateIsCappedAndScoped(t *testing.T) {
	ctx := context.Background()
	s := New()
	acme, globex := primitive.NewObjectID(), primitive.NewObjectID()
	ticket := &models.Ticket{TicketID: "TK-0001", CompanyID: acme, EscalationLevel: 1}
	require.NoError(t, s.Tickets.Create(ctx, ticket))
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Tickets.Escalate(ctx, globex, ticket.ID, at)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Tickets.Escalate(ctx, acme, ticket.ID, at)
	require.NoError(t, err)
	assert.Equal(t, 2, got.EscalationLevel)
	assert.Equal(t, at, got.UpdatedAt)

	_, err = s.Tickets.Escalate(ctx, acme, ticket.ID, at)
	require.NoError(t, err)
	_, err = s.Tickets.Escalate(ctx, acme, ticket.ID, at.Add(time.Minute))
	assert.ErrorIs(t, err, models.ErrMaxEscalation)

	stored, err := s.Tickets.GetByID(ctx, acme, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxEscalationLevel, stored.EscalationLevel)
	assert.Equal(t, at, stored.UpdatedAt)
}

func TestUsers_EmailUniqueAndNormalized(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &models.User{Email: "ada@example.com", Role: models.RoleCustomer}
	require.NoError(t, s.Users.Create(ctx, u))
	assert.ErrorIs(t, s.Users.Create(ctx, &models.User{Email: "ada@example.com"}), store.ErrDuplicate)

	got, err := s.Users.GetByEmail(ctx, "  ADA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUsers_ListHidesSecrets(t *testing.T) {
	ctx := context.Background()
	s := New()
	company := primitive.NewObjectID()

	u := &models.User{Email: "agent@example.com", Role: models.RoleSupportAgent, CompanyID: company, IsActive: true, TwoFactorSecret: "JBSWY3DP"}
	require.NoError(t, u.SetPassword("password123"))
	require.NoError(t, s.Users.Create(ctx, u))
	require.NoError(t, s.Users.Create(ctx, &models.User{Email: "cust@example.com", Role: models.RoleCustomer, CompanyID: company, IsActive: true}))

	agents, err := s.Users.List(ctx, store.UserFilter{CompanyID: &company, Roles: []models.Role{models.RoleSupportAgent}})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Empty(t, agents[0].Password)
	assert.Empty(t, agents[0].TwoFactorSecret)

	stored, err := s.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.ComparePassword("password123"))
}

func TestPartnerships_DuplicatePair(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	require.NoError(t, s.Partnerships.Create(ctx, &models.Partnership{RequestingCompanyID: a, RequestedCompanyID: b}))
	assert.ErrorIs(t, s.Partnerships.Create(ctx, &models.Partnership{RequestingCompanyID: a, RequestedCompanyID: b}), store.ErrDuplicate)
	// the reverse direction is a separate request
	assert.NoError(t, s.Partnerships.Create(ctx, &models.Partnership{RequestingCompanyID: b, RequestedCompanyID: a}))

	list, err := s.Partnerships.ListForCompany(ctx, a, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMessages_DeleteForHidesOnlyForThatUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	company, conv := primitive.NewObjectID(), primitive.NewObjectID()
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()

	msg := &models.Message{CompanyID: company, ConversationID: conv, Text: "hello"}
	require.NoError(t, s.Messages.Create(ctx, msg))
	require.NoError(t, s.Messages.DeleteFor(ctx, company, msg.ID, alice))
	require.NoError(t, s.Messages.MarkRead(ctx, company, msg.ID, bob, time.Now()))
	require.NoError(t, s.Messages.MarkRead(ctx, company, msg.ID, bob, time.Now()))

	forAlice, err := s.Messages.ListByConversation(ctx, company, conv, alice)
	require.NoError(t, err)
	assert.Empty(t, forAlice)

	forBob, err := s.Messages.ListByConversation(ctx, company, conv, bob)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Len(t, forBob[0].ReadBy, 1)
}

func TestRecords_SoftDeleteAndMatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	company, other := primitive.NewObjectID(), primitive.NewObjectID()
	project := primitive.NewObjectID()
	user := primitive.NewObjectID()

	running := &models.TimeEntry{ProjectID: project, UserID: user, StartedAt: time.Now()}
	running.SetOwner(company)
	require.NoError(t, s.TimeEntries.Create(ctx, running))

	stopped := &models.TimeEntry{ProjectID: project, UserID: user, StartedAt: time.Now().Add(-time.Hour)}
	stopped.SetOwner(company)
	require.NoError(t, stopped.Stop(time.Now()))
	require.NoError(t, s.TimeEntries.Create(ctx, stopped))

	open, err := s.TimeEntries.List(ctx, company, bson.M{"userId": user, "endedAt": nil})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, running.ID, open[0].ID)

	all, err := s.TimeEntries.List(ctx, company, bson.M{"projectId": project})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := s.TimeEntries.List(ctx, other, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.TimeEntries.SoftDelete(ctx, company, running.ID))
	_, err = s.TimeEntries.Get(ctx, company, running.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.TimeEntries.SoftDelete(ctx, company, running.ID), store.ErrNotFound)
}

func TestRecords_MatchTypedEnum(t *testing.T) {
	ctx := context.Background()
	s := New()
	company := primitive.NewObjectID()

	for _, status := range []models.ProjectStatus{models.ProjectActive, models.ProjectCompleted} {
		p := &models.Project{Name: string(status), Status: status}
		p.SetOwner(company)
		require.NoError(t, s.Projects.Create(ctx, p))
	}

	active, err := s.Projects.List(ctx, company, bson.M{"status": models.ProjectActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "active", active[0].Name)
}

func TestCounters_FailHook(t *testing.T) {
	c := &Counters{seq: map[string]int64{}}
	n, err := c.Next(context.Background(), "ticketId")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	c.Fail = func(string) error { return assert.AnError }
	_, err = c.Next(context.Background(), "ticketId")
	assert.ErrorIs(t, err, assert.AnError)
}
