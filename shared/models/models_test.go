package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func TestUser_SetPasswordHashesWithCost12(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetPassword("s3cret-pass"))

	assert.NotEqual(t, "s3cret-pass", u.Password)
	cost, err := bcrypt.Cost([]byte(u.Password))
	require.NoError(t, err)
	assert.Equal(t, PasswordCost, cost)

	assert.True(t, u.ComparePassword("s3cret-pass"))
	assert.False(t, u.ComparePassword("s3cret-pas"))
	assert.False(t, u.ComparePassword(""))
}

func TestUser_SetPasswordAlwaysRehashes(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetPassword("first-password"))
	first := u.Password

	require.NoError(t, u.SetPassword("second-password"))
	assert.NotEqual(t, first, u.Password)
	assert.False(t, u.ComparePassword("first-password"))
	assert.True(t, u.ComparePassword("second-password"))

	// same plaintext still produces a fresh salt
	second := u.Password
	require.NoError(t, u.SetPassword("second-password"))
	assert.NotEqual(t, second, u.Password)
}

func TestUser_SetPasswordRejectsEmpty(t *testing.T) {
	u := &User{}
	assert.ErrorIs(t, u.SetPassword(""), ErrEmptyPassword)
	assert.False(t, u.ComparePassword(""))
}

func TestUser_VerificationExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(10 * time.Minute)
	u := &User{EmailVerificationExpires: &expires}

	assert.False(t, u.VerificationExpired(now.Add(9*time.Minute)))
	assert.True(t, u.VerificationExpired(now.Add(11*time.Minute)))

	u.ClearVerification()
	assert.True(t, u.IsEmailVerified)
	assert.True(t, u.VerificationExpired(now))
}

func TestTicket_EscalationLadder(t *testing.T) {
	now := time.Now()
	ticket := &Ticket{}
	ticket.ApplyDefaults()
	assert.Equal(t, 1, ticket.EscalationLevel)

	require.NoError(t, ticket.Escalate(now))
	assert.Equal(t, 2, ticket.EscalationLevel)
	require.NoError(t, ticket.Escalate(now))
	assert.Equal(t, 3, ticket.EscalationLevel)

	updated := ticket.UpdatedAt
	err := ticket.Escalate(now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrMaxEscalation)
	assert.Equal(t, 3, ticket.EscalationLevel)
	assert.Equal(t, updated, ticket.UpdatedAt)
}

func TestTicket_ApplyDefaults(t *testing.T) {
	ticket := &Ticket{Priority: PriorityUrgent}
	ticket.ApplyDefaults()

	assert.Equal(t, TicketTypeQuestion, ticket.Type)
	assert.Equal(t, TicketSourceWeb, ticket.Source)
	assert.Equal(t, PriorityUrgent, ticket.Priority)
	assert.Equal(t, StatusOpen, ticket.Status)
}

func TestTicket_SetStatusTracksResolution(t *testing.T) {
	now := time.Now()
	ticket := &Ticket{Status: StatusOpen}

	ticket.SetStatus(StatusResolved, now)
	require.NotNil(t, ticket.ResolvedAt)

	ticket.SetStatus(StatusClosed, now.Add(time.Hour))
	assert.Equal(t, now, *ticket.ResolvedAt)

	ticket.SetStatus(StatusOpen, now)
	assert.Nil(t, ticket.ResolvedAt)
}

func TestCompany_ApplyPlan(t *testing.T) {
	c := &Company{}
	c.ApplyPlan(PlanProfessional)
	assert.Equal(t, 20, c.Features.MaxAgents)
	assert.True(t, c.Features.Enabled(FeaturePartnerships))
	assert.False(t, c.Features.Enabled(FeatureAPIAccess))

	c.ApplyPlan(PlanFree)
	assert.False(t, c.Features.Enabled(FeatureLiveChat))
	assert.Equal(t, 100, c.Features.TicketVolume)

	assert.Equal(t, FeaturesForPlan(PlanFree), FeaturesForPlan("platinum"))
	assert.False(t, c.Features.Enabled("teleport"))
}

func TestCompany_Usable(t *testing.T) {
	assert.True(t, (&Company{Active: true}).Usable())
	assert.False(t, (&Company{Active: true, Suspended: true}).Usable())
	assert.False(t, (&Company{}).Usable())
}

func TestPartnership_RespondDerivesPermissions(t *testing.T) {
	now := time.Now()
	by := primitive.NewObjectID()

	p := &Partnership{AccessLevel: AccessStandard, Status: PartnershipPending}
	p.Respond(PartnershipApproved, by, now)
	assert.Equal(t, PartnershipPermissions{CanSeeAgents: true, CanViewTickets: true, CanContactAgents: true}, p.Permissions)
	assert.Equal(t, by, *p.RespondedBy)

	p.Respond(PartnershipSuspended, by, now)
	assert.Equal(t, PartnershipPermissions{}, p.Permissions)

	p.AccessLevel = AccessFull
	p.Respond(PartnershipApproved, by, now)
	assert.True(t, p.Permissions.CanAssignTickets)
}

func TestPartnership_Partner(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	p := &Partnership{RequestingCompanyID: a, RequestedCompanyID: b}

	assert.Equal(t, b, p.Partner(a))
	assert.Equal(t, a, p.Partner(b))
	assert.True(t, p.Involves(a))
	assert.False(t, p.Involves(primitive.NewObjectID()))
}

func TestTimeEntry_Stop(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	e := &TimeEntry{StartedAt: start}
	assert.True(t, e.Running())

	require.NoError(t, e.Stop(start.Add(90*time.Minute)))
	assert.Equal(t, 5400, e.DurationSeconds)
	assert.ErrorIs(t, e.Stop(start.Add(2*time.Hour)), ErrTimeEntryStopped)
}

func TestMessage_Receipts(t *testing.T) {
	reader := primitive.NewObjectID()
	m := &Message{ReadBy: []ReadReceipt{{UserID: reader, ReadAt: time.Now()}}, DeletedFor: []primitive.ObjectID{reader}}

	assert.True(t, m.ReadByUser(reader))
	assert.True(t, m.DeletedForUser(reader))
	assert.False(t, m.ReadByUser(primitive.NewObjectID()))
}
