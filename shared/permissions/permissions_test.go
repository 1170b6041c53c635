package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
)

func TestHasPermission_MatchesTableExhaustively(t *testing.T) {
	roles := []models.Role{models.RoleAdmin, models.RoleCompanyManager, models.RoleSupportAgent, models.RoleCustomer}

	for _, role := range roles {
		granted := map[string]bool{}
		for _, p := range table[role] {
			granted[p] = true
		}
		for _, perm := range All {
			assert.Equal(t, granted[perm], HasPermission(role, perm), "role=%s perm=%s", role, perm)
		}
		assert.False(t, HasPermission(role, "launch:rockets"), "role=%s", role)
	}
}

func TestHasPermission_UnknownRole(t *testing.T) {
	for _, perm := range All {
		assert.False(t, HasPermission(models.Role("guest"), perm))
	}
}

func TestHasPermission_NoRoleUsesWildcard(t *testing.T) {
	for role, perms := range table {
		assert.NotContains(t, perms, Wildcard, "role=%s", role)
	}
}

func TestHasPermission_WildcardGrantsEverything(t *testing.T) {
	table["auditor"] = []string{Wildcard}
	defer delete(table, "auditor")

	assert.True(t, HasPermission("auditor", ManageCompanies))
	assert.True(t, HasPermission("auditor", "anything:at_all"))
}

func TestRoleBoundaries(t *testing.T) {
	assert.True(t, HasPermission(models.RoleAdmin, ManageCompanies))
	assert.False(t, HasPermission(models.RoleCompanyManager, ManageCompanies))
	assert.True(t, HasPermission(models.RoleSupportAgent, WriteTickets))
	assert.False(t, HasPermission(models.RoleSupportAgent, DeleteTickets))
	assert.False(t, HasPermission(models.RoleCustomer, WriteInternalComments))
	assert.False(t, HasPermission(models.RoleCustomer, WriteTickets))
}

func TestFor_ReturnsCopy(t *testing.T) {
	perms := For(models.RoleCustomer)
	perms[0] = "tampered"
	assert.Equal(t, ReadTickets, table[models.RoleCustomer][0])
}

func TestCanModifyTicket(t *testing.T) {
	company := primitive.NewObjectID()
	other := primitive.NewObjectID()
	customer := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer, CompanyID: company}
	agent := &models.User{ID: primitive.NewObjectID(), Role: models.RoleSupportAgent, CompanyID: company}
	admin := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin, CompanyID: other}

	own := &models.Ticket{CompanyID: company, CreatedBy: customer.ID}
	someoneElses := &models.Ticket{CompanyID: company, CreatedBy: primitive.NewObjectID()}
	foreign := &models.Ticket{CompanyID: other, CreatedBy: primitive.NewObjectID()}

	assert.True(t, CanModifyTicket(customer, own))
	assert.False(t, CanModifyTicket(customer, someoneElses))
	assert.True(t, CanModifyTicket(agent, someoneElses))
	assert.False(t, CanModifyTicket(agent, foreign))
	assert.True(t, CanModifyTicket(admin, own))
}
