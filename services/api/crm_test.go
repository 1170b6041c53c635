package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
)

func TestClientCompanies_CRUDWithSoftDelete(t *testing.T) {
	s := newTestServer(t)
	_, manager := s.user(s.company("acme", models.PlanStarter), models.RoleCompanyManager)

	code, _ := s.post("/api/client-companies", manager, map[string]string{"website": "https://nameless.example"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.post("/api/client-companies", manager, map[string]string{
		"name": "Umbrella", "industry": "Pharma", "_id": primitive.NewObjectID().Hex(),
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	cc := decode[models.ClientCompany](t, env)
	assert.Equal(t, "Umbrella", cc.Name)

	path := "/api/client-companies/" + cc.ID.Hex()
	code, env = s.put(path, manager, map[string]string{"name": "Umbrella Corp", "industry": "Biotech"})
	require.Equal(t, http.StatusOK, code, env.Message)
	updated := decode[models.ClientCompany](t, env)
	assert.Equal(t, "Umbrella Corp", updated.Name)
	assert.Equal(t, cc.ID, updated.ID)

	code, _ = s.delete(path, manager)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.get(path, manager)
	assert.Equal(t, http.StatusNotFound, code)
	code, env = s.get("/api/client-companies", manager)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]models.ClientCompany](t, env))

	code, _ = s.delete(path, manager)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestClientCompanies_TenantIsolation(t *testing.T) {
	s := newTestServer(t)
	_, acme := s.user(s.company("acme", models.PlanStarter), models.RoleCompanyManager)
	_, globex := s.user(s.company("globex", models.PlanStarter), models.RoleCompanyManager)

	code, env := s.post("/api/client-companies", acme, map[string]string{"name": "Secret client"})
	require.Equal(t, http.StatusCreated, code)
	cc := decode[models.ClientCompany](t, env)

	code, _ = s.get("/api/client-companies/"+cc.ID.Hex(), globex)
	assert.Equal(t, http.StatusNotFound, code)
	code, env = s.get("/api/client-companies", globex)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]models.ClientCompany](t, env))
}

func TestContacts_ClientCompanyReferenceAndFilter(t *testing.T) {
	s := newTestServer(t)
	_, manager := s.user(s.company("acme", models.PlanStarter), models.RoleCompanyManager)

	code, env := s.post("/api/client-companies", manager, map[string]string{"name": "Umbrella"})
	require.Equal(t, http.StatusCreated, code)
	cc := decode[models.ClientCompany](t, env)

	code, _ = s.post("/api/contacts", manager, map[string]string{
		"name": "Ghost", "clientCompanyId": primitive.NewObjectID().Hex(),
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.post("/api/contacts", manager, map[string]string{
		"name": "Alice", "email": "Alice@Umbrella.com", "clientCompanyId": cc.ID.Hex(),
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.Equal(t, "alice@umbrella.com", decode[models.Contact](t, env).Email)

	code, _ = s.post("/api/contacts", manager, map[string]string{"name": "Freelancer"})
	require.Equal(t, http.StatusCreated, code)

	code, env = s.get("/api/contacts?clientCompanyId="+cc.ID.Hex(), manager)
	require.Equal(t, http.StatusOK, code)
	filtered := decode[[]models.Contact](t, env)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Alice", filtered[0].Name)

	code, env = s.get("/api/contacts", manager)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Contact](t, env), 2)

	code, _ = s.get("/api/contacts?clientCompanyId=nope", manager)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProjects_GateAndStatusFilter(t *testing.T) {
	s := newTestServer(t)
	_, starter := s.user(s.company("small", models.PlanStarter), models.RoleCompanyManager)
	code, env := s.get("/api/projects", starter)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "projects", env.Error)

	acme := s.company("acme", models.PlanProfessional)
	_, manager := s.user(acme, models.RoleCompanyManager)
	customer, _ := s.user(acme, models.RoleCustomer)

	code, _ = s.post("/api/projects", manager, map[string]string{"name": "Bad", "status": "someday"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.post("/api/projects", manager, map[string]string{"name": "Bad", "managerId": customer.ID.Hex()})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.post("/api/projects", manager, map[string]string{"name": "Migration"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.Equal(t, models.ProjectActive, decode[models.Project](t, env).Status)

	code, _ = s.post("/api/projects", manager, map[string]string{"name": "Old", "status": "completed"})
	require.Equal(t, http.StatusCreated, code)

	code, env = s.get("/api/projects?status=completed", manager)
	require.Equal(t, http.StatusOK, code)
	done := decode[[]models.Project](t, env)
	require.Len(t, done, 1)
	assert.Equal(t, "Old", done[0].Name)
}

func TestTimeEntries_StartStop(t *testing.T) {
	s := newTestServer(t)
	acme := s.company("acme", models.PlanProfessional)
	_, manager := s.user(acme, models.RoleCompanyManager)
	_, agent := s.user(acme, models.RoleSupportAgent)
	_, otherAgent := s.user(acme, models.RoleSupportAgent)

	code, env := s.post("/api/projects", manager, map[string]string{"name": "Migration"})
	require.Equal(t, http.StatusCreated, code)
	project := decode[models.Project](t, env)
	base := "/api/projects/" + project.ID.Hex() + "/time-entries"

	code, env = s.post(base+"/start", agent, map[string]string{"description": "schema work"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	entry := decode[models.TimeEntry](t, env)
	assert.True(t, entry.Running())

	code, _ = s.post(base+"/start", agent, nil)
	assert.Equal(t, http.StatusConflict, code)

	// someone else may run their own timer
	code, _ = s.post(base+"/start", otherAgent, nil)
	assert.Equal(t, http.StatusCreated, code)

	stop := base + "/" + entry.ID.Hex() + "/stop"
	code, _ = s.put(stop, otherAgent, nil)
	assert.Equal(t, http.StatusForbidden, code)

	s.clock.advance(90 * time.Minute)
	code, env = s.put(stop, agent, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	stopped := decode[models.TimeEntry](t, env)
	assert.False(t, stopped.Running())
	assert.Equal(t, 90*60, stopped.DurationSeconds)

	code, env = s.put(stop, agent, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Time entry already stopped", env.Message)

	// once stopped a new timer can start
	code, _ = s.post(base+"/start", agent, nil)
	assert.Equal(t, http.StatusCreated, code)

	code, env = s.get(base, manager)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.TimeEntry](t, env), 3)
}
