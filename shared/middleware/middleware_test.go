package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store/memstore"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

const baseDomain = "helpdesk.test"

type fixture struct {
	store  *store.Store
	tokens *utils.TokenIssuer
	kv     *utils.MemoryKV
	auth   *AuthMiddleware
	tenant *TenantResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := memstore.New()
	tokens := utils.NewTokenIssuer("test-secret", time.Hour, nil)
	kv := utils.NewMemoryKV(nil)
	return &fixture{
		store:  s,
		tokens: tokens,
		kv:     kv,
		auth:   NewAuthMiddleware(s.Users, s.Companies, tokens, kv),
		tenant: NewTenantResolver(s.Companies, baseDomain),
	}
}

func (f *fixture) company(t *testing.T, subdomain string, plan models.Plan) *models.Company {
	t.Helper()
	c := &models.Company{Name: subdomain, Subdomain: subdomain, Active: true}
	c.ApplyPlan(plan)
	require.NoError(t, f.store.Companies.Create(context.Background(), c))
	return c
}

func (f *fixture) user(t *testing.T, company *models.Company, role models.Role) (*models.User, string) {
	t.Helper()
	u := &models.User{
		Email:     primitive.NewObjectID().Hex() + "@example.com",
		Role:      role,
		CompanyID: company.ID,
		IsActive:  true,
	}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	token, err := f.tokens.Issue(u.ID.Hex(), u.CompanyID.Hex(), string(u.Role))
	require.NoError(t, err)
	return u, token
}

func echoCompany(c *gin.Context) {
	company := CurrentCompany(c)
	if company == nil {
		c.JSON(http.StatusOK, gin.H{"company": ""})
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company.Subdomain})
}

func do(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	body := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRequireAuth_Rejections(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	disabled, disabledToken := f.user(t, acme, models.RoleCustomer)
	disabled.IsActive = false
	require.NoError(t, f.store.Users.Update(context.Background(), disabled))

	ghostToken, err := f.tokens.Issue(primitive.NewObjectID().Hex(), acme.ID.Hex(), "customer")
	require.NoError(t, err)
	foreignToken, err := utils.NewTokenIssuer("other-secret", time.Hour, nil).Issue(disabled.ID.Hex(), acme.ID.Hex(), "customer")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", f.auth.RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Token abc",
		"malformed":      "Bearer not.a.jwt",
		"wrong secret":   "Bearer " + foreignToken,
		"unknown user":   "Bearer " + ghostToken,
		"disabled user":  "Bearer " + disabledToken,
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w, body := do(r, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		assert.Equal(t, false, body["success"], name)
	}
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	_, token := f.user(t, acme, models.RoleCustomer)

	r := gin.New()
	r.GET("/me", f.auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": c.GetString(KeyRole)})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w, body := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "customer", body["role"])

	claims, err := f.tokens.Parse(token)
	require.NoError(t, err)
	require.NoError(t, f.kv.Set(context.Background(), utils.BlacklistKey(claims.ID), "1", time.Hour))

	w, _ = do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantResolver_SubdomainBeatsUserCompany(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	globex := f.company(t, "globex", models.PlanFree)
	_, token := f.user(t, globex, models.RoleAdmin)

	r := gin.New()
	r.GET("/whoami", f.auth.RequireAuth(), f.tenant.ResolveCompany(), echoCompany)

	req := httptest.NewRequest(http.MethodGet, "http://acme."+baseDomain+"/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w, body := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, acme.Subdomain, body["company"])

	// without a subdomain the user's own company is used
	req = httptest.NewRequest(http.MethodGet, "http://"+baseDomain+"/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, body = do(r, req)
	assert.Equal(t, globex.Subdomain, body["company"])
}

func TestTenantResolver_SuspendedSubdomainShortCircuits(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	acme.Suspended = true
	require.NoError(t, f.store.Companies.Update(context.Background(), acme))
	globex := f.company(t, "globex", models.PlanFree)
	_, token := f.user(t, globex, models.RoleSupportAgent)

	r := gin.New()
	r.GET("/whoami", f.auth.RequireAuth(), f.tenant.ResolveCompany(), echoCompany)

	req := httptest.NewRequest(http.MethodGet, "http://acme."+baseDomain+"/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w, body := do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Company account is suspended", body["message"])
}

func TestTenantResolver_InactiveCompany(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	acme.Active = false
	require.NoError(t, f.store.Companies.Update(context.Background(), acme))

	r := gin.New()
	r.GET("/whoami", f.tenant.ResolveCompany(), echoCompany)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("x-company-id", acme.ID.Hex())
	w, body := do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Company account is inactive", body["message"])
}

func TestTenantResolver_HeaderAndCookie(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	globex := f.company(t, "globex", models.PlanFree)

	r := gin.New()
	r.GET("/whoami", f.tenant.ResolveCompany(), echoCompany)
	r.GET("/strict", f.tenant.RequireCompany(), echoCompany)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("x-company-id", acme.ID.Hex())
	req.AddCookie(&http.Cookie{Name: "companyId", Value: globex.ID.Hex()})
	_, body := do(r, req)
	assert.Equal(t, "acme", body["company"])

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("x-company-id", "not-an-id")
	req.AddCookie(&http.Cookie{Name: "companyId", Value: globex.ID.Hex()})
	_, body = do(r, req)
	assert.Equal(t, "globex", body["company"])

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w, body := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", body["company"])

	req = httptest.NewRequest(http.MethodGet, "/strict", nil)
	w, _ = do(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubdomain(t *testing.T) {
	cases := []struct {
		host, base, want string
	}{
		{"acme.helpdesk.test", "helpdesk.test", "acme"},
		{"ACME.helpdesk.test:5000", "helpdesk.test", "acme"},
		{"helpdesk.test", "helpdesk.test", ""},
		{"www.helpdesk.test", "helpdesk.test", ""},
		{"api.helpdesk.test", "helpdesk.test", ""},
		{"acme.localhost", "localhost", "acme"},
		{"localhost:5000", "localhost", ""},
		{"127.0.0.1:5000", "localhost", ""},
		{"acme.example.org", "helpdesk.test", "acme"},
		{"example.org", "helpdesk.test", ""},
		{"acme.helpdesk.test, proxy.internal", "helpdesk.test", "acme"},
		{"", "helpdesk.test", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Subdomain(tc.host, tc.base), tc.host)
	}
}

func TestRequireMembership(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	globex := f.company(t, "globex", models.PlanFree)
	_, agentToken := f.user(t, globex, models.RoleSupportAgent)
	_, adminToken := f.user(t, globex, models.RoleAdmin)

	r := gin.New()
	r.GET("/tickets", f.auth.RequireAuth(), f.tenant.ResolveCompany(), RequireMembership(), echoCompany)

	req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
	req.Header.Set("Authorization", "Bearer "+agentToken)
	req.Header.Set("X-Forwarded-Host", "acme."+baseDomain)
	w, body := do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied to this company", body["message"])

	req.Header.Set("Authorization", "Bearer "+adminToken)
	w, body = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, acme.Subdomain, body["company"])
}

func TestRequirePermission_EchoesPermission(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	_, customerToken := f.user(t, acme, models.RoleCustomer)
	_, managerToken := f.user(t, acme, models.RoleCompanyManager)

	r := gin.New()
	r.DELETE("/tickets/1", f.auth.RequireAuth(), RequirePermission(permissions.DeleteTickets), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodDelete, "/tickets/1", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	w, body := do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", body["message"])
	assert.Equal(t, permissions.DeleteTickets, body["error"])

	req.Header.Set("Authorization", "Bearer "+managerToken)
	w, _ = do(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	_, managerToken := f.user(t, acme, models.RoleCompanyManager)

	r := gin.New()
	r.GET("/companies", f.auth.RequireAuth(), RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/companies", nil)
	req.Header.Set("Authorization", "Bearer "+managerToken)
	w, _ := do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFeatureGate_RequireFeature(t *testing.T) {
	f := newFixture(t)
	free := f.company(t, "acme", models.PlanFree)
	pro := f.company(t, "globex", models.PlanProfessional)
	gate := NewFeatureGate(f.store.Tickets, f.store.Users, nil)

	r := gin.New()
	r.GET("/partnerships", f.tenant.ResolveCompany(), gate.RequireFeature(models.FeaturePartnerships), echoCompany)

	req := httptest.NewRequest(http.MethodGet, "/partnerships", nil)
	req.Header.Set("x-company-id", free.ID.Hex())
	w, body := do(r, req)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "Feature not available on current plan", body["message"])
	assert.Equal(t, "partnerships", body["error"])

	req.Header.Set("x-company-id", pro.ID.Hex())
	w, _ = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFeatureGate_TicketCapacityCountsCurrentMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.company(t, "acme", models.PlanFree)
	acme.Features.TicketVolume = 2
	require.NoError(t, f.store.Companies.Update(ctx, acme))

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	gate := NewFeatureGate(f.store.Tickets, f.store.Users, func() time.Time { return now })

	r := gin.New()
	r.POST("/tickets", f.tenant.ResolveCompany(), gate.RequireTicketCapacity(), func(c *gin.Context) { c.Status(http.StatusCreated) })
	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/tickets", nil)
		req.Header.Set("x-company-id", acme.ID.Hex())
		w, _ := do(r, req)
		return w.Code
	}

	// last month's tickets do not count
	require.NoError(t, f.store.Tickets.Create(ctx, &models.Ticket{TicketID: "TK-0001", CompanyID: acme.ID, CreatedAt: now.AddDate(0, -1, 0)}))
	require.NoError(t, f.store.Tickets.Create(ctx, &models.Ticket{TicketID: "TK-0002", CompanyID: acme.ID, CreatedAt: now.Add(-time.Hour)}))
	assert.Equal(t, http.StatusCreated, post())

	require.NoError(t, f.store.Tickets.Create(ctx, &models.Ticket{TicketID: "TK-0003", CompanyID: acme.ID, CreatedAt: now}))
	assert.Equal(t, http.StatusPaymentRequired, post())
}

func TestFeatureGate_AgentSeats(t *testing.T) {
	f := newFixture(t)
	acme := f.company(t, "acme", models.PlanFree)
	gate := NewFeatureGate(f.store.Tickets, f.store.Users, nil)
	ctx := context.Background()

	f.user(t, acme, models.RoleCompanyManager)
	f.user(t, acme, models.RoleCustomer)
	ok, err := gate.AgentSeatsAvailable(ctx, acme)
	require.NoError(t, err)
	assert.True(t, ok)

	agent, _ := f.user(t, acme, models.RoleSupportAgent)
	ok, err = gate.AgentSeatsAvailable(ctx, acme)
	require.NoError(t, err)
	assert.False(t, ok)

	// disabled staff give their seat back
	agent.IsActive = false
	require.NoError(t, f.store.Users.Update(ctx, agent))
	ok, err = gate.AgentSeatsAvailable(ctx, acme)
	require.NoError(t, err)
	assert.True(t, ok)

	unlimited := f.company(t, "bigco", models.PlanEnterprise)
	ok, err = gate.AgentSeatsAvailable(ctx, unlimited)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w, _ := do(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w, _ = do(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
