package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/config"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store/memstore"
)

const (
	testBaseDomain = "helpdesk.test"
	testPassword   = "secret123"
)

// clock is a settable time source shared by the app and the tests
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	t      *testing.T
	store  *store.Store
	clock  *clock
	app    *app
	router *gin.Engine
}

func newTestServer(t *testing.T, configure ...func(*deps)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(realtime.DefaultClientBuffer)
	go hub.Run(ctx)
	t.Cleanup(cancel)

	clk := &clock{t: time.Now().UTC().Truncate(time.Second)}
	d := deps{
		Config: &config.Config{
			JWTSecret:     "test-secret",
			JWTExpiration: time.Hour,
			FrontendURL:   "http://localhost:3000",
			BaseDomain:    testBaseDomain,
		},
		Store: memstore.New(),
		Hub:   hub,
		Now:   clk.now,
	}
	for _, fn := range configure {
		fn(&d)
	}
	a := newApp(d)
	t.Cleanup(a.mail.Wait)

	return &testServer{t: t, store: d.Store, clock: clk, app: a, router: newRouter(a)}
}

// request describes one call against the router
type request struct {
	method string
	path   string
	token  string
	host   string
	body   interface{}
}

func (s *testServer) do(r request) (int, envelope) {
	s.t.Helper()
	var body bytes.Buffer
	if r.body != nil {
		require.NoError(s.t, json.NewEncoder(&body).Encode(r.body))
	}
	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.host != "" {
		req.Host = r.host
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *testServer) get(path, token string) (int, envelope) {
	return s.do(request{method: http.MethodGet, path: path, token: token})
}

func (s *testServer) post(path, token string, body interface{}) (int, envelope) {
	return s.do(request{method: http.MethodPost, path: path, token: token, body: body})
}

func (s *testServer) put(path, token string, body interface{}) (int, envelope) {
	return s.do(request{method: http.MethodPut, path: path, token: token, body: body})
}

func (s *testServer) delete(path, token string) (int, envelope) {
	return s.do(request{method: http.MethodDelete, path: path, token: token})
}

func (s *testServer) company(subdomain string, plan models.Plan) *models.Company {
	s.t.Helper()
	c := &models.Company{Name: subdomain, Subdomain: subdomain, Email: subdomain + "@example.com", Active: true}
	c.ApplyPlan(plan)
	require.NoError(s.t, s.store.Companies.Create(context.Background(), c))
	return c
}

// user creates a verified, active user and returns it with a valid token
func (s *testServer) user(company *models.Company, role models.Role) (*models.User, string) {
	s.t.Helper()
	u := &models.User{
		Name:            string(role),
		Email:           primitive.NewObjectID().Hex() + "@example.com",
		Role:            role,
		CompanyID:       company.ID,
		IsActive:        true,
		IsEmailVerified: true,
		Preferences:     models.DefaultPreferences(),
	}
	require.NoError(s.t, u.SetPassword(testPassword))
	require.NoError(s.t, s.store.Users.Create(context.Background(), u))
	token, err := s.app.tokens.Issue(u.ID.Hex(), u.CompanyID.Hex(), string(u.Role))
	require.NoError(s.t, err)
	return u, token
}

// decode unmarshals the data part of a response
func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}
